// Package backend is a typed client for the analysis service REST contract.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/project-optimizer/console/internal/apperr"
	"github.com/project-optimizer/console/internal/models"
)

// maxResponseBody caps JSON bodies read from the backend.
const maxResponseBody = 64 << 20

// Export formats served by GET /api/export/{format}.
const (
	FormatJSON    = "json"
	FormatSummary = "summary"
	FormatPDF     = "pdf"
)

// NetworkMessage is shown when the backend cannot be reached at all.
const NetworkMessage = "Network error: could not reach the analysis service"

// UploadFile is one file part of a multipart upload.
type UploadFile struct {
	Name    string
	Content io.Reader
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration
}

// Client talks to the analysis backend.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	uploadClient *http.Client
	logger       *slog.Logger
}

// NewClient creates a Client for the backend at opts.BaseURL.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 2 * time.Minute
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: opts.Timeout},
		uploadClient: &http.Client{Timeout: opts.UploadTimeout},
		logger:       logger.With("component", "backend"),
	}
}

// BaseURL returns the backend root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Health calls GET /api/health.
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	if err := c.getJSON(ctx, "backend.health", "/api/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends files as multipart field "files" and returns the server-side
// paths the backend assigned to them.
func (c *Client) Upload(ctx context.Context, files []UploadFile) ([]string, error) {
	const op = "backend.upload"

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		for _, f := range files {
			part, err := mw.CreateFormFile("files", f.Name)
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if _, err := io.Copy(part, f.Content); err != nil {
				pw.CloseWithError(fmt.Errorf("writing %s: %w", f.Name, err))
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", pr)
	if err != nil {
		pr.Close()
		return nil, apperr.Wrap(apperr.Network, op, NetworkMessage, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		pr.Close()
		return nil, c.transportError(op, err)
	}
	defer resp.Body.Close()

	var out models.UploadResponse
	if err := c.decode(op, resp, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, apperr.New(apperr.Server, op, out.Error)
	}
	if out.Status != models.UploadSucceeded {
		return nil, apperr.New(apperr.Server, op,
			fmt.Sprintf("Unexpected response from server (status %q)", out.Status))
	}

	c.logger.Info("files uploaded", "count", len(out.UploadedFiles))
	return out.UploadedFiles, nil
}

// Process calls POST /api/process. It succeeds only when the backend answers
// with the processing_started marker.
func (c *Client) Process(ctx context.Context, body models.ProcessRequest) (*models.ProcessResponse, error) {
	const op = "backend.process"

	if body.Files == nil {
		body.Files = []string{}
	}
	if body.Transcripts == nil {
		body.Transcripts = []models.Transcript{}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encoding request: %w", op, err)
	}

	resp, err := c.do(ctx, op, http.MethodPost, "/api/process", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out models.ProcessResponse
	if err := c.decode(op, resp, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, apperr.New(apperr.Server, op, out.Error)
	}
	if out.Status != models.ProcessStarted {
		return nil, apperr.New(apperr.Server, op,
			fmt.Sprintf("Unexpected response from server (status %q)", out.Status))
	}
	return &out, nil
}

// Status calls GET /api/status.
func (c *Client) Status(ctx context.Context) (*models.JobStatus, error) {
	var out models.JobStatus
	if err := c.getJSON(ctx, "backend.status", "/api/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Results calls GET /api/results.
func (c *Client) Results(ctx context.Context) (*models.ResultsEnvelope, error) {
	var out models.ResultsEnvelope
	if err := c.getJSON(ctx, "backend.results", "/api/results", &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = models.ResultBundle{}
	}
	return &out, nil
}

// Component calls GET /api/results/{component}.
func (c *Client) Component(ctx context.Context, name string) (*models.ComponentResult, error) {
	var out models.ComponentResult
	path := "/api/results/" + url.PathEscape(name)
	if err := c.getJSON(ctx, "backend.component", path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Agents calls GET /api/agents.
func (c *Client) Agents(ctx context.Context) (models.AgentInfo, error) {
	out := models.AgentInfo{}
	if err := c.getJSON(ctx, "backend.agents", "/api/agents", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Clear calls POST /api/clear.
func (c *Client) Clear(ctx context.Context) error {
	const op = "backend.clear"

	resp, err := c.do(ctx, op, http.MethodPost, "/api/clear", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out models.ClearResponse
	if err := c.decode(op, resp, &out); err != nil {
		return err
	}
	if out.Error != "" {
		return apperr.New(apperr.Server, op, out.Error)
	}
	return nil
}

// Export downloads the json or summary export as raw JSON bytes.
func (c *Client) Export(ctx context.Context, format string) ([]byte, error) {
	const op = "backend.export"

	format = strings.ToLower(format)
	if format != FormatJSON && format != FormatSummary {
		return nil, apperr.New(apperr.Validation, op, fmt.Sprintf("Unsupported export format: %s", format))
	}

	resp, err := c.do(ctx, op, http.MethodGet, "/api/export/"+format, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, c.transportError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, resp.StatusCode, data)
	}
	if !json.Valid(data) {
		return nil, apperr.New(apperr.Server, op, "Export is not valid JSON")
	}
	return data, nil
}

// ExportPDF downloads the PDF report and checks that it parses. It returns
// the document bytes and its page count.
func (c *Client) ExportPDF(ctx context.Context) ([]byte, int, error) {
	const op = "backend.export_pdf"

	resp, err := c.do(ctx, op, http.MethodGet, "/api/export/"+FormatPDF, nil)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, 0, c.transportError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, statusError(op, resp.StatusCode, data)
	}

	pages, err := PageCount(data)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Server, op, "Backend returned an unreadable PDF report", err)
	}

	c.logger.Info("pdf report downloaded", "bytes", len(data), "pages", pages)
	return data, pages, nil
}

// PageCount parses a PDF document and returns its page count.
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("reading pdf: %w", err)
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.decode(op, resp, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, op, NetworkMessage, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(op, err)
	}
	return resp, nil
}

// decode reads a JSON body. Non-2xx responses become Server errors carrying
// the backend's error text.
func (c *Client) decode(op string, resp *http.Response, out any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return c.transportError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.Server, op, "Malformed response from server", err)
	}
	return nil
}

func (c *Client) transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	c.logger.Debug("backend request failed", "op", op, "error", err)
	return apperr.Wrap(apperr.Network, op, NetworkMessage, err)
}

// StatusCode is attached to Server errors produced from non-2xx responses.
type StatusCode int

func (s StatusCode) Error() string { return fmt.Sprintf("http status %d", int(s)) }

func statusError(op string, code int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := fmt.Sprintf("Server returned status %d", code)
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return apperr.Wrap(apperr.Server, op, msg, StatusCode(code))
}

// HTTPStatus returns the backend HTTP status carried by err, or 0.
func HTTPStatus(err error) int {
	var s StatusCode
	if errors.As(err, &s) {
		return int(s)
	}
	return 0
}
