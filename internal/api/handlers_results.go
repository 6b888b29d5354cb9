// handlers_results.go - Rendered results, report page and exports
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/project-optimizer/console/internal/backend"
	"github.com/project-optimizer/console/internal/dashboard"
	"github.com/project-optimizer/console/internal/models"
	"github.com/project-optimizer/console/internal/render"
)

const (
	// exportBaseName prefixes downloaded export files.
	exportBaseName = "project-optimizer"
	formatMsgpack  = "msgpack"
)

// ResultsResponse is returned by GET /api/results.
type ResultsResponse struct {
	ProcessInfo models.ProcessInfo    `json:"processInfo"`
	Sections    []render.Section      `json:"sections"`
	Metrics     models.DerivedMetrics `json:"metrics"`
}

func (h *Handler) results() (*models.ResultsEnvelope, error) {
	env, ok := h.session.Results()
	if !ok {
		return nil, NewNotFoundError("no results available")
	}
	return env, nil
}

// HandleGetResults renders the results of the last completed job.
func (h *Handler) HandleGetResults(c echo.Context) error {
	env, err := h.results()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ResultsResponse{
		ProcessInfo: env.ProcessInfo,
		Sections:    h.renderer.Render(c.Request().Context(), env),
		Metrics:     dashboard.Derive(env.Results, h.now()),
	})
}

// HandleGetComponent proxies one agent's raw result from the backend for
// diagnostics.
func (h *Handler) HandleGetComponent(c echo.Context) error {
	name := strings.TrimSpace(c.Param("component"))
	if name == "" {
		return NewValidationError("component name is required")
	}
	res, err := h.backend.Component(c.Request().Context(), name)
	if err != nil {
		if backend.HTTPStatus(err) == http.StatusNotFound {
			return NewNotFoundError(fmt.Sprintf("component not found: %s", name))
		}
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HandleGetAgents proxies the backend's agent descriptions.
func (h *Handler) HandleGetAgents(c echo.Context) error {
	agents, err := h.backend.Agents(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, agents)
}

// HandleReport serves the results as a standalone tabbed HTML page.
func (h *Handler) HandleReport(c echo.Context) error {
	env, err := h.results()
	if err != nil {
		return err
	}

	metrics := dashboard.Derive(env.Results, h.now())
	page, err := render.Page(h.renderer.Render(c.Request().Context(), env), &metrics)
	if err != nil {
		return NewInternalError("failed to render report", err)
	}
	return c.HTML(http.StatusOK, string(page))
}

// HandleExport downloads the results. json and summary come from the
// backend, pdf is proxied as-is and msgpack is encoded locally.
func (h *Handler) HandleExport(c echo.Context) error {
	format := strings.ToLower(c.Param("format"))
	ctx := c.Request().Context()

	switch format {
	case backend.FormatJSON, backend.FormatSummary:
		data, err := h.backend.Export(ctx, format)
		if err != nil {
			return err
		}
		attach(c, format+".json")
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)

	case backend.FormatPDF:
		data, pages, err := h.backend.ExportPDF(ctx)
		if err != nil {
			return err
		}
		c.Response().Header().Set("X-Page-Count", strconv.Itoa(pages))
		attach(c, "report.pdf")
		return c.Blob(http.StatusOK, "application/pdf", data)

	case formatMsgpack:
		env, err := h.results()
		if err != nil {
			return err
		}
		data, err := encodeMsgpack(env)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		attach(c, "results.msgpack")
		return c.Blob(http.StatusOK, "application/msgpack", data)
	}

	return NewValidationError(fmt.Sprintf("unsupported export format: %s", format))
}

func attach(c echo.Context, suffix string) {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s-%s"`, exportBaseName, suffix))
}

// encodeMsgpack encodes the envelope with agent payloads as structured
// values rather than raw JSON bytes.
func encodeMsgpack(env *models.ResultsEnvelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return msgpack.Marshal(generic)
}
