// Package upload validates candidate files and maintains the staged selection
// that the next submission will send to the analysis backend.
package upload

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/project-optimizer/console/internal/apperr"
	"github.com/project-optimizer/console/internal/models"
)

// DefaultMaxFileSize is the per-file ceiling enforced by the backend.
const DefaultMaxFileSize int64 = 16 * 1024 * 1024

// mimeTypes maps each accepted extension to its canonical media type.
var mimeTypes = map[string]string{
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"txt":  "text/plain",
}

// Candidate is a file offered for selection.
type Candidate struct {
	Name     string
	Size     int64
	MIMEType string
	Open     func() (io.ReadCloser, error)
}

// Rejection records why a candidate was not staged.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// SelectResult is the outcome of one Select call.
type SelectResult struct {
	Accepted []models.UploadedFile `json:"accepted"`
	Rejected []Rejection           `json:"rejected,omitempty"`
	Warning  string                `json:"warning,omitempty"`
}

// Store defines the interface needed from the staging layer.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	Open(id string) (io.ReadCloser, error)
	Delete(id string) error
	Clear() error
}

// Options configures validation.
type Options struct {
	MaxFileSize  int64
	AllowedTypes []string
}

// Manager keeps the running selection of staged files.
type Manager struct {
	mu      sync.RWMutex
	store   Store
	files   []models.UploadedFile
	maxSize int64
	allowed map[string]string // extension -> media type
	logger  *slog.Logger
}

// NewManager creates a new upload manager.
func NewManager(store Store, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if len(opts.AllowedTypes) == 0 {
		opts.AllowedTypes = []string{"pdf", "docx", "txt"}
	}

	allowed := make(map[string]string, len(opts.AllowedTypes))
	for _, ext := range opts.AllowedTypes {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		allowed[ext] = mimeTypes[ext]
	}

	return &Manager{
		store:   store,
		maxSize: opts.MaxFileSize,
		allowed: allowed,
		logger:  logger.With("component", "upload"),
	}
}

// MaxFileSize returns the per-file ceiling in bytes.
func (m *Manager) MaxFileSize() int64 {
	return m.maxSize
}

// Validate reports whether c may be staged.
func (m *Manager) Validate(c Candidate) error {
	if !m.typeAllowed(c) {
		return apperr.New(apperr.Validation, "upload.validate", "unsupported file type")
	}
	if c.Size > m.maxSize {
		return apperr.New(apperr.Validation, "upload.validate",
			fmt.Sprintf("exceeds %s limit", formatSize(m.maxSize)))
	}
	if c.Size < 0 {
		return apperr.New(apperr.Validation, "upload.validate", "invalid size")
	}
	return nil
}

// typeAllowed accepts a candidate when either its declared media type or its
// extension is on the allow list.
func (m *Manager) typeAllowed(c Candidate) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(c.Name)), ".")
	if _, ok := m.allowed[ext]; ok && ext != "" {
		return true
	}

	declared := strings.TrimSpace(c.MIMEType)
	if declared == "" {
		return false
	}
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mt
	}
	declared = strings.ToLower(declared)
	for _, mt := range m.allowed {
		if mt != "" && mt == declared {
			return true
		}
	}
	return false
}

// Select validates candidates and appends the accepted ones to the
// selection. Duplicates are kept. When anything is rejected a single
// aggregated warning is returned.
func (m *Manager) Select(candidates []Candidate) SelectResult {
	var result SelectResult

	for _, c := range candidates {
		if err := m.Validate(c); err != nil {
			result.Rejected = append(result.Rejected, Rejection{Name: c.Name, Reason: apperr.UserMessage(err)})
			continue
		}

		file, err := m.stage(c)
		if err != nil {
			m.logger.Warn("failed to stage file", "name", c.Name, "error", err)
			result.Rejected = append(result.Rejected, Rejection{Name: c.Name, Reason: "could not be read"})
			continue
		}
		result.Accepted = append(result.Accepted, file)
	}

	if len(result.Accepted) > 0 {
		m.mu.Lock()
		m.files = append(m.files, result.Accepted...)
		m.mu.Unlock()
	}

	if len(result.Accepted) < len(candidates) {
		result.Warning = m.warning(result.Rejected)
	}

	m.logger.Info("files selected", "accepted", len(result.Accepted), "rejected", len(result.Rejected))
	return result
}

func (m *Manager) stage(c Candidate) (models.UploadedFile, error) {
	var r io.Reader = strings.NewReader("")
	if c.Open != nil {
		rc, err := c.Open()
		if err != nil {
			return models.UploadedFile{}, fmt.Errorf("opening %s: %w", c.Name, err)
		}
		defer rc.Close()
		r = rc
	}

	// Never stage more than the ceiling even if the declared size lied.
	info, err := m.store.Save(c.Name, io.LimitReader(r, m.maxSize+1))
	if err != nil {
		return models.UploadedFile{}, err
	}
	if info.Size > m.maxSize {
		_ = m.store.Delete(info.ID)
		return models.UploadedFile{}, fmt.Errorf("%s is larger than declared", c.Name)
	}

	return models.UploadedFile{
		ID:       info.ID,
		Name:     info.Name,
		Size:     info.Size,
		MIMEType: m.mediaType(c),
		StagedAt: info.UploadedAt,
	}, nil
}

func (m *Manager) mediaType(c Candidate) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(c.Name)), ".")
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	if c.MIMEType != "" {
		return c.MIMEType
	}
	return "application/octet-stream"
}

func (m *Manager) warning(rejected []Rejection) string {
	types := make([]string, 0, len(m.allowed))
	for _, ext := range []string{"pdf", "docx", "txt"} {
		if _, ok := m.allowed[ext]; ok {
			types = append(types, strings.ToUpper(ext))
		}
	}

	parts := make([]string, 0, len(rejected))
	for _, r := range rejected {
		parts = append(parts, fmt.Sprintf("%s (%s)", r.Name, r.Reason))
	}

	return fmt.Sprintf("Some files were not added. Only %s files up to %s are accepted: %s",
		strings.Join(types, ", "), formatSize(m.maxSize), strings.Join(parts, "; "))
}

// Remove deletes the entry at index from the selection.
func (m *Manager) Remove(index int) (models.UploadedFile, error) {
	m.mu.Lock()
	if index < 0 || index >= len(m.files) {
		n := len(m.files)
		m.mu.Unlock()
		return models.UploadedFile{}, apperr.New(apperr.Validation, "upload.remove",
			fmt.Sprintf("no file at position %d (selection has %d)", index, n))
	}
	removed := m.files[index]
	m.files = append(m.files[:index:index], m.files[index+1:]...)
	m.mu.Unlock()

	if err := m.store.Delete(removed.ID); err != nil {
		m.logger.Warn("failed to delete staged file", "id", removed.ID, "error", err)
	}
	return removed, nil
}

// Files returns a copy of the current selection.
func (m *Manager) Files() []models.UploadedFile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.UploadedFile, len(m.files))
	copy(out, m.files)
	return out
}

// Count returns the number of staged files.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Open returns a reader over a staged file's bytes.
func (m *Manager) Open(id string) (io.ReadCloser, error) {
	return m.store.Open(id)
}

// Discard drops the given files from the selection and the staging area.
// Unknown ids are ignored.
func (m *Manager) Discard(ids ...string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	m.mu.Lock()
	kept := m.files[:0:0]
	var removed []string
	for _, f := range m.files {
		if drop[f.ID] {
			removed = append(removed, f.ID)
			continue
		}
		kept = append(kept, f)
	}
	m.files = kept
	m.mu.Unlock()

	for _, id := range removed {
		if err := m.store.Delete(id); err != nil {
			m.logger.Warn("failed to delete staged file", "id", id, "error", err)
		}
	}
	if len(removed) > 0 {
		m.logger.Info("submitted files discarded", "files", len(removed))
	}
}

// Clear empties the selection and the staging area.
func (m *Manager) Clear() {
	m.mu.Lock()
	n := len(m.files)
	m.files = nil
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear staging area", "error", err)
	}
	if n > 0 {
		m.logger.Info("selection cleared", "files", n)
	}
}

func formatSize(n int64) string {
	const mib = 1024 * 1024
	if n%mib == 0 {
		return fmt.Sprintf("%d MB", n/mib)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/mib)
}
