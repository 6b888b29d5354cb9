// interfaces.go - Dependencies of the console HTTP handlers
package api

import (
	"context"

	"github.com/project-optimizer/console/internal/models"
	"github.com/project-optimizer/console/internal/render"
	"github.com/project-optimizer/console/internal/session"
	"github.com/project-optimizer/console/internal/upload"
)

// SessionController drives the job lifecycle.
type SessionController interface {
	Submit(ctx context.Context, in session.SubmitInput) error
	Cancel()
	Clear(ctx context.Context) error
	DismissNotice()
	Snapshot() models.Snapshot
	Results() (*models.ResultsEnvelope, bool)
	Subscribe() (<-chan models.Snapshot, func())
	NotifyFilesChanged()
}

// FileSelection is the staged upload selection.
type FileSelection interface {
	Select(candidates []upload.Candidate) upload.SelectResult
	Remove(index int) (models.UploadedFile, error)
	Files() []models.UploadedFile
	MaxFileSize() int64
}

// Backend is the part of the analysis service proxied by the console.
type Backend interface {
	Health(ctx context.Context) (*models.HealthResponse, error)
	Agents(ctx context.Context) (models.AgentInfo, error)
	Component(ctx context.Context, name string) (*models.ComponentResult, error)
	Export(ctx context.Context, format string) ([]byte, error)
	ExportPDF(ctx context.Context) ([]byte, int, error)
}

// ReportRenderer turns results into display sections.
type ReportRenderer interface {
	Render(ctx context.Context, env *models.ResultsEnvelope) []render.Section
}
