package api

import (
	"log/slog"
	"time"
)

// Handler serves the console API.
type Handler struct {
	session  SessionController
	files    FileSelection
	backend  Backend
	renderer ReportRenderer
	version  string
	now      func() time.Time
	logger   *slog.Logger
}

// Dependencies holds all handler dependencies
type Dependencies struct {
	Session  SessionController
	Files    FileSelection
	Backend  Backend
	Renderer ReportRenderer
	Version  string
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handler{
		session:  deps.Session,
		files:    deps.Files,
		backend:  deps.Backend,
		renderer: deps.Renderer,
		version:  deps.Version,
		now:      deps.Now,
		logger:   deps.Logger.With("component", "api"),
	}
}
