// handlers_session.go - Job lifecycle and file selection handlers
package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/project-optimizer/console/internal/session"
	"github.com/project-optimizer/console/internal/upload"
)

// HandleGetSession returns the current session snapshot.
func (h *Handler) HandleGetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.session.Snapshot())
}

// HandleListFiles returns the staged selection.
func (h *Handler) HandleListFiles(c echo.Context) error {
	return c.JSON(http.StatusOK, h.files.Files())
}

// HandleAddFiles stages the multipart "files" parts. Invalid files are
// reported in the response and never block valid ones.
func (h *Handler) HandleAddFiles(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("expected multipart form with files", err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return NewValidationError("no files provided")
	}

	candidates := make([]upload.Candidate, 0, len(headers))
	for _, fh := range headers {
		candidates = append(candidates, upload.Candidate{
			Name:     fh.Filename,
			Size:     fh.Size,
			MIMEType: fh.Header.Get(echo.HeaderContentType),
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	res := h.files.Select(candidates)
	if len(res.Accepted) > 0 {
		h.session.NotifyFilesChanged()
	}
	h.logger.Info("files selected", "accepted", len(res.Accepted), "rejected", len(res.Rejected))

	status := http.StatusOK
	if len(res.Accepted) > 0 {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

// HandleRemoveFile removes the staged file at the :index position.
func (h *Handler) HandleRemoveFile(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return NewBadRequestError("invalid file index", err)
	}
	removed, err := h.files.Remove(index)
	if err != nil {
		return err
	}
	h.session.NotifyFilesChanged()
	return c.JSON(http.StatusOK, removed)
}

// HandleSubmit uploads the selection and starts a job.
func (h *Handler) HandleSubmit(c echo.Context) error {
	var in session.SubmitInput
	if err := c.Bind(&in); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := h.session.Submit(c.Request().Context(), in); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, h.session.Snapshot())
}

// HandleCancel stops polling the running job.
func (h *Handler) HandleCancel(c echo.Context) error {
	h.session.Cancel()
	return c.JSON(http.StatusOK, h.session.Snapshot())
}

// HandleClear drops results on the console and the backend.
func (h *Handler) HandleClear(c echo.Context) error {
	if err := h.session.Clear(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.session.Snapshot())
}

// HandleDismissNotice clears the error surface.
func (h *Handler) HandleDismissNotice(c echo.Context) error {
	h.session.DismissNotice()
	return c.NoContent(http.StatusNoContent)
}
