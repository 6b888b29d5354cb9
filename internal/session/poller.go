package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/project-optimizer/console/internal/apperr"
	"github.com/project-optimizer/console/internal/models"
)

// jobFailedMessage is shown when the backend reports an error without text.
const jobFailedMessage = "Processing failed on the server"

// poll queries the backend status every interval until the job reaches a
// terminal state or ctx is cancelled. The first query happens one interval
// after submission.
func (c *Controller) poll(ctx context.Context, gen uint64, done chan struct{}, logger *slog.Logger) {
	c.activePollers.Add(1)
	defer func() {
		c.activePollers.Add(-1)
		close(done)
	}()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("poller stopped")
			return
		case <-ticker.C:
			if c.tick(ctx, gen, logger) {
				return
			}
		}
	}
}

// tick runs one poll and reports whether polling should stop. Failed polls
// are transient and leave the state untouched.
func (c *Controller) tick(ctx context.Context, gen uint64, logger *slog.Logger) bool {
	status, err := c.backend.Status(ctx)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		logger.Debug("status poll failed", "error", err)
		return false
	}

	c.mu.Lock()
	if gen != c.generation || !c.processing {
		c.mu.Unlock()
		return true
	}
	c.polls++
	progress := c.tracker.Observe(status.CurrentProcess)
	c.mu.Unlock()

	switch status.Terminal() {
	case models.JobCompleted:
		c.complete(ctx, gen, logger)
		return true
	case models.JobError:
		msg := status.ErrorMessage()
		if msg == "" {
			msg = jobFailedMessage
		}
		logger.Warn("job failed", "error", msg)
		c.fail(gen, apperr.New(apperr.Server, "session.poll", msg))
		return true
	}

	logger.Debug("job progress", "step", progress.CurrentStep, "percent", progress.Percent)
	c.publish()
	return false
}

// complete fetches the results of a finished job exactly once.
func (c *Controller) complete(ctx context.Context, gen uint64, logger *slog.Logger) {
	results, err := c.backend.Results(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn("results fetch failed", "error", err)
		c.fail(gen, err)
		return
	}

	c.mu.Lock()
	if gen != c.generation || !c.processing {
		c.mu.Unlock()
		return
	}
	now := c.now()
	var elapsed time.Duration
	if c.submittedAt != nil {
		elapsed = now.Sub(*c.submittedAt)
	}
	c.tracker.Complete()
	c.results = results
	c.phase = models.PhaseCompleted
	c.processing = false
	c.completedAt = &now
	c.stopPollerLocked()
	sent := c.sent
	c.sent = nil
	c.mu.Unlock()

	c.files.Discard(sent...)

	logger.Info("job completed", "agents", len(results.Results), "elapsed", elapsed.Round(time.Millisecond))
	c.publish()
}
