// Package workers holds the engine's background loops. They talk to the rest
// of the engine only through the same service calls a user request makes.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/clock"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/services"
)

const (
	DefaultReaperInterval  = 30 * time.Second
	DefaultReaperBatchSize = 200
)

// attemptSubmitter is the gatekeeper entry point the reaper closes attempts through.
type attemptSubmitter interface {
	SubmitAttempt(ctx context.Context, attemptID uint, studentID string, req *models.SubmitAttemptRequest, source models.SubmissionSource) (*models.Result, error)
}

// ReapStats summarizes one pass.
type ReapStats struct {
	Found     int `json:"found"`
	Submitted int `json:"submitted"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type DeadlineReaper struct {
	attempts  repositories.AttemptRepository
	submitter attemptSubmitter
	clock     clock.Clock
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewDeadlineReaper(attempts repositories.AttemptRepository, submitter attemptSubmitter, clk clock.Clock, logger *slog.Logger, interval time.Duration, batchSize int) *DeadlineReaper {
	if interval <= 0 {
		interval = DefaultReaperInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultReaperBatchSize
	}
	return &DeadlineReaper{
		attempts:  attempts,
		submitter: submitter,
		clock:     clk,
		logger:    logger.With("component", "deadline_reaper"),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start runs a pass every interval until ctx is cancelled.
func (r *DeadlineReaper) Start(ctx context.Context) {
	r.logger.Info("Deadline reaper started", "interval", r.interval, "batch_size", r.batchSize)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("Reaper pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("Deadline reaper stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce force-submits every attempt that is past its deadline or belongs to
// a cancelled exam. An attempt the student submitted in the meantime is
// skipped, not failed.
func (r *DeadlineReaper) RunOnce(ctx context.Context) (ReapStats, error) {
	var stats ReapStats
	now := r.clock.Now()

	overdue, err := r.attempts.ListOverdue(ctx, now, r.batchSize)
	if err != nil {
		return stats, fmt.Errorf("list overdue attempts: %w", err)
	}
	stats.Found = len(overdue)

	for _, o := range overdue {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		source := models.SubmittedByDeadline
		if o.Cancelled {
			source = models.SubmittedByCancellation
		}
		_, err := r.submitter.SubmitAttempt(ctx, o.AttemptID, o.StudentID, nil, source)
		switch {
		case err == nil:
			stats.Submitted++
			r.logger.Info("Attempt auto-submitted", "attempt_id", o.AttemptID, "exam_id", o.ExamID, "source", source)
		case errors.Is(err, services.ErrAlreadySubmitted):
			stats.Skipped++
			r.logger.Debug("Attempt already submitted", "attempt_id", o.AttemptID)
		default:
			stats.Failed++
			r.logger.Error("Failed to auto-submit attempt", "attempt_id", o.AttemptID, "exam_id", o.ExamID, "error", err)
		}
	}

	if stats.Found > 0 {
		r.logger.Info("Reaper pass complete",
			"found", stats.Found,
			"submitted", stats.Submitted,
			"skipped", stats.Skipped,
			"failed", stats.Failed)
	}
	return stats, nil
}
