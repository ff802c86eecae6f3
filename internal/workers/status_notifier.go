package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/clock"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/events"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/services"
)

const notifierBatchSize = 500

// StatusNotifier announces schedule-driven status changes (ongoing, live,
// completed) once each. Status derivation itself never depends on it.
type StatusNotifier struct {
	exams     repositories.ExamRepository
	publisher events.EventPublisher
	clock     clock.Clock
	logger    *slog.Logger
	interval  time.Duration
}

func NewStatusNotifier(exams repositories.ExamRepository, publisher events.EventPublisher, clk clock.Clock, logger *slog.Logger, interval time.Duration) *StatusNotifier {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatusNotifier{
		exams:     exams,
		publisher: publisher,
		clock:     clk,
		logger:    logger.With("component", "status_notifier"),
		interval:  interval,
	}
}

func (n *StatusNotifier) Start(ctx context.Context) {
	n.logger.Info("Status notifier started", "interval", n.interval)
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		if _, err := n.RunOnce(ctx); err != nil && ctx.Err() == nil {
			n.logger.Error("Status notifier pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			n.logger.Info("Status notifier stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce publishes one exam.status_changed event per exam whose derived
// status differs from the last one announced. It returns how many were sent.
func (n *StatusNotifier) RunOnce(ctx context.Context) (int, error) {
	now := n.clock.Now()
	exams, err := n.exams.ListForNotification(ctx, now, notifierBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list exams for notification: %w", err)
	}

	sent := 0
	for _, exam := range exams {
		derived := services.DeriveStatus(exam, now)
		from := exam.Status
		if exam.NotifiedStatus != nil {
			if *exam.NotifiedStatus == derived {
				continue
			}
			from = *exam.NotifiedStatus
		}
		if derived == from {
			continue
		}

		event := events.NewEvent(events.ExamStatusChanged, now, events.ExamStatusChangedData{
			ExamID:  exam.ID,
			Kind:    string(exam.Kind),
			From:    string(from),
			To:      string(derived),
			At:      now,
			Derived: true,
		})
		if err := n.publisher.Publish(ctx, event); err != nil {
			// not marked, so the next pass retries
			n.logger.Warn("Failed to publish status change", "exam_id", exam.ID, "error", err)
			continue
		}
		if err := n.exams.MarkNotified(ctx, exam.ID, derived); err != nil {
			n.logger.Error("Failed to mark exam notified", "exam_id", exam.ID, "status", derived, "error", err)
			continue
		}
		sent++
		n.logger.Info("Exam status announced", "exam_id", exam.ID, "from", from, "to", derived)
	}
	return sent, nil
}
