package notify

import (
	"context"
	"log/slog"

	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/example/srt-reserver/internal/logging"
)

// Log only writes the message to the logger. It is used when no webhook is configured.
type Log struct {
	Logger *slog.Logger
}

func (n Log) Notify(ctx context.Context, message string) {
	logging.OrNop(n.Logger).Info("notification", "message", message)
}

// Func adapts a plain function to reservation.Notifier.
type Func func(ctx context.Context, message string)

func (f Func) Notify(ctx context.Context, message string) { f(ctx, message) }

// Multi delivers to every notifier in order.
type Multi []reservation.Notifier

func (m Multi) Notify(ctx context.Context, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, message)
		}
	}
}

// New returns a Slack notifier for webhookURL, or a log-only notifier when it is empty.
func New(webhookURL string, logger *slog.Logger) reservation.Notifier {
	if webhookURL == "" {
		return Log{Logger: logger}
	}
	return NewSlack(webhookURL, logger)
}
