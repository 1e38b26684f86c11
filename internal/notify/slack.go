package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/example/srt-reserver/internal/logging"
)

// Slack posts messages to an incoming-webhook URL.
type Slack struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

func NewSlack(webhookURL string, logger *slog.Logger) *Slack {
	return &Slack{
		url:    webhookURL,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logging.OrNop(logger),
	}
}

// Notify never returns an error; delivery problems are logged.
func (s *Slack) Notify(ctx context.Context, message string) {
	if err := s.send(ctx, message); err != nil {
		s.logger.Warn("slack notification not delivered", "error", err)
		return
	}
	s.logger.Debug("slack notification delivered")
}

func (s *Slack) send(ctx context.Context, message string) error {
	b, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return fmt.Errorf("%w: %v", reservation.ErrNotificationDelivery, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %v", reservation.ErrNotificationDelivery, err)
	}
	req.Header.Set("content-type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", reservation.ErrNotificationDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: slack http %d: %s", reservation.ErrNotificationDelivery, resp.StatusCode, string(body))
	}
	return nil
}
