package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/srt-reserver/internal/application/usecases"
	"github.com/example/srt-reserver/internal/config"
	"github.com/example/srt-reserver/internal/db"
	"github.com/example/srt-reserver/internal/infrastructure/redislock"
	"github.com/example/srt-reserver/internal/infrastructure/srt"
	"github.com/example/srt-reserver/internal/migrate"
	"github.com/example/srt-reserver/internal/notify"
	"github.com/example/srt-reserver/internal/poller"
	"github.com/example/srt-reserver/internal/scheduler"
)

// services is what reserve and server both build from config.
type services struct {
	cfg    config.Config
	log    *slog.Logger
	db     *db.DB
	guard  scheduler.Guard
	closer []func()
}

// openServices connects the optional backends. The database is opened and
// migrated when DATABASE_URL is set or needDB is true.
func openServices(ctx context.Context, cfg config.Config, log *slog.Logger, needDB bool) (*services, error) {
	s := &services{cfg: cfg, log: log, guard: &scheduler.MemoryGuard{}}

	if cfg.DatabaseURL != "" || needDB {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		d, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closer = append(s.closer, d.Close)
		if err := d.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		if err := migrate.Up(ctx, d, log); err != nil {
			s.Close()
			return nil, err
		}
		s.db = d
	}

	if cfg.RedisURL != "" {
		g, err := redislock.Dial(ctx, cfg.RedisURL, "srtreserve:", log)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closer = append(s.closer, func() { _ = g.Close() })
		s.guard = g
	}
	return s, nil
}

func (s *services) Close() {
	for i := len(s.closer) - 1; i >= 0; i-- {
		s.closer[i]()
	}
	s.closer = nil
}

func (s *services) session(obs poller.Observer) (usecases.ReservationSession, error) {
	opener, err := srt.NewOpener(srt.Options{
		BaseURL:           s.cfg.SRTBaseURL,
		Timeout:           s.cfg.HTTPTimeout,
		RequestsPerSecond: s.cfg.RequestsPerSec,
		Logger:            s.log,
	})
	if err != nil {
		return usecases.ReservationSession{}, err
	}
	return usecases.ReservationSession{
		Surfaces:       opener,
		Notifier:       notify.New(s.cfg.SlackWebhookURL, s.log),
		Policy:         s.cfg.PollPolicy(),
		Observer:       obs,
		Logger:         s.log,
		NotifyFailures: s.cfg.NotifyFailures,
	}, nil
}
