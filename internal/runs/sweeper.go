package runs

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/srt-reserver/internal/logging"
)

// StaleMarker is satisfied by *Repo.
type StaleMarker interface {
	MarkStale(ctx context.Context, staleAfter time.Duration) (int64, error)
}

// Sweeper fails runs left pending by a process that stopped heartbeating.
// It sweeps once at start and then every Every until ctx is done.
type Sweeper struct {
	Store      StaleMarker
	StaleAfter time.Duration
	Every      time.Duration
	Logger     *slog.Logger
}

func (s *Sweeper) Run(ctx context.Context) {
	log := logging.OrNop(s.Logger)
	every := s.Every
	if every <= 0 {
		every = s.StaleAfter
	}

	s.sweep(ctx, log)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep(ctx, log)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, log *slog.Logger) {
	n, err := s.Store.MarkStale(ctx, s.StaleAfter)
	switch {
	case err != nil && ctx.Err() == nil:
		log.Warn("sweep stale runs", "error", err)
	case n > 0:
		log.Warn("marked runs without progress as failed", "count", n, "stale_after", s.StaleAfter)
	}
}
