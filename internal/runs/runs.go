package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/example/srt-reserver/internal/db"
	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/example/srt-reserver/internal/domain/trip"
)

// Run is one persisted reservation attempt.
type Run struct {
	ID            string
	Fingerprint   string
	Departure     string
	Arrival       string
	TravelDate    time.Time
	Hour          int
	Passengers    int
	WindowStart   int
	WindowEnd     int
	AllowWaitlist bool
	StartedBy     string

	Status       reservation.OutcomeKind
	Position     *int
	Reason       *string
	RefreshCount int

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}

// New describes a pending run of t.
func New(id string, t trip.Request, startedBy string) Run {
	return Run{
		ID:            id,
		Fingerprint:   t.Fingerprint(),
		Departure:     t.Departure(),
		Arrival:       t.Arrival(),
		TravelDate:    t.Date(),
		Hour:          t.Hour(),
		Passengers:    t.Passengers(),
		WindowStart:   t.WindowStart(),
		WindowEnd:     t.WindowEnd(),
		AllowWaitlist: t.AllowWaitlist(),
		StartedBy:     startedBy,
		Status:        reservation.OutcomePending,
	}
}

// Outcome rebuilds the outcome recorded for r.
func (r Run) Outcome() reservation.Outcome {
	o := reservation.Outcome{Kind: r.Status}
	if r.Position != nil {
		o.Position = *r.Position
	}
	if r.Reason != nil {
		o.Reason = *r.Reason
	}
	return o
}

func (r Run) Duration(now time.Time) time.Duration {
	end := now
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	return end.Sub(r.CreatedAt).Round(time.Second)
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

const columns = `id,fingerprint,departure,arrival,travel_date,departure_hour,passengers,window_start,window_end,allow_waitlist,started_by,status,position,reason,refresh_count,created_at,updated_at,finished_at`

func (r *Repo) Create(ctx context.Context, run Run) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO reservation_runs(id,fingerprint,departure,arrival,travel_date,departure_hour,passengers,window_start,window_end,allow_waitlist,started_by,status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		run.ID, run.Fingerprint, run.Departure, run.Arrival, run.TravelDate, run.Hour, run.Passengers,
		run.WindowStart, run.WindowEnd, run.AllowWaitlist, run.StartedBy, string(run.Status),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (r *Repo) RecordRefresh(ctx context.Context, id string, refreshCount int) error {
	n, err := r.db.Exec(ctx, `UPDATE reservation_runs SET refresh_count=$2, updated_at=now() WHERE id=$1 AND status='pending'`, id, refreshCount)
	if err != nil {
		return db.WrapNotFound(err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// Finish stores the terminal outcome. Pending outcomes are refused.
func (r *Repo) Finish(ctx context.Context, id string, o reservation.Outcome, refreshCount int) error {
	if !o.Terminal() {
		return fmt.Errorf("finish run %s: outcome %q is not terminal", id, o.Kind)
	}
	var position *int
	if o.Position > 0 {
		position = &o.Position
	}
	var reason *string
	if o.Reason != "" {
		reason = &o.Reason
	}
	n, err := r.db.Exec(ctx, `
UPDATE reservation_runs
SET status=$2, position=$3, reason=$4, refresh_count=$5, finished_at=now(), updated_at=now()
WHERE id=$1`, id, string(o.Kind), position, reason, refreshCount)
	if err != nil {
		return db.WrapNotFound(err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// MarkStale fails pending runs whose last heartbeat is older than staleAfter.
// A live run heartbeats on every refresh, so only runs whose process went away
// are swept.
func (r *Repo) MarkStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	n, err := r.db.Exec(ctx, `
UPDATE reservation_runs
SET status='failed', reason='interrupted: no progress from its process', finished_at=now(), updated_at=now()
WHERE status='pending' AND updated_at < now() - make_interval(secs => $1)`, staleAfter.Seconds())
	if err != nil {
		return 0, fmt.Errorf("mark stale runs: %w", err)
	}
	return n, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Run, error) {
	run, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM reservation_runs WHERE id=$1`, id))
	if err != nil {
		return Run{}, db.WrapNotFound(err)
	}
	return run, nil
}

func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM reservation_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scan(row db.Row) (Run, error) {
	var (
		run      Run
		status   string
		position *int16
	)
	err := row.Scan(
		&run.ID, &run.Fingerprint, &run.Departure, &run.Arrival, &run.TravelDate, &run.Hour, &run.Passengers,
		&run.WindowStart, &run.WindowEnd, &run.AllowWaitlist, &run.StartedBy, &status, &position, &run.Reason,
		&run.RefreshCount, &run.CreatedAt, &run.UpdatedAt, &run.FinishedAt,
	)
	if err != nil {
		return Run{}, err
	}
	run.Status = reservation.OutcomeKind(status)
	if position != nil {
		p := int(*position)
		run.Position = &p
	}
	return run, nil
}
