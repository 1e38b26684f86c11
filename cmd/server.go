package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/srt-reserver/internal/application/usecases"
	"github.com/example/srt-reserver/internal/auth"
	"github.com/example/srt-reserver/internal/metrics"
	"github.com/example/srt-reserver/internal/runs"
	"github.com/example/srt-reserver/internal/scheduler"
	"github.com/example/srt-reserver/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownGrace = 30 * time.Second

func newServerCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the operator console and the reservation dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.setup()
			if err != nil {
				return err
			}
			if err := cfg.RequireServer(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			svc, err := openServices(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer svc.Close()

			repo := runs.NewRepo(svc.db)
			sweeper := &runs.Sweeper{Store: repo, StaleAfter: cfg.StaleRunAfter(), Logger: log}
			go sweeper.Run(ctx)

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.New(reg)

			session, err := svc.session(m)
			if err != nil {
				return err
			}
			d := &scheduler.Dispatcher{
				Session: session,
				Guard:   svc.guard,
				Store:   repo,
				Metrics: m,
				Logger:  log,
				OnDone: func(r scheduler.Report) {
					log.Info("run done", "run", string(r.ID), "started_by", r.StartedBy, "result", usecases.UserMessage(r.Result, r.Err))
				},
			}

			ws := &web.Server{
				Sessions:    auth.NewSessions(cfg.CookieHashKey, cfg.CookieBlockKey),
				Operators:   auth.NewOperators(svc.db),
				Runs:        repo,
				Dispatcher:  d,
				Credentials: cfg.Credentials(),
				Metrics:     metrics.Handler(reg),
				Health:      svc.db.Ping,
				Logger:      log,
			}
			serveErr := web.Start(ctx, cfg.ListenAddr, ws.Routes(), log)

			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownGrace)
			defer stop()
			if err := d.Shutdown(shutdownCtx); err != nil {
				log.Warn("runs still active at shutdown", "error", err)
			}
			return serveErr
		},
	}
	return cmd
}
