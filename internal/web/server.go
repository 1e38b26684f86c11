package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/srt-reserver/internal/application/usecases"
	"github.com/example/srt-reserver/internal/auth"
	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/example/srt-reserver/internal/domain/trip"
	"github.com/example/srt-reserver/internal/logging"
	"github.com/example/srt-reserver/internal/runs"
	"github.com/example/srt-reserver/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed templates/*.html static/*
var assets embed.FS

var pages = map[string]*template.Template{
	"login":   mustParse("templates/login.html"),
	"runs":    mustParse("templates/runs.html"),
	"new_run": mustParse("templates/new_run.html"),
}

func mustParse(name string) *template.Template {
	return template.Must(template.ParseFS(assets, "templates/base.html", name))
}

type OperatorVerifier interface {
	Verify(ctx context.Context, username, password string) (auth.Operator, error)
}

type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]runs.Run, error)
}

type RunDispatcher interface {
	Submit(ctx context.Context, t trip.Request, creds reservation.Credentials, opts ...scheduler.SubmitOption) (scheduler.RunID, error)
	Cancel(id scheduler.RunID) error
	Active() []scheduler.RunInfo
}

type Server struct {
	Sessions   *auth.Sessions
	Operators  OperatorVerifier
	Runs       RunLister
	Dispatcher RunDispatcher
	// Credentials is the SRT account that console runs sign in with.
	Credentials reservation.Credentials

	Metrics http.Handler
	Health  func(ctx context.Context) error
	Logger  *slog.Logger
}

type formField struct {
	Name   string
	Prompt string
	Value  string
}

type pageData struct {
	Title    string
	Operator string
	Flash    string

	Active   []scheduler.RunInfo
	Recent   []runs.Run
	Fields   []formField
	Stations []string
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	static, _ := fs.Sub(assets, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/healthz", s.handleHealth)
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics)
	}

	r.Get("/login", s.handleLoginForm)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.Sessions.RequireAuth)
		r.Get("/", s.handleRuns)
		r.Get("/runs/new", s.handleRunNew)
		r.Post("/runs", s.handleRunCreate)
		r.Post("/runs/{id}/cancel", s.handleRunCancel)
	})
	return r
}

func (s *Server) log() *slog.Logger { return logging.OrNop(s.Logger) }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Health != nil {
		if err := s.Health(r.Context()); err != nil {
			http.Error(w, "unhealthy: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login", pageData{Title: "Sign in"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	op, err := s.Operators.Verify(r.Context(), r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.log().Error("verify operator", "error", err)
		}
		s.render(w, http.StatusUnauthorized, "login", pageData{Title: "Sign in", Flash: "Invalid username/password"})
		return
	}
	if err := s.Sessions.Set(w, r, op); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	data := pageData{Title: "Runs", Operator: sess.Username, Active: s.Dispatcher.Active()}
	if s.Runs != nil {
		recent, err := s.Runs.ListRecent(r.Context(), 50)
		if err != nil {
			s.log().Error("list runs", "error", err)
			data.Flash = "Run history is unavailable"
		}
		data.Recent = recent
	}
	s.render(w, http.StatusOK, "runs", data)
}

func (s *Server) handleRunNew(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	defaults := map[string]string{
		trip.FieldDate.String():        time.Now().AddDate(0, 0, 1).Format("20060102"),
		trip.FieldHour.String():        "08",
		trip.FieldPassengers.String():  "1",
		trip.FieldWindowStart.String(): "1",
		trip.FieldWindowEnd.String():   "2",
	}
	s.render(w, http.StatusOK, "new_run", s.formPage(sess.Username, "", func(name string) string { return defaults[name] }))
}

func (s *Server) handleRunCreate(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b := trip.NewBuilder()
	for _, f := range trip.Fields() {
		if err := b.Set(f, r.FormValue(f.String())); err != nil {
			s.render(w, http.StatusBadRequest, "new_run", s.formPage(sess.Username, err.Error(), r.FormValue))
			return
		}
	}
	t, err := b.Build()
	if err != nil {
		s.render(w, http.StatusBadRequest, "new_run", s.formPage(sess.Username, err.Error(), r.FormValue))
		return
	}

	id, err := s.Dispatcher.Submit(r.Context(), t, s.Credentials, scheduler.StartedBy(sess.Username))
	switch {
	case errors.Is(err, scheduler.ErrDuplicateRun):
		s.render(w, http.StatusConflict, "new_run", s.formPage(sess.Username, err.Error(), r.FormValue))
		return
	case err != nil:
		s.log().Error("submit run", "error", err)
		s.render(w, http.StatusInternalServerError, "new_run", s.formPage(sess.Username, usecases.UserMessage(usecases.Result{}, err), r.FormValue))
		return
	}
	s.log().Info("run started from console", "run", id, "operator", sess.Username)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleRunCancel(w http.ResponseWriter, r *http.Request) {
	id := scheduler.RunID(chi.URLParam(r, "id"))
	if err := s.Dispatcher.Cancel(id); err != nil {
		if errors.Is(err, scheduler.ErrUnknownRun) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) formPage(operator, flash string, value func(string) string) pageData {
	fields := make([]formField, 0, len(trip.Fields()))
	for _, f := range trip.Fields() {
		fields = append(fields, formField{Name: f.String(), Prompt: f.Prompt(), Value: value(f.String())})
	}
	return pageData{Title: "New run", Operator: operator, Flash: flash, Fields: fields, Stations: trip.Stations()}
}

func (s *Server) render(w http.ResponseWriter, status int, page string, data pageData) {
	t, ok := pages[page]
	if !ok {
		http.Error(w, "unknown page "+page, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		s.log().Error("render", "page", page, "error", err)
	}
}

// Start serves h on addr until ctx is canceled.
func Start(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logging.OrNop(logger).Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
