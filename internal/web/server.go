/*
   signalroom - daily social post composer and intelligence pipeline
   Copyright (C) 2025  Unbewohnte (Kasyanov Nikolay Alexeevich)

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package web serves the dashboard API, the live update socket and the
// metrics endpoint.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signalroom/internal/calendar"
	"signalroom/internal/composer"
	"signalroom/internal/config"
	"signalroom/internal/db"
	"signalroom/internal/domain"
	"signalroom/internal/inference"
	"signalroom/internal/logging"
	"signalroom/internal/publish"
)

type Composer interface {
	Queue(ctx context.Context) ([]domain.Post, error)
	History(ctx context.Context) ([]domain.Post, error)
	Approve(ctx context.Context, id int64) (*domain.Post, error)
	Publish(ctx context.Context, id int64) (*domain.Post, error)
	MarkFailed(ctx context.Context, id int64, reason string) (*domain.Post, error)
	Reject(ctx context.Context, id int64) (*composer.RejectResult, error)
	Revise(ctx context.Context, id int64, feedback string) (*composer.ReviseResult, error)
	Edit(ctx context.Context, id int64, content string) (*domain.Post, error)
	Delete(ctx context.Context, id int64) error
	Draft(ctx context.Context, req composer.DraftRequest) (*domain.Post, error)
}

type Pipeline interface {
	Trigger(ctx context.Context, target string) error
}

type Stats interface {
	Stats(ctx context.Context) (*publish.Stats, error)
}

type ConnectionTester interface {
	Test(ctx context.Context, provider, apiKey string) (inference.ConnectionResult, error)
}

// Console runs chat commands typed into the dashboard.
type Console interface {
	Run(ctx context.Context, text string) (string, error)
}

type Store interface {
	Healthy(ctx context.Context) error
	GetReport(ctx context.Context, date string) (*domain.DailyReport, error)
	SignalsSince(ctx context.Context, date string) ([]domain.KeywordSignal, error)
	TopicsSince(ctx context.Context, date string) ([]domain.Topic, error)
	RecentRunLog(ctx context.Context, limit int) ([]domain.RunLogEntry, error)
	Settings(ctx context.Context) (map[string]string, error)
	SetSettings(ctx context.Context, values map[string]string) error
	Keywords(ctx context.Context) ([]domain.Keyword, error)
	AddKeyword(ctx context.Context, keyword string, category domain.Category) (*domain.Keyword, error)
	UpdateKeyword(ctx context.Context, id int64, patch db.KeywordPatch) (*domain.Keyword, error)
	DeactivateKeyword(ctx context.Context, id int64) (*domain.Keyword, error)
}

type Deps struct {
	Store     Store
	Composer  Composer
	Pipeline  Pipeline
	Stats     Stats
	Tester    ConnectionTester
	Console   Console
	Calendar  *calendar.Calendar
	Gatherer  prometheus.Gatherer
	StaticDir string
}

type Server struct {
	conf     *config.Config
	deps     Deps
	hub      *Hub
	validate *validator.Validate
	log      logging.Logger
}

func NewServer(conf *config.Config, deps Deps, log logging.Logger) *Server {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Server{
		conf:     conf,
		deps:     deps,
		hub:      NewHub(log),
		validate: validate,
		log:      log,
	}
}

// Hub is where ledger and lifecycle observers push live updates.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Handle("/ws", s.requireAuth(http.HandlerFunc(s.handleWebSocket)))
	r.Handle("/download/logs", s.requireAuth(http.HandlerFunc(s.handleDownloadLogs))).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireAuth)

	api.HandleFunc("/composer/draft", s.handleDraft).Methods(http.MethodPost)
	api.HandleFunc("/composer/queue", s.handleQueue).Methods(http.MethodGet)
	api.HandleFunc("/composer/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/composer/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/composer/export.xlsx", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/composer/{id:[0-9]+}/approve", s.handleApprove).Methods(http.MethodPatch)
	api.HandleFunc("/composer/{id:[0-9]+}/publish", s.handlePublish).Methods(http.MethodPatch)
	api.HandleFunc("/composer/{id:[0-9]+}/mark-failed", s.handleMarkFailed).Methods(http.MethodPatch)
	api.HandleFunc("/composer/{id:[0-9]+}/reject", s.handleReject).Methods(http.MethodPatch)
	api.HandleFunc("/composer/{id:[0-9]+}/revise", s.handleRevise).Methods(http.MethodPatch)
	api.HandleFunc("/composer/{id:[0-9]+}/edit", s.handleEdit).Methods(http.MethodPatch)
	api.HandleFunc("/composer/{id:[0-9]+}", s.handleDelete).Methods(http.MethodDelete)

	api.HandleFunc("/intelligence/today", s.handleToday).Methods(http.MethodGet)
	api.HandleFunc("/intelligence/report/{date}", s.handleReport).Methods(http.MethodGet)
	api.HandleFunc("/intelligence/report/{date}/html", s.handleReportHTML).Methods(http.MethodGet)
	api.HandleFunc("/intelligence/keywords", s.handleSignals).Methods(http.MethodGet)
	api.HandleFunc("/intelligence/topics", s.handleTopics).Methods(http.MethodGet)
	api.HandleFunc("/intelligence/run-log", s.handleRunLog).Methods(http.MethodGet)
	api.HandleFunc("/intelligence/trigger-run", s.handleTriggerRun).Methods(http.MethodPost)

	api.HandleFunc("/admin/config", s.handleGetConfig).Methods(http.MethodGet)
	api.HandleFunc("/admin/config", s.handlePutConfig).Methods(http.MethodPut)
	api.HandleFunc("/admin/test-connection", s.handleTestConnection).Methods(http.MethodPost)
	api.HandleFunc("/admin/keywords", s.handleListKeywords).Methods(http.MethodGet)
	api.HandleFunc("/admin/keywords", s.handleAddKeyword).Methods(http.MethodPost)
	api.HandleFunc("/admin/keywords/{id:[0-9]+}", s.handleUpdateKeyword).Methods(http.MethodPut)
	api.HandleFunc("/admin/keywords/{id:[0-9]+}", s.handleDeleteKeyword).Methods(http.MethodDelete)

	if s.deps.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.deps.StaticDir)))
	}

	return r
}

// Start serves until ctx is done and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.conf.Web.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.log.WithField("port", s.conf.Web.Port).Info("web server started")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.Close()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Healthy(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"db":      "disconnected",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "db": "connected"})
}

func (s *Server) handleDownloadLogs(w http.ResponseWriter, r *http.Request) {
	if s.conf.LogsFile == "" {
		writeError(w, fmt.Errorf("log file: %w", domain.ErrNotFound))
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=signalroom_logs.txt")
	w.Header().Set("Content-Type", "text/plain")
	http.ServeFile(w, r, s.conf.LogsFile)
}
