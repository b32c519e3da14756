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

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"signalroom/internal/calendar"
	"signalroom/internal/composer"
	"signalroom/internal/config"
	"signalroom/internal/db"
	"signalroom/internal/domain"
	"signalroom/internal/inference"
	"signalroom/internal/logging"
	"signalroom/internal/publish"
)

var now = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

type fakeComposer struct {
	posts   []domain.Post
	drafted []composer.DraftRequest
	err     error
}

func (f *fakeComposer) Queue(ctx context.Context) ([]domain.Post, error)   { return f.posts, f.err }
func (f *fakeComposer) History(ctx context.Context) ([]domain.Post, error) { return nil, f.err }

func (f *fakeComposer) Approve(ctx context.Context, id int64) (*domain.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Post{ID: id, Status: domain.StatusScheduled}, nil
}

func (f *fakeComposer) Publish(ctx context.Context, id int64) (*domain.Post, error) {
	return nil, f.err
}

func (f *fakeComposer) MarkFailed(ctx context.Context, id int64, reason string) (*domain.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Post{ID: id, Status: domain.StatusFailed, Diagnostic: &reason}, nil
}

func (f *fakeComposer) Reject(ctx context.Context, id int64) (*composer.RejectResult, error) {
	return &composer.RejectResult{Rejected: composer.PostRef{ID: id}}, f.err
}

func (f *fakeComposer) Revise(ctx context.Context, id int64, feedback string) (*composer.ReviseResult, error) {
	return &composer.ReviseResult{Revision: &domain.Post{Content: feedback}}, f.err
}

func (f *fakeComposer) Edit(ctx context.Context, id int64, content string) (*domain.Post, error) {
	return &domain.Post{ID: id, Content: content}, f.err
}

func (f *fakeComposer) Delete(ctx context.Context, id int64) error { return f.err }

func (f *fakeComposer) Draft(ctx context.Context, req composer.DraftRequest) (*domain.Post, error) {
	f.drafted = append(f.drafted, req)
	return &domain.Post{ID: 1, Platform: req.Platform, SourceTopic: req.TopicTitle, Status: domain.StatusDraft}, f.err
}

type fakePipeline struct{ targets []string }

func (f *fakePipeline) Trigger(ctx context.Context, target string) error {
	if target != "all" && target != "reddit" && target != "synthesizer" {
		return fmt.Errorf("unknown target %q: %w", target, domain.ErrInvalidInput)
	}
	f.targets = append(f.targets, target)
	return nil
}

type fakeStats struct{}

func (fakeStats) Stats(ctx context.Context) (*publish.Stats, error) {
	return &publish.Stats{
		Date:     "2025-07-01",
		Twitter:  publish.PlatformStats{Count: 2, Limit: 16},
		LinkedIn: publish.PlatformStats{Count: 0, Limit: 50},
	}, nil
}

type fakeTester struct{}

func (fakeTester) Test(ctx context.Context, provider, apiKey string) (inference.ConnectionResult, error) {
	if provider != "anthropic" {
		return inference.ConnectionResult{}, fmt.Errorf("unknown provider: %w", domain.ErrInvalidInput)
	}
	return inference.ConnectionResult{Connected: apiKey == "good", Provider: provider}, nil
}

type sickStore struct{ Store }

func (sickStore) Healthy(ctx context.Context) error { return errors.New("database is locked") }

type fixture struct {
	db       *db.DB
	composer *fakeComposer
	pipeline *fakePipeline
	server   *Server
	handler  http.Handler
	cookie   *http.Cookie
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := db.NewDB(filepath.Join(t.TempDir(), "web.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	base, err := calendar.New(calendar.DefaultZone)
	require.NoError(t, err)
	cal := base.WithClock(func() time.Time { return now })

	conf := config.DefaultConfig()
	conf.Web.Username = "admin"
	conf.Web.Password = "hunter2"
	conf.Web.JWTSecret = "test-secret"

	f := &fixture{db: store, composer: &fakeComposer{}, pipeline: &fakePipeline{}}
	f.server = NewServer(conf, Deps{
		Store:    store,
		Composer: f.composer,
		Pipeline: f.pipeline,
		Stats:    fakeStats{},
		Tester:   fakeTester{},
		Calendar: cal,
	}, logging.Discard())
	f.handler = f.server.Router()
	f.cookie = f.login(t, "admin", "hunter2")
	return f
}

func (f *fixture) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()

	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == authCookie {
			return c
		}
	}
	return nil
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if f.cookie != nil {
		req.AddCookie(f.cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLoginGuardsAPI(t *testing.T) {
	f := newFixture(t)
	require.NotNil(t, f.cookie)
	require.Nil(t, f.login(t, "admin", "wrong"))

	authed := f.do(t, http.MethodGet, "/api/composer/queue", "")
	require.Equal(t, http.StatusOK, authed.Code)

	f.cookie = nil
	anonymous := f.do(t, http.MethodGet, "/api/composer/queue", "")
	require.Equal(t, http.StatusUnauthorized, anonymous.Code)

	health := f.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, health.Code)
	require.Equal(t, map[string]any{"status": "ok", "db": "connected"}, decodeBody(t, health))
}

func TestHealthReportsDisconnectedStore(t *testing.T) {
	f := newFixture(t)
	f.server.deps.Store = sickStore{f.db}

	rec := f.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "disconnected", body["db"])
	require.Equal(t, "database is locked", body["message"])
}

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("x: %w", domain.ErrInvalidInput):                         http.StatusBadRequest,
		fmt.Errorf("x: %w", domain.ErrNotFound):                             http.StatusNotFound,
		fmt.Errorf("x: %w", domain.ErrConflict):                             http.StatusConflict,
		inference.ErrNoCredential:                                           http.StatusPreconditionFailed,
		&inference.UpstreamError{Provider: "anthropic", Body: "overloaded"}: http.StatusBadGateway,
		composer.ErrEmptyGeneration:                                         http.StatusBadGateway,
		errors.New("disk full"):                                             http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, statusOf(err), err.Error())
	}
}

func TestDraftValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/composer/draft", `{"platform":"twitter"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeBody(t, rec)["error"], "topicTitle is required")

	rec = f.do(t, http.MethodPost, "/api/composer/draft", `{"platform":"mastodon","topicTitle":"A"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeBody(t, rec)["error"], "platform must be one of: twitter, linkedin")

	rec = f.do(t, http.MethodPost, "/api/composer/draft", `{"platform":"linkedin","topicTitle":"A","topicSummary":"s","keywords":["mcp"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.composer.drafted, 1)
	require.Equal(t, "s", f.composer.drafted[0].Summary)
}

func TestLifecycleErrorsMapToStatus(t *testing.T) {
	f := newFixture(t)

	f.composer.err = fmt.Errorf("post 4 is published: %w", domain.ErrConflict)
	rec := f.do(t, http.MethodPatch, "/api/composer/4/approve", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "post 4 is published: not in required status", decodeBody(t, rec)["error"])

	f.composer.err = nil
	rec = f.do(t, http.MethodPatch, "/api/composer/4/revise", `{"feedback":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/composer/4/revise", `{"feedback":"shorter"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMarkFailed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/api/composer/4/mark-failed", `{"reason":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/composer/4/mark-failed", `{"reason":"taken down"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "failed", body["status"])

	f.composer.err = fmt.Errorf("post 4 is being published: %w", domain.ErrConflict)
	rec = f.do(t, http.MethodPatch, "/api/composer/4/mark-failed", `{"reason":"taken down"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestStats(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/composer/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"date":"2025-07-01","twitter":{"count":2,"limit":16},"linkedin":{"count":0,"limit":50}}`, rec.Body.String())
}

func TestTriggerRun(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/intelligence/trigger-run", `{"platform":"reddit"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"started","platform":"reddit"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/intelligence/trigger-run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"started","platform":"all"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/intelligence/trigger-run", `{"platform":"mastodon"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, []string{"reddit", "all"}, f.pipeline.targets)
}

func TestReports(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/intelligence/today", "")
	require.JSONEq(t, `{"date":"2025-07-01","status":"no_report_yet"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/intelligence/report/2025-06-30", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"No report for this date"}`, rec.Body.String())

	require.NoError(t, f.db.UpsertReport(ctx, domain.DailyReport{
		Date:          "2025-07-01",
		SlackPostText: "*Ecosystem*\n*MCP ships*  3 posts\n<https://news.ycombinator.com/item?id=1|HN thread>",
	}))

	rec = f.do(t, http.MethodGet, "/api/intelligence/today", "")
	require.Equal(t, "2025-07-01", decodeBody(t, rec)["date"])

	rec = f.do(t, http.MethodGet, "/api/intelligence/report/2025-07-01/html", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<strong>MCP ships</strong>")
	require.Contains(t, rec.Body.String(), `<a href="https://news.ycombinator.com/item?id=1">HN thread</a>`)
}

func TestSignalsAndTopicsWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.db.SaveSignals(ctx, []domain.KeywordSignal{
		{Date: "2025-07-01", Keyword: "mcp", PostCount: 3, Sentiment: "positive", Category: domain.CategoryEcosystem},
		{Date: "2025-06-20", Keyword: "agents", PostCount: 1, Sentiment: "neutral", Category: domain.CategoryEcosystem},
	}))

	var signals []domain.KeywordSignal
	rec := f.do(t, http.MethodGet, "/api/intelligence/keywords", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signals))
	require.Len(t, signals, 1)

	rec = f.do(t, http.MethodGet, "/api/intelligence/keywords?days=30", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signals))
	require.Len(t, signals, 2)

	rec = f.do(t, http.MethodGet, "/api/intelligence/topics?days=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigMasksSecrets(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/admin/config", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/admin/config", `{"id": "3"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/admin/config",
		`{"anthropic_api_key":"sk-ant-0123456789","openai_api_key":"short","llm_model":"claude-haiku-4-5-20251001","id":"9"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/admin/config", "")
	body := decodeBody(t, rec)
	require.Equal(t, "sk-a••••6789", body["anthropic_api_key"])
	require.Equal(t, "••••••••", body["openai_api_key"])
	require.Equal(t, "claude-haiku-4-5-20251001", body["llm_model"])
	require.NotContains(t, body, "id")

	stored, ok, err := f.db.Setting(context.Background(), inference.SettingAPIKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sk-ant-0123456789", stored)
}

func TestTestConnection(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/admin/test-connection", `{"provider":"anthropic","api_key":"good"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["connected"])

	rec = f.do(t, http.MethodPost, "/api/admin/test-connection", `{"provider":"gemini"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKeywordAdmin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/admin/keywords", `{"keyword":"  MCP ","category":"bogus"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var added domain.Keyword
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	require.Equal(t, "mcp", added.Keyword)
	require.Equal(t, domain.CategoryEcosystem, added.Category)

	rec = f.do(t, http.MethodPost, "/api/admin/keywords", `{"keyword":"mcp"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/admin/keywords/%d", added.ID), `{"category":"enterprise"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "enterprise", decodeBody(t, rec)["category"])

	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/admin/keywords/%d", added.ID), `{"category":"sports"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/keywords/%d", added.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, decodeBody(t, rec)["active"])

	rec = f.do(t, http.MethodDelete, "/api/admin/keywords/999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.composer.posts = []domain.Post{{ID: 1, Platform: domain.PlatformTwitter, Content: "hello", Status: domain.StatusDraft}}

	rec := f.do(t, http.MethodGet, "/api/composer/export.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "posts-2025-07-01.xlsx")
	require.NotZero(t, rec.Body.Len())
}

func TestWebSocketReceivesRunLog(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	header := http.Header{}
	header.Set("Cookie", f.cookie.Name+"="+f.cookie.Value)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.server.Hub().Clients() == 1 }, time.Second, 10*time.Millisecond)

	f.server.Hub().PublishRunLog(domain.RunLogEntry{ID: 7, FunctionName: "synthesizer", Status: domain.RunSuccess})

	var msg struct {
		Type string             `json:"type"`
		Data domain.RunLogEntry `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, MessageRunLog, msg.Type)
	require.Equal(t, int64(7), msg.Data.ID)
}
