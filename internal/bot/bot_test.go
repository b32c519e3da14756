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

package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"signalroom/internal/calendar"
	"signalroom/internal/composer"
	"signalroom/internal/config"
	"signalroom/internal/domain"
	"signalroom/internal/intel"
	"signalroom/internal/logging"
	"signalroom/internal/publish"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
	fail func(c tgbotapi.Chattable) bool
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil && s.fail(c) {
		return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
	}
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

type fakeComposer struct {
	reject   *composer.RejectResult
	drafted  []composer.DraftRequest
	approved []int64
	err      error
}

func (f *fakeComposer) Queue(ctx context.Context) ([]domain.Post, error)   { return nil, nil }
func (f *fakeComposer) History(ctx context.Context) ([]domain.Post, error) { return nil, nil }

func (f *fakeComposer) Approve(ctx context.Context, id int64) (*domain.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.approved = append(f.approved, id)
	at := time.Date(2025, 7, 1, 2, 0, 0, 0, time.UTC)
	return &domain.Post{ID: id, Platform: domain.PlatformTwitter, Status: domain.StatusScheduled, ScheduledAt: &at, SourceTopic: "MCP ships", Content: "text"}, nil
}

func (f *fakeComposer) Publish(ctx context.Context, id int64) (*domain.Post, error) {
	diagnostic := "twitter returned status 403"
	return &domain.Post{ID: id, Status: domain.StatusFailed, Diagnostic: &diagnostic}, f.err
}

func (f *fakeComposer) Reject(ctx context.Context, id int64) (*composer.RejectResult, error) {
	return f.reject, f.err
}

func (f *fakeComposer) Revise(ctx context.Context, id int64, feedback string) (*composer.ReviseResult, error) {
	return &composer.ReviseResult{
		Rejected: composer.PostRef{ID: id, SourceTopic: "MCP ships"},
		Revision: &domain.Post{ID: id + 1, Status: domain.StatusDraft, Content: feedback},
	}, f.err
}

func (f *fakeComposer) Edit(ctx context.Context, id int64, content string) (*domain.Post, error) {
	return &domain.Post{ID: id, Content: content}, f.err
}

func (f *fakeComposer) Delete(ctx context.Context, id int64) error { return f.err }

func (f *fakeComposer) Draft(ctx context.Context, req composer.DraftRequest) (*domain.Post, error) {
	f.drafted = append(f.drafted, req)
	return &domain.Post{ID: 9, Platform: req.Platform, Status: domain.StatusDraft, SourceTopic: req.TopicTitle}, nil
}

type fakePipeline struct{ triggered []string }

func (f *fakePipeline) Trigger(ctx context.Context, target string) error {
	if !slices.Contains(f.Targets(), target) {
		return fmt.Errorf("unknown target: %w", domain.ErrInvalidInput)
	}
	f.triggered = append(f.triggered, target)
	return nil
}

func (f *fakePipeline) Targets() []string { return []string{"all", "reddit", "synthesizer"} }

// stepLog answers every poll with one new entry for step.
type stepLog struct{ step string }

func (s stepLog) LatestRunLogID(ctx context.Context) (int64, error) { return 10, nil }

func (s stepLog) RunLogAfter(ctx context.Context, afterID int64) ([]domain.RunLogEntry, error) {
	return []domain.RunLogEntry{{ID: afterID + 1, FunctionName: s.step, Status: domain.RunSuccess}}, nil
}

type fakeStats struct{}

func (fakeStats) Stats(ctx context.Context) (*publish.Stats, error) {
	return &publish.Stats{Date: "2025-07-01", Twitter: publish.PlatformStats{Count: 3, Limit: 16}, LinkedIn: publish.PlatformStats{Limit: 50}}, nil
}

type fakeReader struct {
	topics []domain.Topic
	report *domain.DailyReport
}

func (f *fakeReader) TopicsOn(ctx context.Context, date string, category domain.Category) ([]domain.Topic, error) {
	return f.topics, nil
}

func (f *fakeReader) TopicByTitle(ctx context.Context, date, title string) (*domain.Topic, error) {
	for _, t := range f.topics {
		if t.TopicTitle == title && t.Date == date {
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeReader) RecentRunLog(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	msg := "no Anthropic API key configured"
	return []domain.RunLogEntry{
		{FunctionName: "synthesizer", Status: domain.RunError, DurationMs: 12, ErrorMsg: &msg, CreatedAt: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
	}, nil
}

func (f *fakeReader) GetReport(ctx context.Context, date string) (*domain.DailyReport, error) {
	if f.report == nil || f.report.Date != date {
		return nil, domain.ErrNotFound
	}
	return f.report, nil
}

type fixture struct {
	bot      *Bot
	sender   *recordingSender
	composer *fakeComposer
	pipeline *fakePipeline
	reader   *fakeReader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	base, err := calendar.New(calendar.DefaultZone)
	require.NoError(t, err)
	cal := base.WithClock(func() time.Time { return time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC) })

	conf := config.DefaultConfig()
	conf.Telegram.AllowedUserIDs = []int64{42}
	conf.Telegram.ReportChatIDs = []int64{-100, -200}

	f := &fixture{
		sender:   &recordingSender{},
		composer: &fakeComposer{},
		pipeline: &fakePipeline{},
		reader:   &fakeReader{},
	}
	f.bot = newBot(f.sender, conf, Deps{
		Composer: f.composer,
		Pipeline: f.pipeline,
		Stats:    fakeStats{},
		Reader:   f.reader,
		Calendar: cal,
	}, logging.Discard())
	return f
}

func (f *fixture) say(text string) string {
	out, _ := f.bot.Dispatch(context.Background(), Request{ChatID: 1, UserID: 42, Text: text})
	return out
}

func TestSplitCommand(t *testing.T) {
	cases := map[string][2]string{
		"queue":                              {"queue", ""},
		"/Approve 12":                        {"approve", "12"},
		"/revise@ReviewBot 3 shorter please": {"revise", "3 shorter please"},
		"   ":                                {"", ""},
	}
	for in, want := range cases {
		name, args := splitCommand(in)
		require.Equal(t, want[0], name, in)
		require.Equal(t, want[1], args, in)
	}
}

func TestDispatchChecksAllowedUsers(t *testing.T) {
	f := newFixture(t)

	out, _ := f.bot.Dispatch(context.Background(), Request{UserID: 7, Text: "/queue"})
	require.Equal(t, "You are not allowed to use this bot.", out)

	f.bot.conf.Telegram.Public = true
	out, _ = f.bot.Dispatch(context.Background(), Request{UserID: 7, Text: "/queue"})
	require.Equal(t, "The queue is empty.", out)
}

func TestUnknownCommandSuggestsNearest(t *testing.T) {
	f := newFixture(t)

	out, markdown := f.bot.Dispatch(context.Background(), Request{UserID: 42, Text: "/aprove 3"})
	require.True(t, markdown)
	require.Contains(t, out, "Unknown command")
	require.Contains(t, out, "`approve`")
}

func TestApproveFormatsScheduleInLocalTime(t *testing.T) {
	f := newFixture(t)

	out := f.say("/approve 12")
	require.Contains(t, out, "✅ Scheduled")
	require.Contains(t, out, "#12 [twitter] scheduled at Jul 1 12:00")
	require.Equal(t, []int64{12}, f.composer.approved)

	require.Contains(t, f.say("/approve twelve"), "give a post ID")

	f.composer.err = fmt.Errorf("post 12 is published: %w", domain.ErrConflict)
	require.Contains(t, f.say("/approve 12"), "not possible in the post's current state")
}

func TestPublishFailureShowsDiagnostic(t *testing.T) {
	f := newFixture(t)

	out := f.say("/publish 5")
	require.Contains(t, out, "⚠️ Publish failed")
	require.Contains(t, out, "Error: twitter returned status 403")
}

func TestRejectReportsReplacement(t *testing.T) {
	f := newFixture(t)

	f.composer.reject = &composer.RejectResult{
		Rejected:    composer.PostRef{ID: 4, SourceTopic: "MCP ships"},
		Replacement: &domain.Post{ID: 8, Platform: domain.PlatformLinkedIn, Status: domain.StatusDraft, SourceTopic: "Agents at work"},
	}
	out := f.say("/reject 4")
	require.Contains(t, out, "Rejected #4 (MCP ships).")
	require.Contains(t, out, "#8 [linkedin] draft")

	f.composer.reject = &composer.RejectResult{
		Rejected:         composer.PostRef{ID: 4, SourceTopic: "MCP ships"},
		ReplacementError: "no unused topics left today",
	}
	require.Contains(t, f.say("/reject 4"), "No replacement: no unused topics left today")
}

func TestReviseNeedsFeedback(t *testing.T) {
	f := newFixture(t)

	require.Contains(t, f.say("/revise 4"), "feedback is required")

	out := f.say("/revise 4 name the regulation")
	require.Contains(t, out, "Revised #4.")
	require.Contains(t, out, "name the regulation")
}

func TestDraftFromTodaysTopic(t *testing.T) {
	f := newFixture(t)
	f.reader.topics = []domain.Topic{{
		Date:       "2025-07-01",
		TopicTitle: "MCP ships",
		Summary:    "Protocol adoption",
		Keyword:    "mcp",
		SampleURLs: []string{"https://example.com/a"},
	}}

	require.Contains(t, f.say("/draft mastodon MCP ships"), "usage: draft")
	require.Contains(t, f.say("/draft twitter Unknown"), "no such post or topic")

	out := f.say("/draft LinkedIn MCP ships")
	require.Contains(t, out, "📝 New draft")
	require.Len(t, f.composer.drafted, 1)
	require.Equal(t, composer.DraftRequest{
		TopicTitle:  "MCP ships",
		Summary:     "Protocol adoption",
		Keywords:    []string{"mcp"},
		SourceLinks: []string{"https://example.com/a"},
		Platform:    domain.PlatformLinkedIn,
	}, f.composer.drafted[0])
}

func TestTriggerValidatesTarget(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, "🚀 Started all.", f.say("/trigger"))
	require.Equal(t, "🚀 Started synthesizer.", f.say("/trigger Synthesizer"))

	out := f.say("/trigger mastodon")
	require.Contains(t, out, `unknown target "mastodon", pick one of: all, reddit, synthesizer`)
	require.Equal(t, []string{"all", "synthesizer"}, f.pipeline.triggered)
}

func TestTriggerOneSourceReportsWhenItsStepFinishes(t *testing.T) {
	f := newFixture(t)
	watcher := intel.NewWatcher(stepLog{step: "reddit"})
	watcher.Interval = time.Millisecond
	watcher.MaxPolls = 3
	f.bot.deps.Watcher = watcher

	require.Equal(t, "🚀 Started reddit.", f.say("/trigger reddit"))

	require.Eventually(t, func() bool {
		f.sender.mu.Lock()
		defer f.sender.mu.Unlock()
		for _, c := range f.sender.sent {
			if msg, ok := c.(tgbotapi.MessageConfig); ok && msg.ChatID == 1 {
				return msg.Text == "✅ Pipeline finished."
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestReportAndRunLog(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, "No report for 2025-07-01.", f.say("/report"))

	f.reader.report = &domain.DailyReport{Date: "2025-06-30", SlackPostText: "*Ecosystem*\n<https://example.com|thread>"}
	require.Equal(t, "*Ecosystem*\n[thread](https://example.com)", f.say("/report 2025-06-30"))

	out := f.say("/runlog")
	require.Contains(t, out, "❌ 07-01 10:00 synthesizer 12ms: no Anthropic API key configured")
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, "Published on 2025-07-01\nTwitter: 3/16\nLinkedIn: 0/50", f.say("/stats"))
}

func TestSpreadsheetUploadsDocument(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, "", f.say("/xlsx"))
	require.Len(t, f.sender.sent, 1)
	doc, ok := f.sender.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	require.Equal(t, int64(1), doc.ChatID)

	console := NewConsole(f.bot.conf, f.bot.deps, logging.Discard())
	_, err := console.Run(context.Background(), "xlsx")
	require.ErrorContains(t, err, "only available in Telegram")
}

func TestNotifyReachesReportChats(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.bot.Notify(context.Background(), "see <https://example.com|this>"))
	require.Len(t, f.sender.sent, 2)
	msg := f.sender.sent[0].(tgbotapi.MessageConfig)
	require.Equal(t, int64(-100), msg.ChatID)
	require.Equal(t, "see [this](https://example.com)", msg.Text)

	f.sender.sent = nil
	f.sender.fail = func(tgbotapi.Chattable) bool { return true }
	require.ErrorContains(t, f.bot.Notify(context.Background(), "x"), "not delivered to any of 2")

	f.bot.conf.Telegram.ReportChatIDs = nil
	require.Error(t, f.bot.Notify(context.Background(), "x"))
}

func TestReplyFallsBackToPlainText(t *testing.T) {
	f := newFixture(t)
	f.sender.fail = func(c tgbotapi.Chattable) bool {
		return c.(tgbotapi.MessageConfig).ParseMode != ""
	}

	f.bot.reply(1, 2, "*unbalanced", true)
	require.Len(t, f.sender.sent, 1)
	require.Equal(t, "", f.sender.sent[0].(tgbotapi.MessageConfig).ParseMode)
}
