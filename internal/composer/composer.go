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

// Package composer curates the day's topics, drafts posts from them and owns
// every human-driven transition of the post lifecycle.
package composer

import (
	"context"
	"time"

	"signalroom/internal/calendar"
	"signalroom/internal/domain"
	"signalroom/internal/inference"
	"signalroom/internal/logging"
	"signalroom/internal/memory"
	"signalroom/internal/metrics"
	"signalroom/internal/runlog"
)

const (
	AutoDraftRun = "composer-auto-draft"

	curationMaxTokens = 1024
	draftMaxTokens    = 512
	historyLimit      = 20
)

type Store interface {
	InsertPost(ctx context.Context, p domain.Post) (*domain.Post, error)
	GetPost(ctx context.Context, id int64) (*domain.Post, error)
	TransitionPost(ctx context.Context, id int64, from, to domain.Status) (*domain.Post, error)
	UpdateDraftContent(ctx context.Context, id int64, content string) (*domain.Post, error)
	DeletePost(ctx context.Context, id int64) error
	PostsByStatus(ctx context.Context, statuses ...domain.Status) ([]domain.Post, error)
	PostsCreatedOn(ctx context.Context, platform domain.Platform, date string) ([]domain.Post, error)
	TerminalPostsOn(ctx context.Context, date string, limit int) ([]domain.Post, error)
	TopicsOn(ctx context.Context, date string, category domain.Category) ([]domain.Topic, error)
	TopicByTitle(ctx context.Context, date, title string) (*domain.Topic, error)
	AcquireLock(ctx context.Context, name, date, holder string, lease time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, date, holder string) error
}

// Publisher runs the publish transition for one scheduled post and the manual
// failure of a scheduled or published one.
type Publisher interface {
	Publish(ctx context.Context, id int64) (*domain.Post, error)
	MarkFailed(ctx context.Context, id int64, reason string) (*domain.Post, error)
}

type Options struct {
	// Platforms drafted by the daily run.
	Platforms     []domain.Platform
	SlotTimes     []string
	CurationModel string
	LockLease     time.Duration
}

type Composer struct {
	store     Store
	gen       inference.Generator
	memory    *memory.Memory
	publisher Publisher
	ledger    *runlog.Ledger
	cal       *calendar.Calendar
	metrics   *metrics.Metrics
	log       logging.Logger
	opts      Options
	observers []func(domain.PostEvent)
}

func New(
	store Store,
	gen inference.Generator,
	mem *memory.Memory,
	publisher Publisher,
	ledger *runlog.Ledger,
	cal *calendar.Calendar,
	m *metrics.Metrics,
	log logging.Logger,
	opts Options,
) *Composer {
	if len(opts.Platforms) == 0 {
		opts.Platforms = []domain.Platform{domain.PlatformTwitter}
	}
	if opts.LockLease <= 0 {
		opts.LockLease = 30 * time.Minute
	}

	return &Composer{
		store:     store,
		gen:       gen,
		memory:    mem,
		publisher: publisher,
		ledger:    ledger,
		cal:       cal,
		metrics:   m,
		log:       log,
		opts:      opts,
	}
}

// Observe registers fn to receive every post the composer creates or moves.
func (c *Composer) Observe(fn func(domain.PostEvent)) {
	c.observers = append(c.observers, fn)
}

func (c *Composer) emit(action string, post *domain.Post) {
	if post == nil {
		return
	}
	c.metrics.Transition(post.Status)
	for _, fn := range c.observers {
		fn(domain.PostEvent{Action: action, Post: *post})
	}
}
