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

// Package publish sends scheduled posts to their platforms and keeps the
// per-day publish counts.
package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"signalroom/internal/calendar"
	"signalroom/internal/domain"
	"signalroom/internal/logging"
	"signalroom/internal/metrics"
	"signalroom/internal/runlog"
)

const SweepRun = "composer-publish-sweep"

type Store interface {
	ClaimForPublish(ctx context.Context, id int64, token string) (*domain.Post, error)
	CompletePublish(ctx context.Context, id int64, token, platformPostID string, at time.Time) (*domain.Post, error)
	FailPost(ctx context.Context, id int64, token, diagnostic string) (*domain.Post, error)
	DuePosts(ctx context.Context, now time.Time) ([]domain.Post, error)
	CountPublished(ctx context.Context, platform domain.Platform, from, to time.Time) (int, error)
}

// Adapter posts content to one platform and returns the platform's id for it.
type Adapter interface {
	Publish(ctx context.Context, post domain.Post) (string, error)
}

// Mirror copies published posts somewhere else, best-effort.
type Mirror interface {
	Mirror(ctx context.Context, post domain.Post) error
}

type Dispatcher struct {
	store     Store
	adapters  map[domain.Platform]Adapter
	mirrors   []Mirror
	limits    map[domain.Platform]int
	ledger    *runlog.Ledger
	cal       *calendar.Calendar
	metrics   *metrics.Metrics
	log       logging.Logger
	observers []func(domain.PostEvent)
}

func NewDispatcher(store Store, ledger *runlog.Ledger, cal *calendar.Calendar, m *metrics.Metrics, log logging.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		adapters: make(map[domain.Platform]Adapter),
		limits: map[domain.Platform]int{
			domain.PlatformTwitter:  16,
			domain.PlatformLinkedIn: 50,
		},
		ledger:  ledger,
		cal:     cal,
		metrics: m,
		log:     log,
	}
}

func (d *Dispatcher) Register(platform domain.Platform, adapter Adapter) {
	d.adapters[platform] = adapter
}

func (d *Dispatcher) AddMirror(m Mirror) {
	d.mirrors = append(d.mirrors, m)
}

// SetLimit overrides the advisory daily cap shown for a platform.
func (d *Dispatcher) SetLimit(platform domain.Platform, limit int) {
	d.limits[platform] = limit
}

func (d *Dispatcher) Observe(fn func(domain.PostEvent)) {
	d.observers = append(d.observers, fn)
}

func (d *Dispatcher) emit(action string, post *domain.Post) {
	d.metrics.Transition(post.Status)
	for _, fn := range d.observers {
		fn(domain.PostEvent{Action: action, Post: *post})
	}
}

// Publish claims a scheduled post, calls its platform adapter once and
// records the outcome. An adapter failure is not an error here: the post is
// returned in failed status with the diagnostic kept on it.
func (d *Dispatcher) Publish(ctx context.Context, id int64) (*domain.Post, error) {
	token := uuid.NewString()
	post, err := d.store.ClaimForPublish(ctx, id, token)
	if err != nil {
		return nil, err
	}

	log := d.log.WithFields(logging.Fields{
		"component": "dispatcher",
		"post_id":   post.ID,
		"platform":  post.Platform,
	})
	// Outcome writes must land even if the caller goes away mid-publish.
	writeCtx := context.WithoutCancel(ctx)

	adapter, ok := d.adapters[post.Platform]
	if !ok {
		return d.fail(writeCtx, post, token, fmt.Sprintf("no publish adapter configured for %s", post.Platform), log)
	}

	platformID, err := adapter.Publish(ctx, *post)
	if err != nil {
		return d.fail(writeCtx, post, token, err.Error(), log)
	}

	published, err := d.store.CompletePublish(writeCtx, post.ID, token, platformID, time.Now())
	if err != nil {
		log.WithError(err).Error("post went out but could not be marked published")
		return nil, err
	}
	d.metrics.PublishAttempt(post.Platform, "published")
	log.WithField("platform_post_id", platformID).Info("post published")
	d.emit("published", published)

	for _, m := range d.mirrors {
		if err := m.Mirror(writeCtx, *published); err != nil {
			log.WithError(err).Warn("mirror failed")
		}
	}

	return published, nil
}

func (d *Dispatcher) fail(ctx context.Context, post *domain.Post, token, diagnostic string, log logging.Entry) (*domain.Post, error) {
	d.metrics.PublishAttempt(post.Platform, "failed")
	log.WithField("diagnostic", diagnostic).Error("publish failed")

	failed, err := d.store.FailPost(ctx, post.ID, token, diagnostic)
	if err != nil {
		return nil, fmt.Errorf("record publish failure: %w", err)
	}
	d.emit("failed", failed)
	return failed, nil
}

// MarkFailed fails a scheduled or published post by hand, for example when
// the platform took a published post down. A post being published right now
// cannot be failed.
func (d *Dispatcher) MarkFailed(ctx context.Context, id int64, reason string) (*domain.Post, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrInvalidInput)
	}

	failed, err := d.store.FailPost(ctx, id, "", reason)
	if err != nil {
		return nil, err
	}
	d.log.WithFields(logging.Fields{
		"component": "dispatcher",
		"post_id":   id,
		"reason":    reason,
	}).Warn("post marked failed")
	d.emit("failed", failed)
	return failed, nil
}

type SweepReport struct {
	Due       int     `json:"due"`
	Published []int64 `json:"published"`
	Failed    []int64 `json:"failed"`
}

func (r *SweepReport) RunMetrics() runlog.Metrics {
	return runlog.Metrics{PostsFetched: runlog.Count(r.Due)}
}

// Sweep publishes every due post one at a time, oldest first. One post
// failing never stops the rest.
func (d *Dispatcher) Sweep(ctx context.Context) (*SweepReport, error) {
	return runlog.Wrap(ctx, d.ledger, SweepRun, d.sweep)
}

func (d *Dispatcher) sweep(ctx context.Context) (*SweepReport, error) {
	due, err := d.store.DuePosts(ctx, d.cal.Now())
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Due: len(due)}
	if len(due) == 0 {
		return report, nil
	}
	d.log.WithField("due", len(due)).Info("publishing due posts")

	for _, p := range due {
		post, err := d.Publish(ctx, p.ID)
		switch {
		case err != nil:
			d.log.WithError(err).WithField("post_id", p.ID).Error("publish errored")
			report.Failed = append(report.Failed, p.ID)
		case post.Status == domain.StatusFailed:
			report.Failed = append(report.Failed, p.ID)
		default:
			report.Published = append(report.Published, p.ID)
		}
	}
	return report, nil
}

// CountPublishedToday counts posts published during today's civil day.
func (d *Dispatcher) CountPublishedToday(ctx context.Context, platform domain.Platform) (int, error) {
	from, to, err := d.cal.Bounds(d.cal.Today())
	if err != nil {
		return 0, err
	}
	return d.store.CountPublished(ctx, platform, from, to)
}

type PlatformStats struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

type Stats struct {
	Date     string        `json:"date"`
	Twitter  PlatformStats `json:"twitter"`
	LinkedIn PlatformStats `json:"linkedin"`
}

func (d *Dispatcher) Stats(ctx context.Context) (*Stats, error) {
	twitter, err := d.CountPublishedToday(ctx, domain.PlatformTwitter)
	if err != nil {
		return nil, err
	}
	linkedin, err := d.CountPublishedToday(ctx, domain.PlatformLinkedIn)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Date:     d.cal.Today(),
		Twitter:  PlatformStats{Count: twitter, Limit: d.limits[domain.PlatformTwitter]},
		LinkedIn: PlatformStats{Count: linkedin, Limit: d.limits[domain.PlatformLinkedIn]},
	}, nil
}
