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

package composer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"signalroom/internal/domain"
	"signalroom/internal/inference"
	"signalroom/internal/logging"
	"signalroom/internal/runlog"
)

type AutoDraftReport struct {
	Date     string                   `json:"date"`
	Drafted  []domain.Post            `json:"drafted"`
	Fallback map[domain.Platform]bool `json:"fallback"`
	Tokens   int                      `json:"llm_tokens"`
}

func (r *AutoDraftReport) RunMetrics() runlog.Metrics {
	return runlog.Metrics{
		PostsFetched: runlog.Count(len(r.Drafted)),
		LLMTokens:    runlog.Count(r.Tokens),
	}
}

// AutoDraft is the daily run: curate today's free topics, give each pick the
// next free slot and draft it. Exactly one ledger entry is written.
func (c *Composer) AutoDraft(ctx context.Context) (*AutoDraftReport, error) {
	return runlog.Wrap(ctx, c.ledger, AutoDraftRun, c.autoDraft)
}

func (c *Composer) autoDraft(ctx context.Context) (*AutoDraftReport, error) {
	today := c.cal.Today()
	report := &AutoDraftReport{Date: today, Fallback: make(map[domain.Platform]bool)}

	if err := c.gen.Ready(ctx); err != nil {
		return report, err
	}

	holder := uuid.NewString()
	acquired, err := c.store.AcquireLock(ctx, AutoDraftRun, today, holder, c.opts.LockLease)
	if err != nil {
		return report, err
	}
	if !acquired {
		return report, fmt.Errorf("%s for %s: %w", AutoDraftRun, today, runlog.ErrRunInProgress)
	}
	defer func() {
		if err := c.store.ReleaseLock(context.WithoutCancel(ctx), AutoDraftRun, today, holder); err != nil {
			c.log.WithError(err).Warn("failed to release auto-draft lock")
		}
	}()

	topics, err := c.store.TopicsOn(ctx, today, "")
	if err != nil {
		return report, err
	}
	if len(topics) == 0 {
		c.log.WithField("date", today).Info("no topics for today, skipping auto-draft")
		return report, nil
	}

	slots, err := DailySlots(c.cal, today, c.opts.SlotTimes)
	if err != nil {
		return report, err
	}

	// Unsaved drafts fail the run once every platform had its turn.
	var unsaved []error
	for _, platform := range c.opts.Platforms {
		failed, err := c.autoDraftPlatform(ctx, platform, today, topics, slots, report)
		unsaved = append(unsaved, failed...)
		if err != nil {
			return report, errors.Join(append(unsaved, err)...)
		}
	}
	return report, errors.Join(unsaved...)
}

// autoDraftPlatform drafts one platform's picks. A generation failure skips
// the pick; a failed save is returned in unsaved and the loop goes on.
func (c *Composer) autoDraftPlatform(ctx context.Context, platform domain.Platform, today string, topics []domain.Topic, slots []time.Time, report *AutoDraftReport) (unsaved []error, err error) {
	log := c.log.WithFields(logging.Fields{"component": "auto-draft", "platform": platform, "date": today})

	existing, err := c.store.PostsCreatedOn(ctx, platform, today)
	if err != nil {
		return nil, err
	}

	taken := occupied(existing)
	available := make([]domain.Topic, 0, len(topics))
	for _, t := range topics {
		if !taken[t.TopicTitle] {
			available = append(available, t)
		}
	}
	if len(available) == 0 {
		log.Info("all topics already drafted")
		return nil, nil
	}

	picks, tokens := c.Curate(ctx, available, c.memory.Load(ctx, platform))
	report.Tokens += tokens
	for _, p := range picks {
		if p.Angle == "" {
			report.Fallback[platform] = true
			break
		}
	}

	for _, a := range Allocate(slots, usedSlots(existing), picks) {
		at := a.At
		post, tokens, err := c.draft(ctx, requestFromTopic(a.Pick.Topic, platform, a.Pick.Angle), &at)
		report.Tokens += tokens
		if errors.Is(err, inference.ErrNoCredential) {
			return unsaved, err
		}
		if err != nil {
			log.WithError(err).WithField("topic", a.Pick.Topic.TopicTitle).Error("draft failed")
			if errors.Is(err, ErrSaveDraft) {
				unsaved = append(unsaved, fmt.Errorf("%s %q: %w", platform, a.Pick.Topic.TopicTitle, err))
			}
			continue
		}
		if post != nil {
			report.Drafted = append(report.Drafted, *post)
		}
	}

	log.WithFields(logging.Fields{"drafted": len(report.Drafted), "unsaved": len(unsaved)}).Info("auto-draft complete")
	return unsaved, nil
}
