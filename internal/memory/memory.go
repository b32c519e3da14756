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

// Package memory keeps the editorial feedback loop: every revision leaves an
// (original, feedback, revised) triplet that later drafts read back as
// few-shot guidance.
package memory

import (
	"context"
	"fmt"
	"strings"

	"signalroom/internal/domain"
	"signalroom/internal/logging"
)

const DefaultLimit = 15

type Store interface {
	InsertFeedback(ctx context.Context, entry domain.FeedbackEntry) error
	RecentFeedback(ctx context.Context, platform domain.Platform, limit int) ([]domain.FeedbackEntry, error)
}

type Memory struct {
	store Store
	limit int
	log   logging.Logger
}

func New(store Store, limit int, log logging.Logger) *Memory {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Memory{store: store, limit: limit, log: log}
}

// Load renders the newest entries for platform. An empty string means there
// is no guidance yet; a failed read is logged and treated the same way.
func (m *Memory) Load(ctx context.Context, platform domain.Platform) string {
	entries, err := m.store.RecentFeedback(ctx, platform, m.limit)
	if err != nil {
		m.log.WithFields(logging.Fields{
			"component": "memory",
			"platform":  platform,
		}).WithError(err).Warn("could not load editorial memory")
		return ""
	}
	return Render(entries)
}

// Render expects entries most recent first.
func Render(entries []domain.FeedbackEntry) string {
	if len(entries) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(entries))
	for i, entry := range entries {
		var b strings.Builder
		fmt.Fprintf(&b, "%d. Original: \"%s\"\n", i+1, entry.OriginalContent)
		fmt.Fprintf(&b, "   Feedback: \"%s\"", entry.Feedback)
		if entry.RevisedContent != "" {
			fmt.Fprintf(&b, "\n   Revised: \"%s\"", entry.RevisedContent)
		}
		blocks = append(blocks, b.String())
	}

	return "## Past Editorial Direction\n" +
		"These are corrections the founder has made on previous drafts.\n" +
		"Apply these patterns and preferences to ALL future posts.\n" +
		"The more recent entries (lower numbers) reflect the latest preferences.\n\n" +
		strings.Join(blocks, "\n\n")
}

// Record appends one triplet. A failed write is logged and never returned:
// the revision it belongs to still stands.
func (m *Memory) Record(ctx context.Context, entry domain.FeedbackEntry) {
	err := m.store.InsertFeedback(ctx, entry)
	if err != nil {
		m.log.WithFields(logging.Fields{
			"component": "memory",
			"platform":  entry.Platform,
			"topic":     entry.TopicTitle,
		}).WithError(err).Error("failed to save editorial feedback")
	}
}
