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

package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"signalroom/internal/domain"
	"signalroom/internal/logging"
)

type fakeStore struct {
	entries   []domain.FeedbackEntry
	insertErr error
	readErr   error
	gotLimit  int
}

func (f *fakeStore) InsertFeedback(ctx context.Context, entry domain.FeedbackEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append([]domain.FeedbackEntry{entry}, f.entries...)
	return nil
}

func (f *fakeStore) RecentFeedback(ctx context.Context, platform domain.Platform, limit int) ([]domain.FeedbackEntry, error) {
	f.gotLimit = limit
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []domain.FeedbackEntry
	for _, e := range f.entries {
		if e.Platform == platform {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestRenderEmptyIsEmpty(t *testing.T) {
	require.Equal(t, "", Render(nil))
}

func TestRenderNumbersTriplets(t *testing.T) {
	out := Render([]domain.FeedbackEntry{
		{OriginalContent: "new draft", Feedback: "shorter", RevisedContent: "short"},
		{OriginalContent: "old draft", Feedback: "no hype"},
	})

	require.Contains(t, out, "## Past Editorial Direction\n")
	require.Contains(t, out, "1. Original: \"new draft\"\n   Feedback: \"shorter\"\n   Revised: \"short\"\n\n2. Original: \"old draft\"")
	require.NotContains(t, out, "2. Original: \"old draft\"\n   Feedback: \"no hype\"\n   Revised")
}

func TestLoadUsesDefaultLimitAndPlatform(t *testing.T) {
	store := &fakeStore{entries: []domain.FeedbackEntry{
		{OriginalContent: "a", Feedback: "f", Platform: domain.PlatformLinkedIn},
	}}
	m := New(store, 0, logging.Discard())

	require.Equal(t, "", m.Load(context.Background(), domain.PlatformTwitter))
	require.Equal(t, DefaultLimit, store.gotLimit)
	require.Contains(t, m.Load(context.Background(), domain.PlatformLinkedIn), "Original: \"a\"")
}

func TestLoadFailureMeansNoGuidance(t *testing.T) {
	m := New(&fakeStore{readErr: errors.New("db down")}, 5, logging.Discard())
	require.Equal(t, "", m.Load(context.Background(), domain.PlatformTwitter))
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	m := New(&fakeStore{insertErr: errors.New("disk full")}, 5, logging.Discard())
	require.NotPanics(t, func() {
		m.Record(context.Background(), domain.FeedbackEntry{Feedback: "x", Platform: domain.PlatformTwitter})
	})
}
