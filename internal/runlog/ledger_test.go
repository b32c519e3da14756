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

package runlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"signalroom/internal/calendar"
	"signalroom/internal/domain"
	"signalroom/internal/logging"
)

type memoryStore struct {
	entries []domain.RunLogEntry
	err     error
}

func (s *memoryStore) InsertRunLog(_ context.Context, entry domain.RunLogEntry) (*domain.RunLogEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	entry.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, entry)
	return &entry, nil
}

type counted struct {
	fetched int
	tokens  int
}

func (c counted) RunMetrics() Metrics {
	return Metrics{PostsFetched: Count(c.fetched), LLMTokens: Count(c.tokens)}
}

func newLedger(t *testing.T, store Store) *Ledger {
	t.Helper()

	cal, err := calendar.New("Australia/Sydney")
	require.NoError(t, err)
	at := time.Date(2025, 3, 3, 20, 30, 0, 0, time.UTC)

	return NewLedger(store, cal.WithClock(func() time.Time { return at }), logging.Discard())
}

func TestWrapRecordsSuccessWithMetrics(t *testing.T) {
	store := &memoryStore{}
	ledger := newLedger(t, store)

	result, err := Wrap(context.Background(), ledger, "collector", func(context.Context) (counted, error) {
		return counted{fetched: 42, tokens: 900}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, result.fetched)

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	require.Equal(t, "2025-03-04", entry.Date)
	require.Equal(t, "collector", entry.FunctionName)
	require.Equal(t, domain.RunSuccess, entry.Status)
	require.Equal(t, 42, *entry.PostsFetched)
	require.Equal(t, 900, *entry.LLMTokens)
	require.Nil(t, entry.ErrorMsg)
}

func TestWrapRecordsErrorAndReturnsIt(t *testing.T) {
	store := &memoryStore{}
	ledger := newLedger(t, store)
	boom := errors.New("upstream exploded")

	_, err := Wrap(context.Background(), ledger, "synthesizer", func(context.Context) (struct{}, error) {
		return struct{}{}, boom
	})
	require.ErrorIs(t, err, boom)

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	require.Equal(t, domain.RunError, entry.Status)
	require.NotNil(t, entry.ErrorMsg)
	require.Equal(t, "upstream exploded", *entry.ErrorMsg)
	require.GreaterOrEqual(t, entry.DurationMs, int64(0))
	require.Nil(t, entry.LLMTokens)
}

func TestWrapRecordsPanicThenRepanics(t *testing.T) {
	store := &memoryStore{}
	ledger := newLedger(t, store)

	require.Panics(t, func() {
		_, _ = Wrap(context.Background(), ledger, "auto-draft", func(context.Context) (int, error) {
			panic("nil topic")
		})
	})

	require.Len(t, store.entries, 1)
	require.Equal(t, domain.RunError, store.entries[0].Status)
	require.Contains(t, *store.entries[0].ErrorMsg, "nil topic")
}

func TestWrapNotifiesObserversEvenWhenStoreFails(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	ledger := newLedger(t, store)

	var seen []domain.RunLogEntry
	ledger.Observe(func(e domain.RunLogEntry) { seen = append(seen, e) })

	_, err := Wrap(context.Background(), ledger, "sweep", func(context.Context) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.Equal(t, "sweep", seen[0].FunctionName)
}
