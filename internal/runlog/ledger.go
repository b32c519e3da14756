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

// Package runlog records one RunLogEntry per pipeline step invocation, on
// success and on failure alike.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signalroom/internal/calendar"
	"signalroom/internal/domain"
	"signalroom/internal/logging"
)

// ErrRunInProgress is returned by steps that find their run lock held.
var ErrRunInProgress = errors.New("run already in progress")

type Store interface {
	InsertRunLog(ctx context.Context, entry domain.RunLogEntry) (*domain.RunLogEntry, error)
}

// Metrics are the optional per-step counters a result may carry.
type Metrics struct {
	PostsFetched *int
	LLMTokens    *int
}

// Reporter is implemented by step results that expose metrics.
type Reporter interface {
	RunMetrics() Metrics
}

type Ledger struct {
	store     Store
	cal       *calendar.Calendar
	log       logging.Logger
	observers []func(domain.RunLogEntry)
}

func NewLedger(store Store, cal *calendar.Calendar, log logging.Logger) *Ledger {
	return &Ledger{store: store, cal: cal, log: log}
}

// Observe registers fn to receive every entry after it is stored.
func (l *Ledger) Observe(fn func(domain.RunLogEntry)) {
	l.observers = append(l.observers, fn)
}

// Wrap runs step under name and writes exactly one entry for the outcome.
// Errors are returned unchanged and panics are re-raised after the entry is
// written.
func Wrap[T any](ctx context.Context, l *Ledger, name string, step func(context.Context) (T, error)) (result T, err error) {
	start := time.Now()
	date := l.cal.Today()

	defer func() {
		if r := recover(); r != nil {
			l.record(ctx, name, date, start, Metrics{}, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	result, err = step(ctx)

	var m Metrics
	if err == nil {
		if reporter, ok := any(result).(Reporter); ok {
			m = reporter.RunMetrics()
		}
	}
	l.record(ctx, name, date, start, m, err)

	return result, err
}

func (l *Ledger) record(ctx context.Context, name, date string, start time.Time, m Metrics, stepErr error) {
	duration := time.Since(start)
	entry := domain.RunLogEntry{
		Date:         date,
		FunctionName: name,
		Status:       domain.RunSuccess,
		DurationMs:   duration.Milliseconds(),
		PostsFetched: m.PostsFetched,
		LLMTokens:    m.LLMTokens,
	}

	fields := logging.Fields{"function": name, "duration_ms": entry.DurationMs}
	if stepErr != nil {
		msg := stepErr.Error()
		entry.Status = domain.RunError
		entry.ErrorMsg = &msg
		l.log.WithFields(fields).WithError(stepErr).Error("step failed")
	} else {
		l.log.WithFields(fields).Info("step completed")
	}

	// The step may have been cancelled; the entry must still be written.
	writeCtx := context.WithoutCancel(ctx)
	stored, err := l.store.InsertRunLog(writeCtx, entry)
	if err != nil {
		l.log.WithFields(fields).WithError(err).Error("failed to write run log entry")
		stored = &entry
	}

	for _, observe := range l.observers {
		observe(*stored)
	}
}

// Count is a convenience for building Metrics from plain ints.
func Count(n int) *int {
	return &n
}
