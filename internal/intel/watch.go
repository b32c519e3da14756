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

package intel

import (
	"context"
	"errors"
	"time"

	"signalroom/internal/domain"
)

var ErrWatchTimeout = errors.New("pipeline did not finish in time")

type RunLogReader interface {
	LatestRunLogID(ctx context.Context) (int64, error)
	RunLogAfter(ctx context.Context, afterID int64) ([]domain.RunLogEntry, error)
}

// Watcher polls the run log for the entry that ends a triggered run.
type Watcher struct {
	store    RunLogReader
	Interval time.Duration
	MaxPolls int
}

func NewWatcher(store RunLogReader) *Watcher {
	return &Watcher{store: store, Interval: 12 * time.Second, MaxPolls: 30}
}

type WatchResult struct {
	// Completed is the entry of the step that ends the run.
	Completed *domain.RunLogEntry  `json:"completed"`
	Entries   []domain.RunLogEntry `json:"entries"`
	// Failed names the steps that wrote an error entry since the baseline.
	Failed []string `json:"failed"`
}

func (w *Watcher) Baseline(ctx context.Context) (int64, error) {
	return w.store.LatestRunLogID(ctx)
}

// FinalStep names the ledger entry a run of target ends with. A full run ends
// with the synthesizer, a single step with itself.
func FinalStep(target string) string {
	if target == TargetAll {
		return SynthesizerRun
	}
	return target
}

// Wait returns once an entry for target's final step appears after baseline.
// It gives up with ErrWatchTimeout after MaxPolls polls.
func (w *Watcher) Wait(ctx context.Context, baseline int64, target string) (*WatchResult, error) {
	final := FinalStep(target)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for range w.MaxPolls {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		entries, err := w.store.RunLogAfter(ctx, baseline)
		if err != nil {
			return nil, err
		}

		result := &WatchResult{Entries: entries}
		for i, e := range entries {
			if e.Status == domain.RunError {
				result.Failed = append(result.Failed, e.FunctionName)
			}
			if e.FunctionName == final && result.Completed == nil {
				result.Completed = &entries[i]
			}
		}
		if result.Completed != nil {
			return result, nil
		}
	}

	return nil, ErrWatchTimeout
}
