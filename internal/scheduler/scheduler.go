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

// Package scheduler fires jobs on cron schedules read in the reference zone.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"signalroom/internal/calendar"
	"signalroom/internal/logging"
)

type Job struct {
	Name string
	// Spec is a five field cron expression, e.g. "30 6 * * 1-5".
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs each job on its schedule. A job still running when its next
// slot comes skips that slot, and a panicking job is logged and recovered.
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
	log  logging.Logger

	mu      sync.RWMutex
	ctx     context.Context
	entries map[string]cron.EntryID
}

func New(cal *calendar.Calendar, log logging.Logger) *Scheduler {
	logger := cronLogger{log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(cal.Location()),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		loc:     cal.Location(),
		log:     log,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

func (s *Scheduler) Add(job Job) error {
	id, err := s.cron.AddFunc(job.Spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name, job.Spec, err)
	}
	s.entries[job.Name] = id
	return nil
}

// Next reports when the named job fires next after t.
func (s *Scheduler) Next(name string, t time.Time) (time.Time, bool) {
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Schedule.Next(t.In(s.loc)), true
}

// Start runs the jobs until ctx is done, then waits for running jobs and
// returns ctx.Err().
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	now := time.Now()
	for name := range s.entries {
		next, _ := s.Next(name, now)
		s.log.WithFields(logging.Fields{"job": name, "next": next.Format(time.RFC3339)}).Info("job scheduled")
	}

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return ctx.Err()
}

func (s *Scheduler) run(job Job) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	log := s.log.WithField("job", job.Name)
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.WithError(err).WithField("took", time.Since(start).String()).Error("job failed")
		return
	}
	log.WithField("took", time.Since(start).String()).Info("job finished")
}

// cronLogger routes cron's own messages to logrus.
type cronLogger struct{ log logging.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func fields(keysAndValues []interface{}) logging.Fields {
	f := make(logging.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
