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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"signalroom/internal/domain"
)

type Metrics struct {
	Runs             *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	PostTransitions  *prometheus.CounterVec
	PublishAttempts  *prometheus.CounterVec
	GenerationTokens *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil registerer
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalroom_runs_total",
				Help: "Pipeline step invocations by outcome",
			},
			[]string{"function", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalroom_run_duration_seconds",
				Help:    "Pipeline step duration",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"function"},
		),
		PostTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalroom_post_transitions_total",
				Help: "Post status transitions by target status",
			},
			[]string{"to"},
		),
		PublishAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalroom_publish_attempts_total",
				Help: "Platform publish attempts by outcome",
			},
			[]string{"platform", "outcome"},
		),
		GenerationTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalroom_generation_tokens_total",
				Help: "Tokens spent on text generation by purpose",
			},
			[]string{"purpose"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Runs, m.RunDuration, m.PostTransitions, m.PublishAttempts, m.GenerationTokens)
	}

	return m
}

// ObserveRun is a ledger observer.
func (m *Metrics) ObserveRun(entry domain.RunLogEntry) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(entry.FunctionName, entry.Status).Inc()
	m.RunDuration.WithLabelValues(entry.FunctionName).Observe(float64(entry.DurationMs) / 1000)
}

func (m *Metrics) Transition(to domain.Status) {
	if m == nil {
		return
	}
	m.PostTransitions.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) PublishAttempt(platform domain.Platform, outcome string) {
	if m == nil {
		return
	}
	m.PublishAttempts.WithLabelValues(string(platform), outcome).Inc()
}

func (m *Metrics) Tokens(purpose string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.GenerationTokens.WithLabelValues(purpose).Add(float64(n))
}
