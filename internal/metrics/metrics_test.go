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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"signalroom/internal/domain"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRun(domain.RunLogEntry{FunctionName: "synthesizer", Status: domain.RunError, DurationMs: 1500})
	m.ObserveRun(domain.RunLogEntry{FunctionName: "synthesizer", Status: domain.RunError, DurationMs: 200})
	m.Transition(domain.StatusScheduled)
	m.PublishAttempt(domain.PlatformTwitter, "failed")
	m.Tokens("curation", 120)
	m.Tokens("curation", 0)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("synthesizer", domain.RunError)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PostTransitions.WithLabelValues("scheduled")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PublishAttempts.WithLabelValues("twitter", "failed")))
	require.Equal(t, 120.0, testutil.ToFloat64(m.GenerationTokens.WithLabelValues("curation")))

	count, err := testutil.GatherAndCount(reg, "signalroom_run_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveRun(domain.RunLogEntry{})
		m.Transition(domain.StatusDraft)
		m.PublishAttempt(domain.PlatformLinkedIn, "published")
		m.Tokens("drafting", 10)
	})
}
