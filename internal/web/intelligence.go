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

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"signalroom/internal/domain"
)

const runLogTail = 50

type triggerRequest struct {
	Platform string `json:"platform"`
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	today := s.deps.Calendar.Today()
	report, err := s.deps.Store.GetReport(r.Context(), today)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]string{"date": today, "status": "no_report_yet"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) (*domain.DailyReport, bool) {
	report, err := s.deps.Store.GetReport(r.Context(), mux.Vars(r)["date"])
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No report for this date"})
		return nil, false
	}
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return report, true
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if report, ok := s.report(w, r); ok {
		writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}

	rendered, err := RenderSlack(report.SlackPostText)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, rendered)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	n, err := days(r)
	if err != nil {
		writeError(w, err)
		return
	}
	signals, err := s.deps.Store.SignalsSince(r.Context(), s.deps.Calendar.Offset(-n))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signals)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	n, err := days(r)
	if err != nil {
		writeError(w, err)
		return
	}
	topics, err := s.deps.Store.TopicsSince(r.Context(), s.deps.Calendar.Offset(-n))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (s *Server) handleRunLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Store.RecentRunLog(r.Context(), runLogTail)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleTriggerRun starts the run and answers before it finishes.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, invalid("malformed request body"))
			return
		}
	}
	target := req.Platform
	if target == "" {
		target = "all"
	}

	if err := s.deps.Pipeline.Trigger(r.Context(), target); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started", "platform": target})
}
