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
	"fmt"
	"net/http"

	"signalroom/internal/composer"
	"signalroom/internal/spreadsheet"
)

type reviseRequest struct {
	Feedback string `json:"feedback" validate:"required"`
}

type markFailedRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type editRequest struct {
	Content string `json:"content" validate:"required"`
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	var req composer.DraftRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := s.deps.Composer.Draft(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	posts, err := s.deps.Composer.Queue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	posts, err := s.deps.Composer.History(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Stats.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	post, err := s.deps.Composer.Approve(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// handlePublish answers 200 with the failed post when the platform refused
// it, so the diagnostic reaches the reviewer.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	post, err := s.deps.Composer.Publish(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleMarkFailed(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req markFailedRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := s.deps.Composer.MarkFailed(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.deps.Composer.Reject(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRevise(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req reviseRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.deps.Composer.Revise(r.Context(), id, req.Feedback)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req editRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := s.deps.Composer.Edit(r.Context(), id, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.Composer.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleExport downloads the queue and today's history as XLSX.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	queue, err := s.deps.Composer.Queue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	history, err := s.deps.Composer.History(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	buf, err := spreadsheet.GenerateFromPosts(append(queue, history...))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=posts-%s.xlsx", s.deps.Calendar.Today()))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
