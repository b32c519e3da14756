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
	"net/http"
	"sort"
	"strings"

	"signalroom/internal/db"
	"signalroom/internal/domain"
	"signalroom/internal/inference"
)

const maskedShort = "••••••••"

// Settings editable through the admin API. Other keys in a PUT are ignored.
var editableSettings = []string{
	inference.SettingModel,
	inference.SettingAPIKey,
	"openai_api_key",
}

func isSecret(key string) bool {
	return strings.HasSuffix(key, "_key") || strings.HasSuffix(key, "_token")
}

func mask(value string) string {
	if len(value) <= 8 {
		return maskedShort
	}
	return value[:4] + "••••" + value[len(value)-4:]
}

// maskedSettings lists every editable key. Unset values are null and secrets
// are masked.
func maskedSettings(values map[string]string) map[string]*string {
	out := make(map[string]*string, len(editableSettings))
	for _, key := range editableSettings {
		value, ok := values[key]
		if !ok || value == "" {
			out[key] = nil
			continue
		}
		if isSecret(key) {
			value = mask(value)
		}
		out[key] = &value
	}
	return out
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	values, err := s.deps.Store.Settings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, maskedSettings(values))
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var body map[string]*string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body) == 0 {
		writeError(w, invalid("request body must be a non-empty object"))
		return
	}

	updates := make(map[string]string)
	for _, key := range editableSettings {
		value, ok := body[key]
		if !ok {
			continue
		}
		if value == nil {
			updates[key] = ""
		} else {
			updates[key] = strings.TrimSpace(*value)
		}
	}
	if len(updates) == 0 {
		allowed := append([]string(nil), editableSettings...)
		sort.Strings(allowed)
		writeError(w, invalid("no editable settings in body (allowed: %s)", strings.Join(allowed, ", ")))
		return
	}

	if err := s.deps.Store.SetSettings(r.Context(), updates); err != nil {
		writeError(w, err)
		return
	}

	values, err := s.deps.Store.Settings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, maskedSettings(values))
}

type testConnectionRequest struct {
	Provider string `json:"provider" validate:"required"`
	APIKey   string `json:"api_key"`
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.deps.Tester.Test(r.Context(), req.Provider, req.APIKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type addKeywordRequest struct {
	Keyword  string          `json:"keyword" validate:"required"`
	Category domain.Category `json:"category"`
}

type updateKeywordRequest struct {
	Keyword  *string          `json:"keyword" validate:"omitnil,min=1"`
	Active   *bool            `json:"active"`
	Category *domain.Category `json:"category" validate:"omitnil,oneof=ecosystem enterprise"`
}

func (s *Server) handleListKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := s.deps.Store.Keywords(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keywords)
}

func (s *Server) handleAddKeyword(w http.ResponseWriter, r *http.Request) {
	var req addKeywordRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		writeError(w, invalid("keyword is required and must be a non-empty string"))
		return
	}
	if req.Category != domain.CategoryEnterprise {
		req.Category = domain.CategoryEcosystem
	}

	keyword, err := s.deps.Store.AddKeyword(r.Context(), req.Keyword, req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, keyword)
}

func (s *Server) handleUpdateKeyword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateKeywordRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	keyword, err := s.deps.Store.UpdateKeyword(r.Context(), id, db.KeywordPatch{
		Keyword:  req.Keyword,
		Active:   req.Active,
		Category: req.Category,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keyword)
}

func (s *Server) handleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	keyword, err := s.deps.Store.DeactivateKeyword(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keyword)
}
