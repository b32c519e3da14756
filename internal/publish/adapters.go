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

package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/google/uuid"

	"signalroom/internal/domain"
	"signalroom/internal/logging"
	"signalroom/internal/resilience"
)

// Publishing is never retried inside an attempt, so platform adapters only
// get a circuit breaker.
func breaker(name string, log logging.Logger) failsafe.Executor[*resilience.Response] {
	return resilience.NewExecutor(resilience.Config{Name: name, Logger: log})
}

func postJSON(ctx context.Context, exec failsafe.Executor[*resilience.Response], client *http.Client, url string, body any, headers map[string]string) (*resilience.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	resp, err := resilience.Do(ctx, exec, client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body)))
	}
	return resp, nil
}

type TwitterAdapter struct {
	baseURL string
	token   string
	http    *http.Client
	exec    failsafe.Executor[*resilience.Response]
}

func NewTwitterAdapter(baseURL, bearerToken string, log logging.Logger) *TwitterAdapter {
	if baseURL == "" {
		baseURL = "https://api.x.com"
	}
	return &TwitterAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   bearerToken,
		http:    &http.Client{Timeout: 30 * time.Second},
		exec:    breaker("twitter", log),
	}
}

func (a *TwitterAdapter) Publish(ctx context.Context, post domain.Post) (string, error) {
	if a.token == "" {
		return "", errors.New("x: no bearer token configured")
	}

	resp, err := postJSON(ctx, a.exec, a.http, a.baseURL+"/2/tweets",
		map[string]string{"text": post.Content},
		map[string]string{"Authorization": "Bearer " + a.token},
	)
	if err != nil {
		return "", fmt.Errorf("x: %w", err)
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &created); err != nil || created.Data.ID == "" {
		return "", fmt.Errorf("x: unexpected response: %s", string(resp.Body))
	}
	return created.Data.ID, nil
}

type LinkedInAdapter struct {
	baseURL   string
	token     string
	authorURN string
	http      *http.Client
	exec      failsafe.Executor[*resilience.Response]
}

func NewLinkedInAdapter(baseURL, accessToken, authorURN string, log logging.Logger) *LinkedInAdapter {
	if baseURL == "" {
		baseURL = "https://api.linkedin.com"
	}
	return &LinkedInAdapter{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     accessToken,
		authorURN: authorURN,
		http:      &http.Client{Timeout: 30 * time.Second},
		exec:      breaker("linkedin", log),
	}
}

func (a *LinkedInAdapter) Publish(ctx context.Context, post domain.Post) (string, error) {
	if a.token == "" || a.authorURN == "" {
		return "", errors.New("linkedin: access token and author urn are required")
	}

	body := map[string]any{
		"author":         a.authorURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": post.Content},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	resp, err := postJSON(ctx, a.exec, a.http, a.baseURL+"/v2/ugcPosts", body, map[string]string{
		"Authorization":             "Bearer " + a.token,
		"X-Restli-Protocol-Version": "2.0.0",
	})
	if err != nil {
		return "", fmt.Errorf("linkedin: %w", err)
	}

	if id := resp.Header.Get("X-Restli-Id"); id != "" {
		return id, nil
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body, &created); err != nil || created.ID == "" {
		return "", fmt.Errorf("linkedin: response carried no post id")
	}
	return created.ID, nil
}

// DryRunAdapter publishes nowhere. It logs the post and invents an id.
type DryRunAdapter struct {
	log logging.Logger
}

func NewDryRunAdapter(log logging.Logger) *DryRunAdapter {
	return &DryRunAdapter{log: log}
}

func (a *DryRunAdapter) Publish(ctx context.Context, post domain.Post) (string, error) {
	id := "dryrun-" + uuid.NewString()
	a.log.WithFields(logging.Fields{
		"post_id":  post.ID,
		"platform": post.Platform,
		"dry_id":   id,
	}).Info("dry run publish: " + post.Content)
	return id, nil
}
