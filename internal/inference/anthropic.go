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

package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"signalroom/internal/logging"
	"signalroom/internal/resilience"
)

const anthropicVersion = "2023-06-01"

type Anthropic struct {
	baseURL  string
	creds    *CredentialStore
	http     *http.Client
	executor failsafe.Executor[*resilience.Response]
	log      logging.Logger
}

func NewAnthropic(baseURL string, creds *CredentialStore, timeout time.Duration, log logging.Logger) *Anthropic {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Anthropic{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: timeout},
		executor: resilience.NewExecutor(resilience.Config{
			Name:       "anthropic",
			MaxRetries: 2,
			BaseDelay:  time.Second,
			MaxDelay:   8 * time.Second,
			Logger:     log,
		}),
		log: log,
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *Anthropic) Ready(ctx context.Context) error {
	creds, err := a.creds.Get(ctx)
	if err != nil {
		return err
	}
	if creds.APIKey == "" {
		return ErrNoCredential
	}
	return nil
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (Result, error) {
	creds, err := a.creds.Get(ctx)
	if err != nil {
		return Result{}, err
	}
	if creds.APIKey == "" {
		return Result{}, ErrNoCredential
	}

	model := req.Model
	if model == "" {
		model = creds.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	payload, err := json.Marshal(messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return Result{}, err
	}

	resp, err := resilience.Do(ctx, a.executor, a.http, func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("x-api-key", creds.APIKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
		httpReq.Header.Set("content-type", "application/json")
		return httpReq, nil
	})
	if err != nil {
		return Result{}, &UpstreamError{Provider: "anthropic", Body: err.Error()}
	}
	if !resp.OK() {
		return Result{}, &UpstreamError{Provider: "anthropic", StatusCode: resp.StatusCode, Body: truncate(string(resp.Body), 500)}
	}

	var decoded messagesResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return Result{}, fmt.Errorf("decode anthropic response: %w", err)
	}

	result := Result{
		InputTokens:  decoded.Usage.InputTokens,
		OutputTokens: decoded.Usage.OutputTokens,
	}
	if len(decoded.Content) > 0 && decoded.Content[0].Type == "text" {
		result.Text = strings.TrimSpace(decoded.Content[0].Text)
	}

	a.log.WithFields(logging.Fields{
		"model":         model,
		"input_tokens":  result.InputTokens,
		"output_tokens": result.OutputTokens,
	}).Debug("generation complete")

	return result, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
