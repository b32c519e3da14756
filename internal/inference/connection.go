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
	"fmt"
	"net/http"
	"strings"
	"time"

	"signalroom/internal/domain"
)

type ConnectionResult struct {
	Connected bool   `json:"connected"`
	Provider  string `json:"provider"`
	Error     string `json:"error,omitempty"`
	Note      string `json:"note,omitempty"`
}

// ConnectionTester checks a provider key without storing it.
type ConnectionTester struct {
	AnthropicURL string
	OpenAIURL    string
	HTTP         *http.Client
	Ollama       *Ollama
}

func NewConnectionTester(anthropicURL string, ollama *Ollama) *ConnectionTester {
	return &ConnectionTester{
		AnthropicURL: strings.TrimRight(anthropicURL, "/"),
		OpenAIURL:    "https://api.openai.com",
		HTTP:         &http.Client{Timeout: 15 * time.Second},
		Ollama:       ollama,
	}
}

func (t *ConnectionTester) Test(ctx context.Context, provider, apiKey string) (ConnectionResult, error) {
	result := ConnectionResult{Provider: provider}

	switch provider {
	case "anthropic":
		if apiKey == "" {
			return result, fmt.Errorf("%w: provider and api_key are required", domain.ErrInvalidInput)
		}
		body := []byte(`{"model":"claude-haiku-4-5-20251001","max_tokens":1,"messages":[{"role":"user","content":"ping"}]}`)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.AnthropicURL+"/v1/messages", bytes.NewReader(body))
		if err != nil {
			return result, err
		}
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("anthropic-version", anthropicVersion)
		req.Header.Set("content-type", "application/json")

		status, err := t.status(req)
		if err != nil {
			result.Error = err.Error()
			return result, nil
		}
		switch {
		// 400 means the key was accepted and only the request shape was refused
		case status < 300 || status == http.StatusBadRequest:
			result.Connected = true
		case status == http.StatusUnauthorized:
			result.Error = "Invalid API key"
		default:
			result.Error = fmt.Sprintf("Unexpected status: %d", status)
		}

	case "openai":
		if apiKey == "" {
			return result, fmt.Errorf("%w: provider and api_key are required", domain.ErrInvalidInput)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.OpenAIURL+"/v1/models", nil)
		if err != nil {
			return result, err
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)

		status, err := t.status(req)
		if err != nil {
			result.Error = err.Error()
			return result, nil
		}
		result.Connected = status < 300
		if !result.Connected {
			result.Error = "Invalid API key"
		}

	case "ollama":
		if t.Ollama == nil {
			result.Error = "ollama client is not configured"
			return result, nil
		}
		models, err := t.Ollama.ListModels(ctx)
		if err != nil {
			result.Error = err.Error()
			return result, nil
		}
		result.Connected = true
		result.Note = fmt.Sprintf("%d local models", len(models))

	default:
		return result, fmt.Errorf("%w: unknown provider: %s", domain.ErrInvalidInput, provider)
	}

	return result, nil
}

func (t *ConnectionTester) status(req *http.Request) (int, error) {
	client := t.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
