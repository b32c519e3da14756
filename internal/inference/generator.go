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
	"context"
	"errors"
	"fmt"
)

// ErrNoCredential means no API key is stored or set in the environment.
var ErrNoCredential = errors.New("no Anthropic API key configured, add it in admin config")

// UpstreamError is a non-success answer from a generation provider.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Body)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

type Request struct {
	System    string
	Prompt    string
	MaxTokens int
	// Model overrides the configured model when set.
	Model string
}

type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

func (r Result) Tokens() int {
	return r.InputTokens + r.OutputTokens
}

// Generator is a synchronous text generation call. An empty Text is a valid
// answer and not an error.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
	// Ready reports ErrNoCredential before any work that depends on generation.
	Ready(ctx context.Context) error
}
