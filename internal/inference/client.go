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
	"regexp"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// Ollama generates against a local model server. It never needs a key.
type Ollama struct {
	ModelName      string
	Client         *ollama.Client
	TimeoutSeconds uint
}

func NewOllama(model string, timeoutSeconds uint) (*Ollama, error) {
	client, err := ollama.ClientFromEnvironment()
	if err != nil {
		return nil, err
	}

	return &Ollama{
		ModelName:      model,
		Client:         client,
		TimeoutSeconds: timeoutSeconds,
	}, nil
}

func (o *Ollama) Ready(ctx context.Context) error {
	return nil
}

func (o *Ollama) ListModels(ctx context.Context) ([]ollama.ListModelResponse, error) {
	response, err := o.Client.List(ctx)
	if err != nil {
		return nil, err
	}

	return response.Models, nil
}

func (o *Ollama) Generate(ctx context.Context, req Request) (Result, error) {
	if o.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	model := o.ModelName
	if req.Model != "" && !strings.HasPrefix(req.Model, "claude-") {
		model = req.Model
	}

	options := map[string]interface{}{
		"temperature": 0.2,
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	var (
		response strings.Builder
		result   Result
	)
	err := o.Client.Generate(ctx, &ollama.GenerateRequest{
		Model:   model,
		System:  req.System,
		Prompt:  req.Prompt,
		Options: options,
	}, func(res ollama.GenerateResponse) error {
		response.WriteString(res.Response)
		if res.Done {
			result.InputTokens = res.Metrics.PromptEvalCount
			result.OutputTokens = res.Metrics.EvalCount
		}
		return nil
	})
	if err != nil {
		return Result{}, &UpstreamError{Provider: "ollama", Body: err.Error()}
	}

	result.Text = removeThinkBlock(response.String())
	return result, nil
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

func removeThinkBlock(input string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(input, ""))
}
