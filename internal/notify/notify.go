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

// Package notify pushes finished reports to chat channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"signalroom/internal/logging"
	"signalroom/internal/resilience"
)

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Slack posts to an incoming webhook.
type Slack struct {
	webhookURL string
	http       *http.Client
	exec       failsafe.Executor[*resilience.Response]
}

func NewSlack(webhookURL string, log logging.Logger) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 15 * time.Second},
		exec: resilience.NewExecutor(resilience.Config{
			Name:       "slack",
			MaxRetries: 2,
			BaseDelay:  time.Second,
			MaxDelay:   5 * time.Second,
			Logger:     log,
		}),
	}
}

func (s *Slack) Notify(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	resp, err := resilience.Do(ctx, s.exec, s.http, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	if !resp.OK() {
		return fmt.Errorf("slack webhook: status %d: %s", resp.StatusCode, string(resp.Body))
	}
	return nil
}

// Multi delivers to every notifier and succeeds when at least one did.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, text string) error {
	if len(m) == 0 {
		return errors.New("no notifiers configured")
	}

	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}
