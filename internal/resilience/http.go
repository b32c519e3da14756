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

// Package resilience wraps outbound HTTP calls in failsafe-go retry and
// circuit breaker policies.
package resilience

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"signalroom/internal/logging"
)

// Response is a fully read HTTP response, so retried attempts never leak
// bodies.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

type Config struct {
	Name string
	// MaxRetries of zero disables the retry policy; only the breaker applies.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Logger receives breaker state changes when set.
	Logger logging.Logger
}

// Retryable reports whether an attempt should be retried: transport errors,
// 429 and 5xx.
func Retryable(resp *Response, err error) bool {
	if err != nil {
		return true
	}
	return resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)
}

func NewExecutor(cfg Config) failsafe.Executor[*Response] {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 10 * time.Second
	}

	breakerBuilder := circuitbreaker.NewBuilder[*Response]().
		WithFailureThresholdRatio(5, 10).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		HandleIf(func(resp *Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode >= 500)
		})
	if cfg.Logger != nil {
		name := cfg.Name
		log := cfg.Logger
		breakerBuilder = breakerBuilder.OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			log.WithFields(logging.Fields{
				"breaker": name,
				"from":    stateName(event.OldState),
				"to":      stateName(event.NewState),
			}).Warn("circuit breaker state changed")
		})
	}
	breaker := breakerBuilder.Build()

	if cfg.MaxRetries <= 0 {
		return failsafe.With[*Response](breaker)
	}

	retry := retrypolicy.NewBuilder[*Response]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(Retryable).
		ReturnLastFailure().
		Build()

	return failsafe.With[*Response](retry, breaker)
}

func stateName(state circuitbreaker.State) string {
	switch state {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}

// Do builds and sends a request through executor. build is called once per
// attempt so request bodies can be replayed.
func Do(ctx context.Context, executor failsafe.Executor[*Response], client *http.Client, build func(ctx context.Context) (*http.Request, error)) (*Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	return executor.WithContext(ctx).Get(func() (*Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}

		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	})
}
