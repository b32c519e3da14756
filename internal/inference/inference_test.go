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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"signalroom/internal/domain"
	"signalroom/internal/logging"
)

type fakeSettings map[string]string

func (f fakeSettings) Setting(ctx context.Context, key string) (string, bool, error) {
	v, ok := f[key]
	return v, ok, nil
}

func TestCredentialStorePrefersStoredKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	creds, err := NewCredentialStore(fakeSettings{SettingAPIKey: "db-key", SettingModel: "claude-x"}, "default").Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "db-key", creds.APIKey)
	require.Equal(t, "claude-x", creds.Model)
}

func TestCredentialStoreFallsBackToEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	creds, err := NewCredentialStore(fakeSettings{SettingAPIKey: ""}, "default").Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "env-key", creds.APIKey)
	require.Equal(t, "default", creds.Model)
}

func TestAnthropicWithoutKeyIsNotReady(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	a := NewAnthropic("http://127.0.0.1:1", NewCredentialStore(fakeSettings{}, "m"), time.Second, logging.Discard())
	require.ErrorIs(t, a.Ready(context.Background()), ErrNoCredential)

	_, err := a.Generate(context.Background(), Request{Prompt: "hi"})
	require.ErrorIs(t, err, ErrNoCredential)
}

func TestAnthropicGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "claude-override", body.Model)
		require.Equal(t, 512, body.MaxTokens)
		require.Equal(t, "be brief", body.System)
		require.Equal(t, "write", body.Messages[0].Content)

		w.Write([]byte(`{"content":[{"type":"text","text":"  a post  "}],"usage":{"input_tokens":11,"output_tokens":7}}`))
	}))
	defer srv.Close()

	a := NewAnthropic(srv.URL, NewCredentialStore(fakeSettings{SettingAPIKey: "secret"}, "m"), time.Second, logging.Discard())
	res, err := a.Generate(context.Background(), Request{System: "be brief", Prompt: "write", MaxTokens: 512, Model: "claude-override"})
	require.NoError(t, err)
	require.Equal(t, "a post", res.Text)
	require.Equal(t, 18, res.Tokens())
}

func TestAnthropicUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	a := NewAnthropic(srv.URL, NewCredentialStore(fakeSettings{SettingAPIKey: "nope"}, "m"), time.Second, logging.Discard())
	_, err := a.Generate(context.Background(), Request{Prompt: "write"})

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	require.Equal(t, http.StatusUnauthorized, upstream.StatusCode)
	require.Contains(t, upstream.Error(), "bad key")
}

func TestConnectionTesterAnthropic(t *testing.T) {
	statuses := map[string]int{"good": http.StatusOK, "shape": http.StatusBadRequest, "bad": http.StatusUnauthorized}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statuses[r.Header.Get("x-api-key")])
	}))
	defer srv.Close()

	tester := NewConnectionTester(srv.URL, nil)

	res, err := tester.Test(context.Background(), "anthropic", "good")
	require.NoError(t, err)
	require.True(t, res.Connected)

	res, err = tester.Test(context.Background(), "anthropic", "shape")
	require.NoError(t, err)
	require.True(t, res.Connected)

	res, err = tester.Test(context.Background(), "anthropic", "bad")
	require.NoError(t, err)
	require.False(t, res.Connected)
	require.Equal(t, "Invalid API key", res.Error)
}

func TestConnectionTesterUnknownProvider(t *testing.T) {
	_, err := NewConnectionTester("", nil).Test(context.Background(), "carrier-pigeon", "k")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRemoveThinkBlock(t *testing.T) {
	require.Equal(t, "answer", removeThinkBlock("<think>\nhmm\n</think>\n answer "))
}
