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
	"fmt"
	"strings"

	"signalroom/internal/config"
)

const (
	SettingModel  = "llm_model"
	SettingAPIKey = "anthropic_api_key"
)

type SettingsReader interface {
	Setting(ctx context.Context, key string) (string, bool, error)
}

type Credentials struct {
	Model  string
	APIKey string
}

// CredentialStore reads the model and key from runtime settings first and
// falls back to ANTHROPIC_API_KEY at call time.
type CredentialStore struct {
	settings     SettingsReader
	defaultModel string
}

func NewCredentialStore(settings SettingsReader, defaultModel string) *CredentialStore {
	return &CredentialStore{settings: settings, defaultModel: defaultModel}
}

func (s *CredentialStore) Get(ctx context.Context) (Credentials, error) {
	creds := Credentials{Model: s.defaultModel}

	if s.settings != nil {
		model, ok, err := s.settings.Setting(ctx, SettingModel)
		if err != nil {
			return creds, fmt.Errorf("read %s: %w", SettingModel, err)
		}
		if ok && strings.TrimSpace(model) != "" {
			creds.Model = strings.TrimSpace(model)
		}

		key, ok, err := s.settings.Setting(ctx, SettingAPIKey)
		if err != nil {
			return creds, fmt.Errorf("read %s: %w", SettingAPIKey, err)
		}
		if ok {
			creds.APIKey = strings.TrimSpace(key)
		}
	}

	if creds.APIKey == "" {
		creds.APIKey = config.GetEnv("ANTHROPIC_API_KEY", "")
	}

	return creds, nil
}
