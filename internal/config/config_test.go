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

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	conf := DefaultConfig()
	conf.Composer.SlotTimes = []string{"08:00", "12:00"}
	conf.Sheets.Google.Config.CredentialsJSON = []byte(`{"secret":true}`)
	require.NoError(t, conf.Save(path))

	loaded, err := ConfigFrom(path)
	require.NoError(t, err)
	require.Equal(t, []string{"08:00", "12:00"}, loaded.Composer.SlotTimes)
	require.Nil(t, loaded.Sheets.Google.Config.CredentialsJSON)
	require.Equal(t, path, CONFIG_PATH)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DB_FILE", "/tmp/other.sqlite3")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.example/1")
	t.Setenv("PUBLISH_DRY_RUN", "false")

	conf := DefaultConfig()
	conf.ApplyEnv()

	require.Equal(t, "/tmp/other.sqlite3", conf.DB.File)
	require.Equal(t, uint(9090), conf.Web.Port)
	require.Equal(t, "https://hooks.example/1", conf.Slack.WebhookURL)
	require.Equal(t, "Australia/Sydney", conf.TimeZone)
	require.False(t, conf.Publish.DryRun)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SIGNALROOM_INT", "nope")
	t.Setenv("SIGNALROOM_BOOL", "true")

	require.Equal(t, 7, GetEnvInt("SIGNALROOM_INT", 7))
	require.True(t, GetEnvBool("SIGNALROOM_BOOL", false))

	_, err := RequireEnv("SIGNALROOM_MISSING")
	require.Error(t, err)
}
