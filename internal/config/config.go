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
	"encoding/json"
	"errors"
	"io"
	"os"

	"signalroom/internal/spreadsheet"
)

var CONFIG_PATH string = ""

type DBConf struct {
	File string `json:"file"`
}

type GenerationConf struct {
	// anthropic or ollama
	Provider         string `json:"provider"`
	DefaultModel     string `json:"default_model"`
	CurationModel    string `json:"curation_model"`
	SynthesisModel   string `json:"synthesis_model"`
	AnthropicBaseURL string `json:"anthropic_base_url"`
	OllamaModel      string `json:"ollama_model"`
	TimeoutSeconds   uint   `json:"timeout_seconds"`
}

type ComposerConf struct {
	AutoDraftPlatforms []string       `json:"auto_draft_platforms"`
	SlotTimes          []string       `json:"slot_times"`
	MemoryLimit        int            `json:"memory_limit"`
	DailyLimits        map[string]int `json:"daily_limits"`
	LockLeaseMinutes   int            `json:"lock_lease_minutes"`
}

type TwitterConf struct {
	BaseURL     string `json:"base_url"`
	BearerToken string `json:"bearer_token"`
}

type LinkedInConf struct {
	BaseURL     string `json:"base_url"`
	AccessToken string `json:"access_token"`
	AuthorURN   string `json:"author_urn"`
}

type PublishConf struct {
	DryRun   bool         `json:"dry_run"`
	Twitter  TwitterConf  `json:"twitter"`
	LinkedIn LinkedInConf `json:"linkedin"`
}

type IntelligenceConf struct {
	InboxDir       string   `json:"inbox_dir"`
	Sources        []string `json:"sources"`
	EnrichLinks    bool     `json:"enrich_links"`
	MaxEnrichPosts int      `json:"max_enrich_posts"`
}

type SlackConf struct {
	WebhookURL string `json:"webhook_url"`
}

type TelegramConf struct {
	Enabled        bool    `json:"enabled"`
	ApiToken       string  `json:"api_token"`
	Public         bool    `json:"is_public"`
	AllowedUserIDs []int64 `json:"allowed_user_ids"`
	ReportChatIDs  []int64 `json:"report_chat_ids"`
}

type GoogleSheetsConf struct {
	Config          spreadsheet.Config `json:"config"`
	CredentialsFile string             `json:"credentials_file"`
}

type Sheets struct {
	PushToGoogleSheet bool             `json:"push_to_google_sheet"`
	Google            GoogleSheetsConf `json:"google"`
}

type WebConf struct {
	Enabled   bool   `json:"enabled"`
	Port      uint   `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	JWTSecret string `json:"jwt_secret"`
}

type Config struct {
	TimeZone     string           `json:"time_zone"`
	DB           DBConf           `json:"database"`
	Generation   GenerationConf   `json:"generation"`
	Composer     ComposerConf     `json:"composer"`
	Publish      PublishConf      `json:"publish"`
	Intelligence IntelligenceConf `json:"intelligence"`
	Slack        SlackConf        `json:"slack"`
	Telegram     TelegramConf     `json:"telegram"`
	Sheets       Sheets           `json:"sheets"`
	Web          WebConf          `json:"web"`
	LogsFile     string           `json:"logs_file"`
	Debug        bool             `json:"debug"`
}

func DefaultConfig() *Config {
	return &Config{
		TimeZone: "Australia/Sydney",
		DB: DBConf{
			File: "signalroom.sqlite3",
		},
		Generation: GenerationConf{
			Provider:         "anthropic",
			DefaultModel:     "claude-haiku-4-5-20251001",
			CurationModel:    "claude-sonnet-4-20250514",
			SynthesisModel:   "claude-sonnet-4-6",
			AnthropicBaseURL: "https://api.anthropic.com",
			OllamaModel:      "llama3.1:8b",
			TimeoutSeconds:   120,
		},
		Composer: ComposerConf{
			AutoDraftPlatforms: []string{"twitter"},
			SlotTimes:          []string{"07:00", "09:00", "11:00", "13:00", "15:00"},
			MemoryLimit:        15,
			DailyLimits: map[string]int{
				"twitter":  16,
				"linkedin": 50,
			},
			LockLeaseMinutes: 30,
		},
		Publish: PublishConf{
			DryRun: true,
			Twitter: TwitterConf{
				BaseURL: "https://api.twitter.com",
			},
			LinkedIn: LinkedInConf{
				BaseURL: "https://api.linkedin.com",
			},
		},
		Intelligence: IntelligenceConf{
			InboxDir:       "inbox",
			Sources:        []string{"hackernews", "reddit", "twitter"},
			EnrichLinks:    true,
			MaxEnrichPosts: 10,
		},
		Telegram: TelegramConf{
			Enabled:        false,
			ApiToken:       "tg_api_token",
			Public:         false,
			AllowedUserIDs: []int64{},
			ReportChatIDs:  []int64{},
		},
		Sheets: Sheets{
			PushToGoogleSheet: false,
			Google: GoogleSheetsConf{
				CredentialsFile: "secret.json",
				Config: spreadsheet.NewConfig(
					nil, "spreadsheet_id", "Published",
				),
			},
		},
		Web: WebConf{
			Enabled:   true,
			Port:      8080,
			Username:  "admin",
			Password:  "change-me",
			JWTSecret: "change-me-too",
		},
		LogsFile: "signalroom.log",
		Debug:    false,
	}
}

// ApplyEnv overrides file values with environment variables where set.
func (conf *Config) ApplyEnv() {
	conf.DB.File = GetEnv("DB_FILE", conf.DB.File)
	conf.TimeZone = GetEnv("TIME_ZONE", conf.TimeZone)
	conf.Slack.WebhookURL = GetEnv("SLACK_WEBHOOK_URL", conf.Slack.WebhookURL)
	conf.Telegram.ApiToken = GetEnv("TELEGRAM_API_TOKEN", conf.Telegram.ApiToken)
	conf.Web.Port = uint(GetEnvInt("WEB_PORT", int(conf.Web.Port)))
	conf.Web.JWTSecret = GetEnv("WEB_JWT_SECRET", conf.Web.JWTSecret)
	conf.Publish.DryRun = GetEnvBool("PUBLISH_DRY_RUN", conf.Publish.DryRun)
	conf.Telegram.Enabled = GetEnvBool("TELEGRAM_ENABLED", conf.Telegram.Enabled)
}

func (conf *Config) Save(filepath string) error {
	file, err := os.OpenFile(filepath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	// Sheet credentials are loaded from their own file at startup
	c := *conf
	c.Sheets.Google.Config.CredentialsJSON = nil

	jsonBytes, err := json.MarshalIndent(&c, "", "\t")
	if err != nil {
		return err
	}

	_, err = file.Write(jsonBytes)

	CONFIG_PATH = filepath

	return err
}

func ConfigFrom(filepath string) (*Config, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	conf := DefaultConfig()
	err = json.Unmarshal(contents, conf)
	if err != nil {
		return nil, err
	}

	CONFIG_PATH = filepath

	return conf, nil
}

func (conf *Config) Update() error {
	if CONFIG_PATH == "" {
		return errors.New("config file path is unknown")
	}

	return conf.Save(CONFIG_PATH)
}
