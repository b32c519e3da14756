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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"signalroom/internal/calendar"
	"signalroom/internal/composer"
	"signalroom/internal/config"
	"signalroom/internal/db"
	"signalroom/internal/domain"
	"signalroom/internal/enrich"
	"signalroom/internal/inference"
	"signalroom/internal/intel"
	"signalroom/internal/logging"
	"signalroom/internal/memory"
	"signalroom/internal/metrics"
	"signalroom/internal/notify"
	"signalroom/internal/publish"
	"signalroom/internal/runlog"
	"signalroom/internal/spreadsheet"
)

// app holds everything the subcommands share. Transport layers (web, bot,
// scheduler) are built by serve on top of it.
type app struct {
	conf     *config.Config
	log      logging.Logger
	logsFile *os.File

	db         *db.DB
	cal        *calendar.Calendar
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	ledger     *runlog.Ledger
	ollama     *inference.Ollama
	composer   *composer.Composer
	dispatcher *publish.Dispatcher
	pipeline   *intel.Pipeline
	watcher    *intel.Watcher
}

// loadConfig reads path, writing a default file first when there is none.
func loadConfig(path string) (*config.Config, bool, error) {
	conf, err := config.ConfigFrom(path)
	if err == nil {
		conf.ApplyEnv()
		return conf, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("read config %s: %w", path, err)
	}

	conf = config.DefaultConfig()
	if err := conf.Save(path); err != nil {
		return nil, false, fmt.Errorf("write default config %s: %w", path, err)
	}
	config.CONFIG_PATH = path
	conf.ApplyEnv()
	return conf, true, nil
}

func newApp(ctx context.Context, conf *config.Config) (*app, error) {
	a := &app{conf: conf}

	out := io.Writer(os.Stdout)
	if conf.LogsFile != "" {
		logsFile, err := os.OpenFile(conf.LogsFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open logs file: %w", err)
		}
		a.logsFile = logsFile
		out = io.MultiWriter(logsFile, os.Stdout)
	}
	level := config.GetLogLevel()
	if conf.Debug {
		level = "debug"
	}
	a.log = logging.New(level, out)

	cal, err := calendar.New(conf.TimeZone)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cal = cal

	store, err := db.NewDB(conf.DB.File)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = store

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	a.ledger = runlog.NewLedger(store, cal, a.log)
	a.ledger.Observe(a.metrics.ObserveRun)

	gen, err := a.generator()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.dispatcher = a.newDispatcher(ctx)

	a.composer = composer.New(
		store,
		gen,
		memory.New(store, conf.Composer.MemoryLimit, a.log),
		a.dispatcher,
		a.ledger,
		cal,
		a.metrics,
		a.log,
		composer.Options{
			Platforms:     platforms(conf.Composer.AutoDraftPlatforms, a.log),
			SlotTimes:     conf.Composer.SlotTimes,
			CurationModel: conf.Generation.CurationModel,
			LockLease:     time.Duration(conf.Composer.LockLeaseMinutes) * time.Minute,
		},
	)

	a.pipeline = a.newPipeline(gen)
	a.watcher = intel.NewWatcher(store)

	return a, nil
}

func (a *app) generator() (inference.Generator, error) {
	gen := a.conf.Generation

	ollama, err := inference.NewOllama(gen.OllamaModel, gen.TimeoutSeconds)
	if err != nil {
		a.log.WithError(err).Warn("ollama client unavailable")
	}
	a.ollama = ollama

	switch gen.Provider {
	case "ollama":
		if ollama == nil {
			return nil, fmt.Errorf("generation provider is ollama but the client failed: %w", err)
		}
		return ollama, nil
	case "anthropic", "":
		creds := inference.NewCredentialStore(a.db, gen.DefaultModel)
		return inference.NewAnthropic(gen.AnthropicBaseURL, creds, time.Duration(gen.TimeoutSeconds)*time.Second, a.log), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", gen.Provider)
	}
}

func (a *app) newDispatcher(ctx context.Context) *publish.Dispatcher {
	conf := a.conf.Publish
	d := publish.NewDispatcher(a.db, a.ledger, a.cal, a.metrics, a.log)

	if conf.DryRun {
		dry := publish.NewDryRunAdapter(a.log)
		for _, p := range domain.Platforms {
			d.Register(p, dry)
		}
		a.log.Warn("publishing in dry-run mode, nothing leaves this process")
	} else {
		if conf.Twitter.BearerToken != "" {
			d.Register(domain.PlatformTwitter, publish.NewTwitterAdapter(conf.Twitter.BaseURL, conf.Twitter.BearerToken, a.log))
		}
		if conf.LinkedIn.AccessToken != "" {
			d.Register(domain.PlatformLinkedIn, publish.NewLinkedInAdapter(conf.LinkedIn.BaseURL, conf.LinkedIn.AccessToken, conf.LinkedIn.AuthorURN, a.log))
		}
	}

	for name, limit := range a.conf.Composer.DailyLimits {
		if p := domain.Platform(name); p.Valid() {
			d.SetLimit(p, limit)
		}
	}

	if a.conf.Sheets.PushToGoogleSheet {
		mirror, err := a.sheetsMirror(ctx)
		if err != nil {
			a.log.WithError(err).Error("google sheet mirror disabled")
		} else {
			d.AddMirror(mirror)
		}
	}
	return d
}

func (a *app) sheetsMirror(ctx context.Context) (*spreadsheet.GoogleSheetsClient, error) {
	sheetsConf := a.conf.Sheets.Google.Config
	credentials, err := os.ReadFile(a.conf.Sheets.Google.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read google credentials: %w", err)
	}
	sheetsConf.CredentialsJSON = credentials
	return spreadsheet.NewGoogleSheetsClient(ctx, sheetsConf)
}

func (a *app) newPipeline(gen inference.Generator) *intel.Pipeline {
	conf := a.conf.Intelligence

	collectors := make([]intel.Collector, 0, len(conf.Sources))
	for _, source := range conf.Sources {
		collectors = append(collectors, intel.NewFileCollector(filepath.Clean(conf.InboxDir), source))
	}

	var enricher intel.Enricher
	maxEnrich := 0
	if conf.EnrichLinks {
		enricher = enrich.NewFetcher(15 * time.Second)
		maxEnrich = conf.MaxEnrichPosts
	}

	p := intel.New(a.db, gen, collectors, enricher, nil, a.ledger, a.cal, a.metrics, a.log, intel.Options{
		ExtractionModel: a.conf.Generation.DefaultModel,
		SynthesisModel:  a.conf.Generation.SynthesisModel,
		MaxEnrichPosts:  maxEnrich,
	})
	if a.conf.Slack.WebhookURL != "" {
		p.AddNotifier(notify.NewSlack(a.conf.Slack.WebhookURL, a.log))
	}
	return p
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.logsFile != nil {
		a.logsFile.Close()
	}
}

func platforms(names []string, log logging.Logger) []domain.Platform {
	out := make([]domain.Platform, 0, len(names))
	for _, name := range names {
		p := domain.Platform(name)
		if !p.Valid() {
			log.WithField("platform", name).Warn("unknown auto-draft platform ignored")
			continue
		}
		out = append(out, p)
	}
	return out
}
