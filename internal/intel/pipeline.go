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

// Package intel turns collected community posts into keyword signals,
// emerging topics and a daily narrative report.
package intel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"signalroom/internal/calendar"
	"signalroom/internal/domain"
	"signalroom/internal/enrich"
	"signalroom/internal/inference"
	"signalroom/internal/logging"
	"signalroom/internal/metrics"
	"signalroom/internal/notify"
	"signalroom/internal/runlog"
)

const (
	SynthesizerRun = "synthesizer"
	TargetAll      = "all"
)

type Store interface {
	ActiveKeywords(ctx context.Context, category domain.Category) ([]string, error)
	SaveSignals(ctx context.Context, signals []domain.KeywordSignal) error
	SaveTopics(ctx context.Context, topics []domain.Topic) error
	SignalsOn(ctx context.Context, date string) ([]domain.KeywordSignal, error)
	TopicsOn(ctx context.Context, date string, category domain.Category) ([]domain.Topic, error)
	GetReport(ctx context.Context, date string) (*domain.DailyReport, error)
	UpsertReport(ctx context.Context, r domain.DailyReport) error
	MarkReportPosted(ctx context.Context, date string, at time.Time) error
}

// Enricher loads the readable text behind a link.
type Enricher interface {
	Fetch(ctx context.Context, pageURL string) (enrich.Content, error)
}

type Options struct {
	ExtractionModel string
	SynthesisModel  string
	// MaxEnrichPosts bounds link fetches per source run. Zero disables them.
	MaxEnrichPosts int
}

type Pipeline struct {
	store      Store
	gen        inference.Generator
	collectors []Collector
	enricher   Enricher
	notifier   notify.Notifier
	ledger     *runlog.Ledger
	cal        *calendar.Calendar
	metrics    *metrics.Metrics
	log        logging.Logger
	opts       Options

	detached sync.WaitGroup
}

func New(
	store Store,
	gen inference.Generator,
	collectors []Collector,
	enricher Enricher,
	notifier notify.Notifier,
	ledger *runlog.Ledger,
	cal *calendar.Calendar,
	m *metrics.Metrics,
	log logging.Logger,
	opts Options,
) *Pipeline {
	return &Pipeline{
		store:      store,
		gen:        gen,
		collectors: collectors,
		enricher:   enricher,
		notifier:   notifier,
		ledger:     ledger,
		cal:        cal,
		metrics:    m,
		log:        log,
		opts:       opts,
	}
}

// AddNotifier adds a report destination. Call it before the pipeline runs.
func (p *Pipeline) AddNotifier(n notify.Notifier) {
	switch current := p.notifier.(type) {
	case nil:
		p.notifier = notify.Multi{n}
	case notify.Multi:
		p.notifier = append(current, n)
	default:
		p.notifier = notify.Multi{current, n}
	}
}

// Targets lists what Trigger accepts.
func (p *Pipeline) Targets() []string {
	targets := []string{TargetAll}
	for _, c := range p.collectors {
		targets = append(targets, c.Name())
	}
	return append(targets, SynthesizerRun)
}

type SourceReport struct {
	Source  string `json:"source"`
	Posts   int    `json:"posts_fetched"`
	Signals int    `json:"signals"`
	Topics  int    `json:"topics"`
	Tokens  int    `json:"llm_tokens"`
}

func (r *SourceReport) RunMetrics() runlog.Metrics {
	return runlog.Metrics{
		PostsFetched: runlog.Count(r.Posts),
		LLMTokens:    runlog.Count(r.Tokens),
	}
}

// Collect runs one collector and extracts its posts, one ledger entry named
// after the source.
func (p *Pipeline) Collect(ctx context.Context, c Collector) (*SourceReport, error) {
	return runlog.Wrap(ctx, p.ledger, c.Name(), func(ctx context.Context) (*SourceReport, error) {
		return p.collect(ctx, c)
	})
}

func (p *Pipeline) collect(ctx context.Context, c Collector) (*SourceReport, error) {
	report := &SourceReport{Source: c.Name()}

	if err := p.gen.Ready(ctx); err != nil {
		return report, err
	}

	weekend := p.cal.Weekday() == int(time.Monday)
	lookback := 1
	if weekend {
		lookback = 7
	}
	since, err := p.cal.At(p.cal.Offset(-lookback), 0, 0)
	if err != nil {
		return report, err
	}

	posts, err := c.Collect(ctx, CollectOptions{Since: since, WeekendRoundup: weekend})
	if err != nil {
		return report, err
	}
	report.Posts = len(posts)
	log := p.log.WithFields(logging.Fields{"source": c.Name(), "posts": len(posts), "weekend": weekend})
	if len(posts) == 0 {
		log.Info("nothing collected")
		return report, nil
	}

	p.enrichBodies(ctx, posts)

	byCategory := make(map[domain.Category][]RawPost)
	for _, post := range posts {
		byCategory[post.Category] = append(byCategory[post.Category], post)
	}

	for _, category := range []domain.Category{domain.CategoryEcosystem, domain.CategoryEnterprise} {
		group := byCategory[category]
		if len(group) == 0 {
			continue
		}

		keywords, err := p.store.ActiveKeywords(ctx, category)
		if err != nil {
			return report, err
		}

		extraction, err := p.Extract(ctx, c.Name(), category, group, keywords)
		if err != nil {
			return report, fmt.Errorf("extract %s %s: %w", c.Name(), category, err)
		}
		report.Tokens += extraction.Tokens

		if err := p.store.SaveSignals(ctx, extraction.Signals); err != nil {
			return report, err
		}
		if err := p.store.SaveTopics(ctx, extraction.Topics); err != nil {
			return report, err
		}
		report.Signals += len(extraction.Signals)
		report.Topics += len(extraction.Topics)
	}

	log.WithFields(logging.Fields{"signals": report.Signals, "topics": report.Topics}).Info("source extracted")
	return report, nil
}

// enrichBodies fills empty post bodies from their links. Failures leave the
// body empty.
func (p *Pipeline) enrichBodies(ctx context.Context, posts []RawPost) {
	if p.enricher == nil || p.opts.MaxEnrichPosts <= 0 {
		return
	}

	fetched := 0
	for i := range posts {
		if fetched == p.opts.MaxEnrichPosts {
			return
		}
		if posts[i].Body != "" || posts[i].URL == "" {
			continue
		}
		fetched++

		content, err := p.enricher.Fetch(ctx, posts[i].URL)
		if err != nil {
			p.log.WithError(err).WithField("url", posts[i].URL).Debug("could not enrich post")
			continue
		}
		posts[i].Body = content.Text
	}
}

// RunDaily runs every collector in order and then the synthesizer. A failed
// step does not stop the ones after it.
func (p *Pipeline) RunDaily(ctx context.Context) error {
	var errs []error
	for _, c := range p.collectors {
		if err := p.step(ctx, c.Name()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.step(ctx, SynthesizerRun); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Trigger validates target and runs it in the background. It returns as soon
// as the run has started.
func (p *Pipeline) Trigger(ctx context.Context, target string) error {
	if !p.validTarget(target) {
		return fmt.Errorf("unknown target %q: %w", target, domain.ErrInvalidInput)
	}

	detached := context.WithoutCancel(ctx)
	p.detached.Add(1)
	go func() {
		defer p.detached.Done()

		var err error
		if target == TargetAll {
			err = p.RunDaily(detached)
		} else {
			err = p.step(detached, target)
		}
		if err != nil {
			p.log.WithError(err).WithField("target", target).Warn("triggered run finished with errors")
		}
	}()

	return nil
}

// Wait blocks until every triggered run has returned.
func (p *Pipeline) Wait() {
	p.detached.Wait()
}

func (p *Pipeline) validTarget(target string) bool {
	for _, t := range p.Targets() {
		if t == target {
			return true
		}
	}
	return false
}

// step runs one named step. Panics are contained after the ledger has seen
// them.
func (p *Pipeline) step(ctx context.Context, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
			p.log.WithField("function", name).Error(err)
		}
	}()

	if name == SynthesizerRun {
		_, err = p.Synthesize(ctx)
		return err
	}
	for _, c := range p.collectors {
		if c.Name() == name {
			_, err = p.Collect(ctx, c)
			return err
		}
	}
	return fmt.Errorf("unknown step %q: %w", name, domain.ErrInvalidInput)
}
