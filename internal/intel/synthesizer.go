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

package intel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"signalroom/internal/domain"
	"signalroom/internal/inference"
	"signalroom/internal/logging"
	"signalroom/internal/runlog"
)

const synthesisMaxTokens = 1024

type SynthesisReport struct {
	Report *domain.DailyReport `json:"report,omitempty"`
	Posted bool                `json:"posted"`
	Tokens int                 `json:"llm_tokens"`
}

func (r *SynthesisReport) RunMetrics() runlog.Metrics {
	return runlog.Metrics{LLMTokens: runlog.Count(r.Tokens)}
}

// Synthesize writes today's report from today's signals and topics and
// pushes it to the notifier.
func (p *Pipeline) Synthesize(ctx context.Context) (*SynthesisReport, error) {
	return runlog.Wrap(ctx, p.ledger, SynthesizerRun, p.synthesize)
}

func (p *Pipeline) synthesize(ctx context.Context) (*SynthesisReport, error) {
	out := &SynthesisReport{}
	today := p.cal.Today()

	if err := p.gen.Ready(ctx); err != nil {
		return out, err
	}

	signals, err := p.store.SignalsOn(ctx, today)
	if err != nil {
		return out, err
	}
	topics, err := p.store.TopicsOn(ctx, today, "")
	if err != nil {
		return out, err
	}
	if len(signals) == 0 {
		p.log.WithField("date", today).Info("no signals for today, has a collector run yet?")
		return out, nil
	}

	sentiments := make([]string, len(signals))
	for i, s := range signals {
		sentiments[i] = s.Sentiment
	}
	score := MeanScore(sentiments)

	var yesterday *float64
	previous, err := p.store.GetReport(ctx, p.cal.Offset(-1))
	switch {
	case err == nil:
		yesterday = &previous.SentimentScore
	case !errors.Is(err, domain.ErrNotFound):
		return out, err
	}
	direction := DirectionOf(score, yesterday)
	label := LabelOf(score)

	ecosystem, err := p.digest(ctx, domain.CategoryEcosystem, signals, topics)
	if err != nil {
		return out, err
	}
	out.Tokens += ecosystem.Tokens()

	enterprise, err := p.digest(ctx, domain.CategoryEnterprise, signals, topics)
	if err != nil {
		return out, err
	}
	out.Tokens += enterprise.Tokens()

	report := domain.DailyReport{
		Date:                today,
		EcosystemSynthesis:  ecosystem.Text,
		EnterpriseSynthesis: enterprise.Text,
		SentimentScore:      score,
		SentimentDirection:  direction.Arrow,
		SentimentLabel:      label,
		SlackPostText:       SlackText(ecosystem.Text, enterprise.Text, label, direction),
	}
	if err := p.store.UpsertReport(ctx, report); err != nil {
		return out, err
	}
	out.Report = &report

	out.Posted = p.announce(ctx, report)

	p.log.WithFields(logging.Fields{
		"score":     score,
		"label":     label,
		"direction": direction.Label,
	}).Info("daily report written")
	return out, nil
}

// announce is best-effort; the report is already stored.
func (p *Pipeline) announce(ctx context.Context, report domain.DailyReport) bool {
	if p.notifier == nil {
		p.log.Info("no notifier configured, report not pushed")
		return false
	}
	if err := p.notifier.Notify(ctx, report.SlackPostText); err != nil {
		p.log.WithError(err).Warn("failed to push daily report")
		return false
	}

	if err := p.store.MarkReportPosted(ctx, report.Date, p.cal.Now()); err != nil {
		p.log.WithError(err).Warn("report pushed but posted_at not stamped")
	}
	return true
}

func (p *Pipeline) digest(ctx context.Context, category domain.Category, signals []domain.KeywordSignal, topics []domain.Topic) (inference.Result, error) {
	res, err := p.gen.Generate(ctx, inference.Request{
		Prompt:    DigestPrompt(category, signals, topics),
		MaxTokens: synthesisMaxTokens,
		Model:     p.opts.SynthesisModel,
	})
	if err != nil {
		return res, fmt.Errorf("%s digest: %w", category, err)
	}
	p.metrics.Tokens("synthesis", res.Tokens())
	return res, nil
}

func SlackText(ecosystem, enterprise, label string, direction Direction) string {
	return fmt.Sprintf("*Ecosystem*\n%s\n\n*Enterprise AI*\n%s\n\n*Sentiment* - %s  %s %s vs yesterday",
		ecosystem, enterprise, label, direction.Arrow, direction.Label)
}

// DigestPrompt renders the signals and topics of one category.
func DigestPrompt(category domain.Category, signals []domain.KeywordSignal, topics []domain.Topic) string {
	var lines []string
	for _, s := range signals {
		if s.Category == category {
			lines = append(lines, fmt.Sprintf("- %s: %d posts, %s", s.Keyword, s.PostCount, s.Sentiment))
		}
	}
	volume := strings.Join(lines, "\n")
	if volume == "" {
		volume = "No signals today."
	}

	var own []domain.Topic
	for _, t := range topics {
		if t.Category == category {
			own = append(own, t)
		}
	}

	if category == domain.CategoryEnterprise {
		return fmt.Sprintf(digestTemplate,
			"enterprise AI signals (governance, compliance, deployment, shadow AI, observability)",
			volume, FormatTopics(own), "products, companies, regulations, or incidents")
	}
	return fmt.Sprintf(digestTemplate,
		"ecosystem signals (developer tools, models, open source, coding assistants)",
		volume, FormatTopics(own), "products, people, or events")
}

// FormatTopics lists topics with up to two labelled links each.
func FormatTopics(topics []domain.Topic) string {
	if len(topics) == 0 {
		return "None identified today."
	}

	entries := make([]string, len(topics))
	for i, t := range topics {
		urls := t.SampleURLs[:min(len(t.SampleURLs), 2)]
		links := make([]string, len(urls))
		for j, u := range urls {
			links[j] = fmt.Sprintf("%s [label: %s]", u, URLLabel(u))
		}
		linkLine := strings.Join(links, " | ")
		if linkLine == "" {
			linkLine = "none"
		}
		entries[i] = fmt.Sprintf("- %s (%d posts)\n  Links: %s\n  %s", t.TopicTitle, t.PostCount, linkLine, t.Summary)
	}
	return strings.Join(entries, "\n")
}

const digestTemplate = `You are writing a daily AI industry digest for a technical founding team. Report facts - do not give strategic advice or tell the reader what they should do.

Today's %s:

Signal volume:
%s

Emerging topics with source URLs:
%s

Output format - write each topic as a Slack-formatted entry. Use this exact structure:

*Topic title*  N posts
<URL1|LABEL1>  <URL2|LABEL2>
One or two sentences of factual summary. Name the %s involved.

Use the [label: ...] provided for each URL as the anchor text - e.g. [label: Reddit thread] -> <https://reddit.com/...|Reddit thread>
If only one URL is available, show one link. If no URLs, skip the topic.

Rules:
- Slack bold: *text* (single asterisks only)
- Links: <https://example.com|anchor text>
- Skip topics with no URLs
- No conclusions or recommendations
- Maximum 4 topics
- Plain, direct language`
