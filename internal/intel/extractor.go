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
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"signalroom/internal/domain"
	"signalroom/internal/inference"
)

const (
	maxExtractPosts     = 80
	maxExtractBody      = 350
	maxEmergingTopics   = 8
	extractionMaxTokens = 8192
)

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// Extraction is what one generation call found in one source's posts for
// one category.
type Extraction struct {
	Signals []domain.KeywordSignal
	Topics  []domain.Topic
	Tokens  int
}

type extractionAnswer struct {
	KeywordSignals []struct {
		Keyword   string `json:"keyword"`
		PostCount int    `json:"post_count"`
		Sentiment string `json:"sentiment"`
	} `json:"keyword_signals"`
	EmergingTopics []struct {
		Keyword    string   `json:"keyword"`
		TopicTitle string   `json:"topic_title"`
		Summary    string   `json:"summary"`
		PostCount  int      `json:"post_count"`
		SampleURLs []string `json:"sample_urls"`
	} `json:"emerging_topics"`
}

// ParseExtraction reads the JSON object out of a generation answer, which may
// be wrapped in prose or code fences. Rows are stamped with date and category.
func ParseExtraction(text, date string, category domain.Category) (Extraction, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return Extraction{}, errors.New("extraction did not return valid JSON")
	}

	var answer extractionAnswer
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return Extraction{}, fmt.Errorf("decode extraction answer: %w", err)
	}

	var out Extraction
	for _, s := range answer.KeywordSignals {
		if s.Keyword == "" {
			continue
		}
		out.Signals = append(out.Signals, domain.KeywordSignal{
			Date:      date,
			Keyword:   s.Keyword,
			PostCount: max(s.PostCount, 0),
			Sentiment: normalSentiment(s.Sentiment),
			Category:  category,
		})
	}
	for _, t := range answer.EmergingTopics {
		if t.TopicTitle == "" {
			continue
		}
		out.Topics = append(out.Topics, domain.Topic{
			Date:       date,
			TopicTitle: t.TopicTitle,
			Summary:    t.Summary,
			Keyword:    t.Keyword,
			SampleURLs: t.SampleURLs,
			PostCount:  max(t.PostCount, 0),
			Category:   category,
		})
		if len(out.Topics) == maxEmergingTopics {
			break
		}
	}

	return out, nil
}

func normalSentiment(s string) string {
	switch s {
	case "positive", "negative", "mixed":
		return s
	default:
		return "neutral"
	}
}

// Extract runs one extraction call over posts and parses the answer.
func (p *Pipeline) Extract(ctx context.Context, source string, category domain.Category, posts []RawPost, keywords []string) (Extraction, error) {
	prompt, err := extractionPrompt(source, category, posts, keywords)
	if err != nil {
		return Extraction{}, err
	}

	res, err := p.gen.Generate(ctx, inference.Request{
		Prompt:    prompt,
		MaxTokens: extractionMaxTokens,
		Model:     p.opts.ExtractionModel,
	})
	if err != nil {
		return Extraction{}, err
	}
	p.metrics.Tokens("extraction", res.Tokens())

	out, err := ParseExtraction(res.Text, p.cal.Today(), category)
	if err != nil {
		return Extraction{}, err
	}
	out.Tokens = res.Tokens()
	return out, nil
}

func extractionPrompt(source string, category domain.Category, posts []RawPost, keywords []string) (string, error) {
	type promptPost struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Body  string `json:"body"`
		Score int    `json:"score,omitempty"`
	}

	capped := posts[:min(len(posts), maxExtractPosts)]
	rows := make([]promptPost, len(capped))
	for i, post := range capped {
		rows[i] = promptPost{
			Title: post.Title,
			URL:   post.URL,
			Body:  truncateRunes(post.Body, maxExtractBody),
			Score: post.Score,
		}
	}

	if keywords == nil {
		keywords = []string{}
	}
	postsJSON, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(extractionTemplate, source, categoryContext(category), postsJSON, keywordsJSON, maxEmergingTopics), nil
}

func categoryContext(category domain.Category) string {
	if category == domain.CategoryEnterprise {
		return "enterprise AI adoption, governance, compliance, and organisational deployment challenges"
	}
	return "AI tools, models, and developer ecosystem"
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

const extractionTemplate = `You are analyzing %s posts about %s.

Posts: %s
Keywords being tracked: %s

Your job is to identify what people are ACTUALLY talking about inside these posts, not what category they belong to.

Read the post titles and bodies carefully. Look for the specific thing that keeps coming up: a named product, a specific release, a bug or outage, a particular debate, a person or company being discussed, a feature that launched, a complaint about a concrete thing.

Group related posts into topics. For each topic:

topic_title: Name the SPECIFIC thing being discussed. It must come from reading the posts, not from the keyword alone.
- BAD: "LangSmith adoption in enterprise" (restates the keyword)
- BAD: "MCP ecosystem growth" (too vague, could describe any week)
- GOOD: "LangSmith 0.1.83 breaks trace streaming for long-running agents"
- GOOD: "Anthropic ships MCP filesystem server with sandboxed write access"
- GOOD: "Cursor AI editor raises $900M Series B"
If you cannot find a specific thing in the content, do not create a topic.

summary: Describe what people are actually saying about this specific thing. Include concrete details from the posts such as version numbers, company names, features, error messages and reported outcomes. No generalisations. 2 sentences maximum.

Return JSON only. Maximum %d emerging_topics total.
{
  "keyword_signals": [
    {"keyword": "string", "post_count": number, "sentiment": "positive|neutral|negative|mixed"}
  ],
  "emerging_topics": [
    {
      "keyword": "string",
      "topic_title": "string",
      "summary": "string",
      "post_count": number,
      "sample_urls": ["string"]
    }
  ]
}`
