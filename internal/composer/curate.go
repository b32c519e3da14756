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

package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"signalroom/internal/domain"
	"signalroom/internal/inference"
	"signalroom/internal/logging"
)

const maxPicks = 5

// Pick is a topic chosen for drafting, with the angle the curator gave it.
// Fallback picks carry no angle.
type Pick struct {
	Topic domain.Topic
	Angle string
}

var jsonArray = regexp.MustCompile(`\[[\s\S]*\]`)

// ParseCuration matches the curator's answer back to topics by exact title.
// Titles not in topics are dropped, as are repeats.
func ParseCuration(text string, topics []domain.Topic) ([]Pick, error) {
	raw := jsonArray.FindString(text)
	if raw == "" {
		return nil, fmt.Errorf("curation answer has no JSON array")
	}

	var answer []struct {
		TopicTitle string `json:"topic_title"`
		Angle      string `json:"angle"`
	}
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return nil, fmt.Errorf("decode curation answer: %w", err)
	}

	byTitle := make(map[string]domain.Topic, len(topics))
	for _, t := range topics {
		byTitle[t.TopicTitle] = t
	}

	picks := make([]Pick, 0, maxPicks)
	seen := make(map[string]bool)
	for _, a := range answer {
		topic, ok := byTitle[a.TopicTitle]
		if !ok || seen[a.TopicTitle] {
			continue
		}
		seen[a.TopicTitle] = true
		picks = append(picks, Pick{Topic: topic, Angle: a.Angle})
		if len(picks) == maxPicks {
			break
		}
	}
	return picks, nil
}

// Fallback picks the highest volume topics without angles.
func Fallback(topics []domain.Topic) []Pick {
	ranked := make([]domain.Topic, len(topics))
	copy(ranked, topics)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PostCount > ranked[j].PostCount
	})

	n := min(len(ranked), maxPicks)
	picks := make([]Pick, n)
	for i := range n {
		picks[i] = Pick{Topic: ranked[i]}
	}
	return picks
}

// Curate asks for at most five topics with angles. Any failure, an empty
// answer or zero matched titles falls back to the volume ranking.
func (c *Composer) Curate(ctx context.Context, topics []domain.Topic, memoryBlock string) ([]Pick, int) {
	if len(topics) == 0 {
		return nil, 0
	}
	log := c.log.WithFields(logging.Fields{"component": "curator", "available": len(topics)})

	res, err := c.gen.Generate(ctx, inference.Request{
		System:    curationSystemPrompt(memoryBlock),
		Prompt:    curationUserPrompt(topics),
		MaxTokens: curationMaxTokens,
		Model:     c.opts.CurationModel,
	})
	if err != nil {
		log.WithError(err).Warn("curation failed, falling back to top topics")
		return Fallback(topics), 0
	}
	c.metrics.Tokens("curation", res.Tokens())

	if res.Text == "" {
		log.Warn("empty curation answer, falling back to top topics")
		return Fallback(topics), res.Tokens()
	}

	picks, err := ParseCuration(res.Text, topics)
	if err != nil {
		log.WithError(err).Warn("unusable curation answer, falling back to top topics")
		return Fallback(topics), res.Tokens()
	}
	if len(picks) == 0 {
		log.Warn("curation matched no topics, falling back to top topics")
		return Fallback(topics), res.Tokens()
	}

	log.WithField("picked", len(picks)).Info("topics curated")
	return picks, res.Tokens()
}
