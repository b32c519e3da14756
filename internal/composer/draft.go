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
	"errors"
	"fmt"
	"strings"
	"time"

	"signalroom/internal/domain"
	"signalroom/internal/inference"
	"signalroom/internal/logging"
)

// ErrSaveDraft wraps a failure to store a generated draft.
var ErrSaveDraft = errors.New("save draft")

// ErrEmptyGeneration is reported by operations that cannot go on without text.
var ErrEmptyGeneration = errors.New("generation returned no text")

type DraftRequest struct {
	TopicTitle  string          `json:"topicTitle" validate:"required"`
	Summary     string          `json:"topicSummary"`
	Keywords    []string        `json:"keywords"`
	SourceLinks []string        `json:"sourceLinks"`
	Platform    domain.Platform `json:"platform" validate:"required,oneof=twitter linkedin"`
	Angle       string          `json:"angle,omitempty"`
}

func requestFromTopic(t domain.Topic, platform domain.Platform, angle string) DraftRequest {
	return DraftRequest{
		TopicTitle:  t.TopicTitle,
		Summary:     t.Summary,
		Keywords:    []string{t.Keyword},
		SourceLinks: t.SampleURLs,
		Platform:    platform,
		Angle:       angle,
	}
}

func (r DraftRequest) keyword() *string {
	if len(r.Keywords) == 0 || r.Keywords[0] == "" {
		return nil
	}
	k := r.Keywords[0]
	return &k
}

// draft generates one post and stores it as a draft. An empty answer yields
// a nil post and no error.
func (c *Composer) draft(ctx context.Context, req DraftRequest, scheduledAt *time.Time) (*domain.Post, int, error) {
	res, err := c.gen.Generate(ctx, inference.Request{
		System:    systemPrompt(req.Platform, c.memory.Load(ctx, req.Platform)),
		Prompt:    draftPrompt(req),
		MaxTokens: draftMaxTokens,
	})
	if err != nil {
		return nil, 0, err
	}
	c.metrics.Tokens("draft", res.Tokens())

	log := c.log.WithFields(logging.Fields{
		"component": "drafter",
		"platform":  req.Platform,
		"topic":     req.TopicTitle,
	})
	if res.Text == "" {
		log.Warn("empty draft answer")
		return nil, res.Tokens(), nil
	}

	post, err := c.store.InsertPost(ctx, domain.Post{
		Platform:      req.Platform,
		Content:       res.Text,
		Status:        domain.StatusDraft,
		ScheduledAt:   scheduledAt,
		SourceTopic:   req.TopicTitle,
		SourceKeyword: req.keyword(),
		CreatedDate:   c.cal.Today(),
	})
	if err != nil {
		return nil, res.Tokens(), fmt.Errorf("%w: %w", ErrSaveDraft, err)
	}

	log.WithFields(logging.Fields{
		"post_id": post.ID,
		"tokens":  res.Tokens(),
		"chars":   len([]rune(post.Content)),
	}).Info("draft created")
	c.emit("drafted", post)

	return post, res.Tokens(), nil
}

// Draft creates an unscheduled draft for one topic on request. A topic that
// already has a live post today on the platform is refused.
func (c *Composer) Draft(ctx context.Context, req DraftRequest) (*domain.Post, error) {
	req.TopicTitle = strings.TrimSpace(req.TopicTitle)
	if req.TopicTitle == "" {
		return nil, fmt.Errorf("%w: topicTitle is required", domain.ErrInvalidInput)
	}
	if !req.Platform.Valid() {
		return nil, fmt.Errorf("%w: platform must be one of: twitter, linkedin", domain.ErrInvalidInput)
	}

	existing, err := c.store.PostsCreatedOn(ctx, req.Platform, c.cal.Today())
	if err != nil {
		return nil, err
	}
	if occupied(existing)[req.TopicTitle] {
		return nil, fmt.Errorf("%w: topic %q already has a %s post today", domain.ErrConflict, req.TopicTitle, req.Platform)
	}

	post, _, err := c.draft(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrEmptyGeneration
	}
	return post, nil
}

// occupied holds the topics with a non-rejected post.
func occupied(posts []domain.Post) map[string]bool {
	set := make(map[string]bool, len(posts))
	for _, p := range posts {
		if p.Status != domain.StatusRejected {
			set[p.SourceTopic] = true
		}
	}
	return set
}

// touched holds every topic with any post, rejected ones included.
func touched(posts []domain.Post) map[string]bool {
	set := make(map[string]bool, len(posts))
	for _, p := range posts {
		set[p.SourceTopic] = true
	}
	return set
}

func usedSlots(posts []domain.Post) map[int64]bool {
	set := make(map[int64]bool, len(posts))
	for _, p := range posts {
		if p.ScheduledAt != nil {
			set[p.ScheduledAt.Unix()] = true
		}
	}
	return set
}

func (c *Composer) revisionRequest(ctx context.Context, original, feedback string, req DraftRequest) inference.Request {
	return inference.Request{
		System:    systemPrompt(req.Platform, c.memory.Load(ctx, req.Platform)),
		Prompt:    revisionPrompt(original, feedback, req),
		MaxTokens: draftMaxTokens,
	}
}
