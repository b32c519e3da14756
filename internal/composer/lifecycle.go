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

	"signalroom/internal/domain"
	"signalroom/internal/logging"
)

type PostRef struct {
	ID          int64  `json:"id"`
	SourceTopic string `json:"source_topic"`
}

type RejectResult struct {
	Rejected    PostRef      `json:"rejected"`
	Replacement *domain.Post `json:"replacement"`
	// ReplacementError is set when a replacement was attempted and failed.
	ReplacementError string `json:"replacement_error,omitempty"`
}

type ReviseResult struct {
	Rejected PostRef      `json:"rejected"`
	Revision *domain.Post `json:"revision"`
}

func (c *Composer) Queue(ctx context.Context) ([]domain.Post, error) {
	return c.store.PostsByStatus(ctx, domain.StatusDraft, domain.StatusScheduled)
}

// History lists today's posts that reached a terminal status.
func (c *Composer) History(ctx context.Context) ([]domain.Post, error) {
	return c.store.TerminalPostsOn(ctx, c.cal.Today(), historyLimit)
}

func (c *Composer) Approve(ctx context.Context, id int64) (*domain.Post, error) {
	post, err := c.store.TransitionPost(ctx, id, domain.StatusDraft, domain.StatusScheduled)
	if err != nil {
		return nil, err
	}
	c.emit("approved", post)
	return post, nil
}

// Publish hands a scheduled post to the dispatcher immediately.
func (c *Composer) Publish(ctx context.Context, id int64) (*domain.Post, error) {
	if c.publisher == nil {
		return nil, errors.New("no publisher configured")
	}
	return c.publisher.Publish(ctx, id)
}

// MarkFailed moves a scheduled or published post to failed, keeping reason
// as its diagnostic.
func (c *Composer) MarkFailed(ctx context.Context, id int64, reason string) (*domain.Post, error) {
	if c.publisher == nil {
		return nil, errors.New("no publisher configured")
	}
	return c.publisher.MarkFailed(ctx, id, reason)
}

func (c *Composer) Edit(ctx context.Context, id int64, content string) (*domain.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required and must be a non-empty string", domain.ErrInvalidInput)
	}
	post, err := c.store.UpdateDraftContent(ctx, id, content)
	if err != nil {
		return nil, err
	}
	c.emit("edited", post)
	return post, nil
}

func (c *Composer) Delete(ctx context.Context, id int64) error {
	if err := c.store.DeletePost(ctx, id); err != nil {
		return err
	}
	for _, fn := range c.observers {
		fn(domain.PostEvent{Action: "deleted", Post: domain.Post{ID: id}})
	}
	return nil
}

// Reject retires a draft and, when it held a slot, drafts the highest volume
// topic of the day that no post on the platform has touched yet.
func (c *Composer) Reject(ctx context.Context, id int64) (*RejectResult, error) {
	post, err := c.store.TransitionPost(ctx, id, domain.StatusDraft, domain.StatusRejected)
	if err != nil {
		return nil, err
	}
	c.emit("rejected", post)

	result := &RejectResult{Rejected: PostRef{ID: post.ID, SourceTopic: post.SourceTopic}}
	if post.ScheduledAt == nil {
		return result, nil
	}

	replacement, err := c.replace(ctx, post)
	if err != nil {
		c.log.WithFields(logging.Fields{
			"component": "lifecycle",
			"post_id":   post.ID,
		}).WithError(err).Error("replacement draft failed")
		result.ReplacementError = err.Error()
		return result, nil
	}
	result.Replacement = replacement
	return result, nil
}

func (c *Composer) replace(ctx context.Context, rejected *domain.Post) (*domain.Post, error) {
	today := c.cal.Today()

	posts, err := c.store.PostsCreatedOn(ctx, rejected.Platform, today)
	if err != nil {
		return nil, err
	}
	topics, err := c.store.TopicsOn(ctx, today, "")
	if err != nil {
		return nil, err
	}

	used := touched(posts)
	for _, t := range topics {
		if used[t.TopicTitle] {
			continue
		}
		post, _, err := c.draft(ctx, requestFromTopic(t, rejected.Platform, ""), rejected.ScheduledAt)
		return post, err
	}
	return nil, nil
}

// Revise drafts a replacement that applies feedback, records the correction
// to editorial memory and rejects the original.
func (c *Composer) Revise(ctx context.Context, id int64, feedback string) (*ReviseResult, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, fmt.Errorf("%w: feedback is required and must be a non-empty string", domain.ErrInvalidInput)
	}

	original, err := c.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if original.Status != domain.StatusDraft {
		return nil, fmt.Errorf("post %d is %s, not draft: %w", id, original.Status, domain.ErrConflict)
	}

	req := DraftRequest{
		TopicTitle: original.SourceTopic,
		Platform:   original.Platform,
	}
	topic, err := c.store.TopicByTitle(ctx, original.CreatedDate, original.SourceTopic)
	switch {
	case err == nil:
		req.Summary = topic.Summary
		req.Keywords = []string{topic.Keyword}
		req.SourceLinks = topic.SampleURLs
	case errors.Is(err, domain.ErrNotFound):
		if original.SourceKeyword != nil {
			req.Keywords = []string{*original.SourceKeyword}
		}
	default:
		return nil, err
	}

	res, err := c.gen.Generate(ctx, c.revisionRequest(ctx, original.Content, feedback, req))
	if err != nil {
		return nil, err
	}
	c.metrics.Tokens("revision", res.Tokens())
	if res.Text == "" {
		return nil, ErrEmptyGeneration
	}

	revision, err := c.store.InsertPost(ctx, domain.Post{
		Platform:      original.Platform,
		Content:       res.Text,
		Status:        domain.StatusDraft,
		ScheduledAt:   original.ScheduledAt,
		SourceTopic:   original.SourceTopic,
		SourceKeyword: req.keyword(),
		CreatedDate:   c.cal.Today(),
	})
	if err != nil {
		return nil, fmt.Errorf("save revision: %w", err)
	}

	rejected, err := c.store.TransitionPost(ctx, id, domain.StatusDraft, domain.StatusRejected)
	if err != nil {
		// Someone else moved the original first; the revision must not linger.
		if delErr := c.store.DeletePost(context.WithoutCancel(ctx), revision.ID); delErr != nil {
			c.log.WithError(delErr).WithField("post_id", revision.ID).Error("failed to discard revision")
		}
		return nil, err
	}

	c.memory.Record(ctx, domain.FeedbackEntry{
		OriginalContent: original.Content,
		Feedback:        feedback,
		RevisedContent:  res.Text,
		TopicTitle:      original.SourceTopic,
		Platform:        original.Platform,
	})

	c.emit("drafted", revision)
	c.emit("rejected", rejected)

	return &ReviseResult{
		Rejected: PostRef{ID: original.ID, SourceTopic: original.SourceTopic},
		Revision: revision,
	}, nil
}
