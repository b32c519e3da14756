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

package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("not in required status")
	ErrInvalidInput = errors.New("invalid input")
)

type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformLinkedIn Platform = "linkedin"
)

var Platforms = []Platform{PlatformTwitter, PlatformLinkedIn}

func (p Platform) Valid() bool {
	return p == PlatformTwitter || p == PlatformLinkedIn
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusFailed || s == StatusRejected
}

// Post is one social media post candidate. PublishedAt is set only while
// Status is published.
type Post struct {
	ID             int64      `json:"id" db:"id"`
	Platform       Platform   `json:"platform" db:"platform"`
	Content        string     `json:"content" db:"content"`
	Status         Status     `json:"status" db:"status"`
	ScheduledAt    *time.Time `json:"scheduled_at" db:"scheduled_at"`
	PublishedAt    *time.Time `json:"published_at" db:"published_at"`
	PlatformPostID *string    `json:"platform_post_id" db:"platform_post_id"`
	Diagnostic     *string    `json:"error_msg" db:"error_msg"`
	SourceTopic    string     `json:"source_topic" db:"source_topic"`
	SourceKeyword  *string    `json:"source_keyword" db:"source_keyword"`
	CreatedDate    string     `json:"created_date" db:"created_date"` // civil date
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// FeedbackEntry is one editorial correction: original draft, what the
// reviewer asked for, and the revision produced from it.
type FeedbackEntry struct {
	ID              int64     `json:"id" db:"id"`
	OriginalContent string    `json:"original_content" db:"original_content"`
	Feedback        string    `json:"feedback" db:"feedback"`
	RevisedContent  string    `json:"revised_content" db:"revised_content"`
	TopicTitle      string    `json:"topic_title" db:"topic_title"`
	Platform        Platform  `json:"platform" db:"platform"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// PostEvent announces a change to a post to live dashboard clients.
type PostEvent struct {
	Action string `json:"action"`
	Post   Post   `json:"post"`
}
