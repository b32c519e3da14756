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

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"signalroom/internal/domain"
)

const postColumns = `id, platform, content, status, scheduled_at, published_at, platform_post_id,
	error_msg, source_topic, source_keyword, created_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var (
		p              domain.Post
		scheduledAt    sql.NullInt64
		publishedAt    sql.NullInt64
		platformPostID sql.NullString
		errorMsg       sql.NullString
		sourceKeyword  sql.NullString
		createdAt      int64
		updatedAt      int64
	)

	if err := row.Scan(
		&p.ID,
		&p.Platform,
		&p.Content,
		&p.Status,
		&scheduledAt,
		&publishedAt,
		&platformPostID,
		&errorMsg,
		&p.SourceTopic,
		&sourceKeyword,
		&p.CreatedDate,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	p.ScheduledAt = timeOrNil(scheduledAt)
	p.PublishedAt = timeOrNil(publishedAt)
	p.PlatformPostID = stringOrNil(platformPostID)
	p.Diagnostic = stringOrNil(errorMsg)
	p.SourceKeyword = stringOrNil(sourceKeyword)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &p, nil
}

func (db *DB) queryPosts(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}

	return posts, rows.Err()
}

// InsertPost stores a new post. Status defaults to draft and timestamps to now.
func (db *DB) InsertPost(ctx context.Context, p domain.Post) (*domain.Post, error) {
	if p.Status == "" {
		p.Status = domain.StatusDraft
	}
	if p.CreatedDate == "" {
		return nil, fmt.Errorf("insert post: %w: missing creation date", domain.ErrInvalidInput)
	}
	now := time.Now()

	res, err := db.ExecContext(ctx, `INSERT INTO posts(
		platform, content, status, scheduled_at, source_topic, source_keyword,
		created_date, created_at, updated_at
	) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Platform,
		p.Content,
		p.Status,
		unixOrNil(p.ScheduledAt),
		p.SourceTopic,
		p.SourceKeyword,
		p.CreatedDate,
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	return db.GetPost(ctx, id)
}

func (db *DB) GetPost(ctx context.Context, id int64) (*domain.Post, error) {
	row := db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return p, nil
}

// guarded finishes a conditional update. When nothing matched, the post is
// looked up only to tell a missing post from one in the wrong status.
func (db *DB) guarded(ctx context.Context, id int64, res sql.Result, err error, want string) (*domain.Post, error) {
	if err != nil {
		return nil, fmt.Errorf("update post %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update post %d: %w", id, err)
	}

	if n == 0 {
		current, err := db.GetPost(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("post %d is %s, want %s: %w", id, current.Status, want, domain.ErrConflict)
	}

	return db.GetPost(ctx, id)
}

// TransitionPost moves a post from one status to another in a single
// conditional update.
func (db *DB) TransitionPost(ctx context.Context, id int64, from, to domain.Status) (*domain.Post, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE posts SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now().Unix(), id, from,
	)
	return db.guarded(ctx, id, res, err, string(from))
}

func (db *DB) UpdateDraftContent(ctx context.Context, id int64, content string) (*domain.Post, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE posts SET content = ?, updated_at = ? WHERE id = ? AND status = 'draft'`,
		content, time.Now().Unix(), id,
	)
	return db.guarded(ctx, id, res, err, string(domain.StatusDraft))
}

// ClaimForPublish marks a scheduled post as being published by the holder of
// token. Only one claim can succeed.
func (db *DB) ClaimForPublish(ctx context.Context, id int64, token string) (*domain.Post, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE posts SET claim_token = ?, updated_at = ?
		WHERE id = ? AND status = 'scheduled' AND claim_token IS NULL`,
		token, time.Now().Unix(), id,
	)
	return db.guarded(ctx, id, res, err, "unclaimed scheduled")
}

func (db *DB) CompletePublish(ctx context.Context, id int64, token, platformPostID string, at time.Time) (*domain.Post, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE posts SET status = 'published', published_at = ?, platform_post_id = ?,
			error_msg = NULL, claim_token = NULL, updated_at = ?
		WHERE id = ? AND status = 'scheduled' AND claim_token = ?`,
		at.Unix(), platformPostID, time.Now().Unix(), id, token,
	)
	return db.guarded(ctx, id, res, err, "claimed scheduled")
}

// FailPost records a failed publish with its diagnostic. With a token only the
// claim holder may fail the post; without one any unclaimed scheduled or
// published post can be failed.
func (db *DB) FailPost(ctx context.Context, id int64, token, diagnostic string) (*domain.Post, error) {
	var (
		res sql.Result
		err error
	)
	now := time.Now().Unix()

	if token != "" {
		res, err = db.ExecContext(ctx,
			`UPDATE posts SET status = 'failed', published_at = NULL, error_msg = ?,
				claim_token = NULL, updated_at = ?
			WHERE id = ? AND status = 'scheduled' AND claim_token = ?`,
			diagnostic, now, id, token,
		)
	} else {
		res, err = db.ExecContext(ctx,
			`UPDATE posts SET status = 'failed', published_at = NULL, error_msg = ?,
				claim_token = NULL, updated_at = ?
			WHERE id = ? AND status IN ('scheduled', 'published') AND claim_token IS NULL`,
			diagnostic, now, id,
		)
	}

	return db.guarded(ctx, id, res, err, "unclaimed scheduled or published")
}

func (db *DB) DeletePost(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("post %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// PostsByStatus lists posts in any of the given statuses by scheduled time,
// unscheduled posts last.
func (db *DB) PostsByStatus(ctx context.Context, statuses ...domain.Status) ([]domain.Post, error) {
	if len(statuses) == 0 {
		return []domain.Post{}, nil
	}

	args := make([]any, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, s)
	}

	return db.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE status IN (`+placeholders(len(statuses))+`)
		ORDER BY scheduled_at IS NULL, scheduled_at ASC, id ASC`, args...)
}

// PostsCreatedOn returns every post created on a civil date for a platform,
// whatever its status.
func (db *DB) PostsCreatedOn(ctx context.Context, platform domain.Platform, date string) ([]domain.Post, error) {
	return db.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE platform = ? AND created_date = ?
		ORDER BY id ASC`, platform, date)
}

// TerminalPostsOn returns published, failed and rejected posts created on a
// civil date, most recently updated first.
func (db *DB) TerminalPostsOn(ctx context.Context, date string, limit int) ([]domain.Post, error) {
	return db.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE status IN ('published', 'failed', 'rejected') AND created_date = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT ?`, date, limit)
}

// DuePosts returns unclaimed scheduled posts whose time has come, oldest first.
func (db *DB) DuePosts(ctx context.Context, now time.Time) ([]domain.Post, error) {
	return db.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE status = 'scheduled' AND claim_token IS NULL
			AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		ORDER BY scheduled_at ASC, id ASC`, now.Unix())
}

func (db *DB) CountPublished(ctx context.Context, platform domain.Platform, from, to time.Time) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts
		WHERE platform = ? AND status = 'published'
			AND published_at >= ? AND published_at < ?`,
		platform, from.Unix(), to.Unix(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count published posts: %w", err)
	}
	return count, nil
}

// PostsCreatedSince lists posts created on or after a civil date, newest first.
func (db *DB) PostsCreatedSince(ctx context.Context, date string) ([]domain.Post, error) {
	return db.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE created_date >= ?
		ORDER BY created_at DESC, id DESC`, date)
}
