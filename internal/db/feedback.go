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
	"fmt"
	"time"

	"signalroom/internal/domain"
)

func (db *DB) InsertFeedback(ctx context.Context, entry domain.FeedbackEntry) error {
	_, err := db.ExecContext(ctx, `INSERT INTO composer_feedback(
		original_content, feedback, revised_content, topic_title, platform, created_at
	) VALUES(?, ?, ?, ?, ?, ?)`,
		entry.OriginalContent,
		entry.Feedback,
		entry.RevisedContent,
		entry.TopicTitle,
		entry.Platform,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// RecentFeedback returns up to limit entries for a platform, most recent first.
func (db *DB) RecentFeedback(ctx context.Context, platform domain.Platform, limit int) ([]domain.FeedbackEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, original_content, feedback, revised_content,
		topic_title, platform, created_at
		FROM composer_feedback
		WHERE platform = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, platform, limit)
	if err != nil {
		return nil, fmt.Errorf("load feedback: %w", err)
	}
	defer rows.Close()

	var entries []domain.FeedbackEntry
	for rows.Next() {
		var (
			e         domain.FeedbackEntry
			revised   sql.NullString
			topic     sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.OriginalContent, &e.Feedback, &revised, &topic, &e.Platform, &createdAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		e.RevisedContent = revised.String
		e.TopicTitle = topic.String
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
