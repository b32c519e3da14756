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

func (db *DB) GetReport(ctx context.Context, date string) (*domain.DailyReport, error) {
	var (
		r         domain.DailyReport
		postedAt  sql.NullInt64
		createdAt int64
	)

	err := db.QueryRowContext(ctx, `SELECT date, ecosystem_synthesis, enterprise_synthesis,
		sentiment_score, sentiment_direction, sentiment_label, slack_post_text, posted_at, created_at
		FROM daily_report WHERE date = ?`, date).Scan(
		&r.Date,
		&r.EcosystemSynthesis,
		&r.EnterpriseSynthesis,
		&r.SentimentScore,
		&r.SentimentDirection,
		&r.SentimentLabel,
		&r.SlackPostText,
		&postedAt,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report for %s: %w", date, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}

	r.PostedAt = timeOrNil(postedAt)
	r.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &r, nil
}

// UpsertReport writes the report for its date, replacing any earlier version
// but keeping posted_at.
func (db *DB) UpsertReport(ctx context.Context, r domain.DailyReport) error {
	_, err := db.ExecContext(ctx, `INSERT INTO daily_report(
		date, ecosystem_synthesis, enterprise_synthesis, sentiment_score,
		sentiment_direction, sentiment_label, slack_post_text, created_at
	) VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(date) DO UPDATE SET
		ecosystem_synthesis = excluded.ecosystem_synthesis,
		enterprise_synthesis = excluded.enterprise_synthesis,
		sentiment_score = excluded.sentiment_score,
		sentiment_direction = excluded.sentiment_direction,
		sentiment_label = excluded.sentiment_label,
		slack_post_text = excluded.slack_post_text`,
		r.Date,
		r.EcosystemSynthesis,
		r.EnterpriseSynthesis,
		r.SentimentScore,
		r.SentimentDirection,
		r.SentimentLabel,
		r.SlackPostText,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

func (db *DB) MarkReportPosted(ctx context.Context, date string, at time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE daily_report SET posted_at = ? WHERE date = ?`, at.Unix(), date)
	if err != nil {
		return fmt.Errorf("mark report posted: %w", err)
	}
	return nil
}
