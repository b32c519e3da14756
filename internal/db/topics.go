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
	"encoding/json"
	"errors"
	"fmt"

	"signalroom/internal/domain"
)

const topicColumns = `id, date, topic_title, summary, keyword, sample_urls, post_count, category`

func scanTopics(rows *sql.Rows) ([]domain.Topic, error) {
	defer rows.Close()

	topics := []domain.Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, *t)
	}

	return topics, rows.Err()
}

func scanTopic(row rowScanner) (*domain.Topic, error) {
	var (
		t       domain.Topic
		urlJSON []byte
	)
	if err := row.Scan(&t.ID, &t.Date, &t.TopicTitle, &t.Summary, &t.Keyword, &urlJSON, &t.PostCount, &t.Category); err != nil {
		return nil, err
	}

	t.SampleURLs = []string{}
	if len(urlJSON) > 0 {
		if err := json.Unmarshal(urlJSON, &t.SampleURLs); err != nil {
			return nil, fmt.Errorf("decode sample urls of %q: %w", t.TopicTitle, err)
		}
	}

	return &t, nil
}

// TopicsOn returns a date's topics by post count, highest first. An empty
// category matches all.
func (db *DB) TopicsOn(ctx context.Context, date string, category domain.Category) ([]domain.Topic, error) {
	query := `SELECT ` + topicColumns + ` FROM emerging_topics WHERE date = ?`
	args := []any{date}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY post_count DESC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	return scanTopics(rows)
}

func (db *DB) TopicByTitle(ctx context.Context, date, title string) (*domain.Topic, error) {
	row := db.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM emerging_topics
		WHERE date = ? AND topic_title = ?`, date, title)
	t, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("topic %q on %s: %w", title, date, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load topic: %w", err)
	}
	return t, nil
}

func (db *DB) TopicsSince(ctx context.Context, date string) ([]domain.Topic, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+topicColumns+` FROM emerging_topics
		WHERE date >= ? ORDER BY date DESC, post_count DESC`, date)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	return scanTopics(rows)
}

// SaveTopics upserts topics by (date, title) in one transaction.
func (db *DB) SaveTopics(ctx context.Context, topics []domain.Topic) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range topics {
		urls := t.SampleURLs
		if urls == nil {
			urls = []string{}
		}
		urlJSON, err := json.Marshal(urls)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO emerging_topics(
			date, topic_title, summary, keyword, sample_urls, post_count, category
		) VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, topic_title) DO UPDATE SET
			summary = excluded.summary,
			keyword = excluded.keyword,
			sample_urls = excluded.sample_urls,
			post_count = excluded.post_count,
			category = excluded.category`,
			t.Date, t.TopicTitle, t.Summary, t.Keyword, urlJSON, t.PostCount, t.Category,
		)
		if err != nil {
			return fmt.Errorf("save topic %q: %w", t.TopicTitle, err)
		}
	}

	return tx.Commit()
}

func scanSignals(rows *sql.Rows) ([]domain.KeywordSignal, error) {
	defer rows.Close()

	signals := []domain.KeywordSignal{}
	for rows.Next() {
		var s domain.KeywordSignal
		if err := rows.Scan(&s.ID, &s.Date, &s.Keyword, &s.PostCount, &s.Sentiment, &s.Category); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		signals = append(signals, s)
	}

	return signals, rows.Err()
}

func (db *DB) SignalsOn(ctx context.Context, date string) ([]domain.KeywordSignal, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, date, keyword, post_count, sentiment, category
		FROM keyword_signals WHERE date = ? ORDER BY post_count DESC`, date)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	return scanSignals(rows)
}

func (db *DB) SignalsSince(ctx context.Context, date string) ([]domain.KeywordSignal, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, date, keyword, post_count, sentiment, category
		FROM keyword_signals WHERE date >= ? ORDER BY date DESC, post_count DESC`, date)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	return scanSignals(rows)
}

// SaveSignals upserts signals by (date, keyword, category). Counts from
// several sources on one day are summed.
func (db *DB) SaveSignals(ctx context.Context, signals []domain.KeywordSignal) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range signals {
		_, err := tx.ExecContext(ctx, `INSERT INTO keyword_signals(
			date, keyword, post_count, sentiment, category
		) VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(date, keyword, category) DO UPDATE SET
			post_count = keyword_signals.post_count + excluded.post_count,
			sentiment = excluded.sentiment`,
			s.Date, s.Keyword, s.PostCount, s.Sentiment, s.Category,
		)
		if err != nil {
			return fmt.Errorf("save signal %q: %w", s.Keyword, err)
		}
	}

	return tx.Commit()
}
