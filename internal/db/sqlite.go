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
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		platform TEXT NOT NULL,
		content TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft'
			CHECK (status IN ('draft', 'scheduled', 'published', 'rejected', 'failed')),
		scheduled_at INTEGER,
		published_at INTEGER,
		platform_post_id TEXT,
		error_msg TEXT,
		claim_token TEXT,
		source_topic TEXT NOT NULL DEFAULT '',
		source_keyword TEXT,
		created_date TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_status_scheduled ON posts(status, scheduled_at);
	CREATE INDEX IF NOT EXISTS idx_posts_platform_day ON posts(platform, created_date);`,

	`CREATE TABLE IF NOT EXISTS composer_feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		original_content TEXT NOT NULL,
		feedback TEXT NOT NULL,
		revised_content TEXT,
		topic_title TEXT,
		platform TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_platform ON composer_feedback(platform, created_at);`,

	`CREATE TABLE IF NOT EXISTS run_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		function_name TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('success', 'error')),
		duration_ms INTEGER NOT NULL,
		posts_fetched INTEGER,
		llm_tokens INTEGER,
		error_msg TEXT,
		created_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS emerging_topics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		topic_title TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		keyword TEXT NOT NULL DEFAULT '',
		sample_urls TEXT NOT NULL DEFAULT '[]',
		post_count INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT 'ecosystem',
		UNIQUE (date, topic_title)
	);`,

	`CREATE TABLE IF NOT EXISTS keyword_signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		keyword TEXT NOT NULL,
		post_count INTEGER NOT NULL DEFAULT 0,
		sentiment TEXT NOT NULL DEFAULT 'neutral',
		category TEXT NOT NULL DEFAULT 'ecosystem',
		UNIQUE (date, keyword, category)
	);`,

	`CREATE TABLE IF NOT EXISTS daily_report (
		date TEXT PRIMARY KEY,
		ecosystem_synthesis TEXT NOT NULL DEFAULT '',
		enterprise_synthesis TEXT NOT NULL DEFAULT '',
		sentiment_score REAL NOT NULL DEFAULT 0,
		sentiment_direction TEXT NOT NULL DEFAULT '',
		sentiment_label TEXT NOT NULL DEFAULT '',
		slack_post_text TEXT NOT NULL DEFAULT '',
		posted_at INTEGER,
		created_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS keywords (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		keyword TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT 1,
		category TEXT NOT NULL DEFAULT 'ecosystem'
	);`,

	`CREATE TABLE IF NOT EXISTS run_locks (
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		holder TEXT NOT NULL,
		acquired_at INTEGER NOT NULL,
		PRIMARY KEY (name, date)
	);`,
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &DB{db}, nil
}

// Healthy runs a trivial query against the config table.
func (db *DB) Healthy(ctx context.Context) error {
	var key string
	err := db.QueryRowContext(ctx, `SELECT key FROM config LIMIT 1`).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func stringOrNil(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intOrNil(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
