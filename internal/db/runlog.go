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

const runLogColumns = `id, date, function_name, status, duration_ms, posts_fetched, llm_tokens, error_msg, created_at`

func (db *DB) InsertRunLog(ctx context.Context, entry domain.RunLogEntry) (*domain.RunLogEntry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	res, err := db.ExecContext(ctx, `INSERT INTO run_log(
		date, function_name, status, duration_ms, posts_fetched, llm_tokens, error_msg, created_at
	) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Date,
		entry.FunctionName,
		entry.Status,
		entry.DurationMs,
		entry.PostsFetched,
		entry.LLMTokens,
		entry.ErrorMsg,
		entry.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run log: %w", err)
	}

	entry.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert run log: %w", err)
	}

	return &entry, nil
}

func scanRunLog(rows *sql.Rows) ([]domain.RunLogEntry, error) {
	defer rows.Close()

	entries := []domain.RunLogEntry{}
	for rows.Next() {
		var (
			e            domain.RunLogEntry
			postsFetched sql.NullInt64
			llmTokens    sql.NullInt64
			errorMsg     sql.NullString
			createdAt    int64
		)
		if err := rows.Scan(&e.ID, &e.Date, &e.FunctionName, &e.Status, &e.DurationMs,
			&postsFetched, &llmTokens, &errorMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		e.PostsFetched = intOrNil(postsFetched)
		e.LLMTokens = intOrNil(llmTokens)
		e.ErrorMsg = stringOrNil(errorMsg)
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// RecentRunLog returns the newest entries first.
func (db *DB) RecentRunLog(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runLogColumns+` FROM run_log
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("load run log: %w", err)
	}
	return scanRunLog(rows)
}

// RunLogAfter returns entries written after the entry with the given id,
// oldest first.
func (db *DB) RunLogAfter(ctx context.Context, afterID int64) ([]domain.RunLogEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runLogColumns+` FROM run_log
		WHERE id > ? ORDER BY id ASC`, afterID)
	if err != nil {
		return nil, fmt.Errorf("load run log: %w", err)
	}
	return scanRunLog(rows)
}

func (db *DB) LatestRunLogID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(id) FROM run_log`).Scan(&id); err != nil {
		return 0, fmt.Errorf("load run log: %w", err)
	}
	return id.Int64, nil
}
