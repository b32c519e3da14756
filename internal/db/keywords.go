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
	"strings"

	"signalroom/internal/domain"
)

type KeywordPatch struct {
	Keyword  *string
	Active   *bool
	Category *domain.Category
}

func (db *DB) queryKeywords(ctx context.Context, query string, args ...any) ([]domain.Keyword, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}
	defer rows.Close()

	keywords := []domain.Keyword{}
	for rows.Next() {
		var k domain.Keyword
		if err := rows.Scan(&k.ID, &k.Keyword, &k.Active, &k.Category); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		keywords = append(keywords, k)
	}

	return keywords, rows.Err()
}

func (db *DB) Keywords(ctx context.Context) ([]domain.Keyword, error) {
	return db.queryKeywords(ctx, `SELECT id, keyword, active, category FROM keywords ORDER BY id ASC`)
}

func (db *DB) ActiveKeywords(ctx context.Context, category domain.Category) ([]string, error) {
	keywords, err := db.queryKeywords(ctx, `SELECT id, keyword, active, category FROM keywords
		WHERE active = 1 AND category = ? ORDER BY id ASC`, category)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(keywords))
	for _, k := range keywords {
		names = append(names, k.Keyword)
	}
	return names, nil
}

func (db *DB) GetKeyword(ctx context.Context, id int64) (*domain.Keyword, error) {
	var k domain.Keyword
	err := db.QueryRowContext(ctx, `SELECT id, keyword, active, category FROM keywords WHERE id = ?`, id).
		Scan(&k.ID, &k.Keyword, &k.Active, &k.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("keyword %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load keyword: %w", err)
	}
	return &k, nil
}

func (db *DB) AddKeyword(ctx context.Context, keyword string, category domain.Category) (*domain.Keyword, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	res, err := db.ExecContext(ctx, `INSERT INTO keywords(keyword, active, category) VALUES(?, 1, ?)`, keyword, category)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("keyword %q already exists: %w", keyword, domain.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("add keyword: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("add keyword: %w", err)
	}
	return db.GetKeyword(ctx, id)
}

func (db *DB) UpdateKeyword(ctx context.Context, id int64, patch KeywordPatch) (*domain.Keyword, error) {
	var (
		sets []string
		args []any
	)
	if patch.Keyword != nil {
		sets = append(sets, "keyword = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(*patch.Keyword)))
	}
	if patch.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, *patch.Active)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("no valid fields to update (allowed: keyword, active, category): %w", domain.ErrInvalidInput)
	}

	args = append(args, id)
	res, err := db.ExecContext(ctx, `UPDATE keywords SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("keyword already exists: %w", domain.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("update keyword: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("keyword %d: %w", id, domain.ErrNotFound)
	}

	return db.GetKeyword(ctx, id)
}

// DeactivateKeyword is a soft delete.
func (db *DB) DeactivateKeyword(ctx context.Context, id int64) (*domain.Keyword, error) {
	inactive := false
	return db.UpdateKeyword(ctx, id, KeywordPatch{Active: &inactive})
}
