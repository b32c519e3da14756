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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"signalroom/internal/domain"
)

func TestTransitionPostUsesSingleConditionalUpdate(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer mockDB.Close()

	db := &DB{mockDB}

	mock.ExpectExec(`UPDATE posts SET status = \?, updated_at = \? WHERE id = \? AND status = \?`).
		WithArgs(domain.StatusScheduled, sqlmock.AnyArg(), int64(7), domain.StatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)SELECT .+ FROM posts WHERE id = \?`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "platform", "content", "status", "scheduled_at", "published_at", "platform_post_id",
			"error_msg", "source_topic", "source_keyword", "created_date", "created_at", "updated_at",
		}).AddRow(7, "twitter", "c", "published", nil, 1741046400, "x-1", nil, "A", nil, "2025-03-04", 1741046400, 1741046400))

	_, err = db.TransitionPost(context.Background(), 7, domain.StatusDraft, domain.StatusScheduled)
	require.ErrorIs(t, err, domain.ErrConflict)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertRunLogWritesAllColumns(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer mockDB.Close()

	db := &DB{mockDB}
	msg := "boom"

	mock.ExpectExec(`INSERT INTO run_log`).
		WithArgs("2025-03-04", "synthesizer", "error", int64(12), nil, nil, "boom", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(3, 1))

	entry, err := db.InsertRunLog(context.Background(), domain.RunLogEntry{
		Date:         "2025-03-04",
		FunctionName: "synthesizer",
		Status:       domain.RunError,
		DurationMs:   12,
		ErrorMsg:     &msg,
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), entry.ID)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
