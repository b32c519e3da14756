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
	"fmt"
	"time"
)

// AcquireLock takes the named lock for a civil date unless another holder
// took it less than lease ago. It is a single upsert, so two callers cannot
// both succeed.
func (db *DB) AcquireLock(ctx context.Context, name, date, holder string, lease time.Duration) (bool, error) {
	now := time.Now()

	res, err := db.ExecContext(ctx, `INSERT INTO run_locks(name, date, holder, acquired_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(name, date) DO UPDATE SET
			holder = excluded.holder,
			acquired_at = excluded.acquired_at
		WHERE run_locks.acquired_at < ?`,
		name, date, holder, now.Unix(), now.Add(-lease).Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return n == 1, nil
}

func (db *DB) ReleaseLock(ctx context.Context, name, date, holder string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM run_locks WHERE name = ? AND date = ? AND holder = ?`, name, date, holder)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
