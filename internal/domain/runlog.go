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

import "time"

const (
	RunSuccess = "success"
	RunError   = "error"
)

// RunLogEntry records one pipeline invocation. It is written exactly once,
// whatever the outcome.
type RunLogEntry struct {
	ID           int64     `json:"id" db:"id"`
	Date         string    `json:"date" db:"date"`
	FunctionName string    `json:"function_name" db:"function_name"`
	Status       string    `json:"status" db:"status"`
	DurationMs   int64     `json:"duration_ms" db:"duration_ms"`
	PostsFetched *int      `json:"posts_fetched" db:"posts_fetched"`
	LLMTokens    *int      `json:"llm_tokens" db:"llm_tokens"`
	ErrorMsg     *string   `json:"error_msg" db:"error_msg"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
