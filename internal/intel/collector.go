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

package intel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"signalroom/internal/domain"
)

// RawPost is one community post as dropped by a scraper.
type RawPost struct {
	Title     string          `json:"title"`
	URL       string          `json:"url"`
	Body      string          `json:"body,omitempty"`
	Score     int             `json:"score,omitempty"`
	Category  domain.Category `json:"category,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type CollectOptions struct {
	// Since drops posts created before it. Zero keeps everything.
	Since time.Time
	// WeekendRoundup is set on Mondays.
	WeekendRoundup bool
}

type Collector interface {
	Name() string
	Collect(ctx context.Context, opts CollectOptions) ([]RawPost, error)
}

// FileCollector reads <dir>/<source>.json. A missing file is an empty
// collection, not an error.
type FileCollector struct {
	Dir    string
	Source string
}

func NewFileCollector(dir, source string) *FileCollector {
	return &FileCollector{Dir: dir, Source: source}
}

func (f *FileCollector) Name() string {
	return f.Source
}

func (f *FileCollector) Collect(ctx context.Context, opts CollectOptions) ([]RawPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(f.Dir, f.Source+".json")
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s drop: %w", f.Source, err)
	}

	var posts []RawPost
	if err := json.Unmarshal(contents, &posts); err != nil {
		return nil, fmt.Errorf("decode %s drop: %w", f.Source, err)
	}

	kept := make([]RawPost, 0, len(posts))
	for _, p := range posts {
		if p.Title == "" && p.Body == "" {
			continue
		}
		if !opts.Since.IsZero() && !p.CreatedAt.IsZero() && p.CreatedAt.Before(opts.Since) {
			continue
		}
		if !p.Category.Valid() {
			p.Category = domain.CategoryEcosystem
		}
		kept = append(kept, p)
	}

	return kept, nil
}
