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

// Package calendar derives civil dates in the one reference time zone every
// date-partitioned record is keyed by.
package calendar

import (
	"fmt"
	"time"
)

const (
	DefaultZone = "Australia/Sydney"
	DateLayout  = "2006-01-02"
)

type Calendar struct {
	loc *time.Location
	now func() time.Time
}

func New(zone string) (*Calendar, error) {
	if zone == "" {
		zone = DefaultZone
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}

	return &Calendar{loc: loc, now: time.Now}, nil
}

// WithClock returns a copy of the calendar reading the current instant from now.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	return &Calendar{loc: c.loc, now: now}
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

func (c *Calendar) Now() time.Time {
	return c.now()
}

// Local is the current instant expressed in the reference zone.
func (c *Calendar) Local() time.Time {
	return c.now().In(c.loc)
}

func (c *Calendar) Today() string {
	return c.DateOf(c.now())
}

// Offset returns the civil date n days away from today. The shift is done on
// calendar fields at local noon, so a DST transition never skips or repeats
// a day.
func (c *Calendar) Offset(n int) string {
	local := c.Local()
	shifted := time.Date(local.Year(), local.Month(), local.Day()+n, 12, 0, 0, 0, c.loc)
	return shifted.Format(DateLayout)
}

// Weekday is 0 (Sunday) through 6 (Saturday) in the reference zone.
func (c *Calendar) Weekday() int {
	return int(c.Local().Weekday())
}

func (c *Calendar) DateOf(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}

// At resolves a wall-clock time on a civil date to an absolute instant.
func (c *Calendar) At(date string, hour, minute int) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse civil date %q: %w", date, err)
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, c.loc), nil
}

// Bounds returns the half-open instant range [start, end) covering a civil date.
func (c *Calendar) Bounds(date string) (time.Time, time.Time, error) {
	start, err := c.At(date, 0, 0)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, c.loc)

	return start, end, nil
}

// ParseClock parses "HH:MM".
func ParseClock(clock string) (int, int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, 0, fmt.Errorf("parse clock %q: %w", clock, err)
	}

	return t.Hour(), t.Minute(), nil
}
