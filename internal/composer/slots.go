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

package composer

import (
	"fmt"
	"time"

	"signalroom/internal/calendar"
)

// Assignment binds one pick to a publish instant.
type Assignment struct {
	Pick Pick
	At   time.Time
}

// DailySlots resolves wall-clock slot times to instants on date.
func DailySlots(cal *calendar.Calendar, date string, clocks []string) ([]time.Time, error) {
	slots := make([]time.Time, 0, len(clocks))
	for _, clock := range clocks {
		hour, minute, err := calendar.ParseClock(clock)
		if err != nil {
			return nil, fmt.Errorf("slot %q: %w", clock, err)
		}
		at, err := cal.At(date, hour, minute)
		if err != nil {
			return nil, err
		}
		slots = append(slots, at)
	}
	return slots, nil
}

// Allocate walks slots in order, skipping used instants, and gives each pick
// the next free one. Picks left over once slots run out are dropped.
func Allocate(slots []time.Time, used map[int64]bool, picks []Pick) []Assignment {
	assignments := make([]Assignment, 0, min(len(slots), len(picks)))
	taken := make(map[int64]bool, len(used))
	for k, v := range used {
		taken[k] = v
	}

	next := 0
	for _, pick := range picks {
		for next < len(slots) && taken[slots[next].Unix()] {
			next++
		}
		if next >= len(slots) {
			break
		}
		taken[slots[next].Unix()] = true
		assignments = append(assignments, Assignment{Pick: pick, At: slots[next]})
		next++
	}
	return assignments
}
