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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"signalroom/internal/domain"
)

func TestAllocateSkipsUsedAndNeverRepeats(t *testing.T) {
	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	slots := []time.Time{base, base.Add(2 * time.Hour), base.Add(4 * time.Hour)}
	used := map[int64]bool{slots[1].Unix(): true}
	picks := []Pick{{Topic: domain.Topic{TopicTitle: "a"}}, {Topic: domain.Topic{TopicTitle: "b"}}, {Topic: domain.Topic{TopicTitle: "c"}}}

	got := Allocate(slots, used, picks)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Pick.Topic.TopicTitle)
	require.Equal(t, slots[0], got[0].At)
	require.Equal(t, "b", got[1].Pick.Topic.TopicTitle)
	require.Equal(t, slots[2], got[1].At)
	require.Len(t, used, 1)
}

func TestAllocateNoFreeSlots(t *testing.T) {
	at := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	require.Empty(t, Allocate([]time.Time{at}, map[int64]bool{at.Unix(): true}, []Pick{{}}))
}

func TestParseCurationDropsUnknownAndCapsAtFive(t *testing.T) {
	var topics []domain.Topic
	for _, title := range []string{"a", "b", "c", "d", "e", "f"} {
		topics = append(topics, domain.Topic{TopicTitle: title})
	}

	picks, err := ParseCuration("```json\n"+`[{"topic_title":"ghost","angle":"?"},{"topic_title":"a","angle":"1"},{"topic_title":"a","angle":"dup"},
		{"topic_title":"b","angle":"2"},{"topic_title":"c","angle":"3"},{"topic_title":"d","angle":"4"},
		{"topic_title":"e","angle":"5"},{"topic_title":"f","angle":"6"}]`+"\n```", topics)
	require.NoError(t, err)
	require.Len(t, picks, 5)
	require.Equal(t, "a", picks[0].Topic.TopicTitle)
	require.Equal(t, "1", picks[0].Angle)

	_, err = ParseCuration("no idea", topics)
	require.Error(t, err)
}

func TestFallbackRanksByVolume(t *testing.T) {
	picks := Fallback([]domain.Topic{{TopicTitle: "low", PostCount: 1}, {TopicTitle: "high", PostCount: 9}})
	require.Len(t, picks, 2)
	require.Equal(t, "high", picks[0].Topic.TopicTitle)
	require.Empty(t, picks[0].Angle)
}
