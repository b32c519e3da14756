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

package spreadsheet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"signalroom/internal/domain"
)

func TestGenerateFromPosts(t *testing.T) {
	at := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	id := "1234"
	buf, err := GenerateFromPosts([]domain.Post{{
		ID: 1, Platform: domain.PlatformTwitter, Status: domain.StatusPublished,
		Content: "a take", SourceTopic: "topic", CreatedDate: "2025-07-01",
		ScheduledAt: &at, PublishedAt: &at, PlatformPostID: &id,
	}})
	require.NoError(t, err)

	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet := file.Sheets[0]
	require.Equal(t, "Posts", sheet.Name)
	require.Equal(t, 2, sheet.MaxRow)

	cell, err := sheet.Cell(1, 6)
	require.NoError(t, err)
	require.Equal(t, "a take", cell.Value)

	cell, err = sheet.Cell(1, 7)
	require.NoError(t, err)
	require.Equal(t, "1234", cell.Value)
}

func TestPostRowBlanksMissingFields(t *testing.T) {
	row := PostRow(domain.Post{Platform: domain.PlatformLinkedIn, Status: domain.StatusDraft})
	require.Len(t, row, len(headers))
	require.Equal(t, "", row[3])
	require.Equal(t, "", row[8])
}
