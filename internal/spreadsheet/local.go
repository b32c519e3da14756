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
	"bytes"

	"github.com/tealeg/xlsx/v3"

	"signalroom/internal/domain"
)

var headers = []string{
	"Created", "Platform", "Status", "Scheduled at", "Published at",
	"Topic", "Content", "Platform post id", "Error",
}

// GenerateFromPosts builds an in-memory workbook of posts, one per row.
func GenerateFromPosts(posts []domain.Post) (*bytes.Buffer, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Posts")
	if err != nil {
		return nil, err
	}

	headerRow := sheet.AddRow()
	for _, h := range headers {
		cell := headerRow.AddCell()
		cell.Value = h
	}

	for _, post := range posts {
		row := sheet.AddRow()
		for i, value := range PostRow(post) {
			cell := row.AddCell()
			switch {
			case i == 3 && post.ScheduledAt != nil:
				cell.SetDateTime(*post.ScheduledAt)
			case i == 4 && post.PublishedAt != nil:
				cell.SetDateTime(*post.PublishedAt)
			default:
				cell.Value = value.(string)
			}
		}
	}

	buf := new(bytes.Buffer)
	err = file.Write(buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
