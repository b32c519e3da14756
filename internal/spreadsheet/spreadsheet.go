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
	"context"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"signalroom/internal/domain"
)

type Config struct {
	CredentialsJSON []byte `json:"credentials,omitempty"`
	SpreadsheetID   string `json:"spreadsheet_id"`
	SheetName       string `json:"sheet_name"`
}

func NewConfig(credentialsJSON []byte,
	spreadsheetID string,
	sheetName string,
) Config {
	return Config{
		CredentialsJSON: credentialsJSON,
		SpreadsheetID:   spreadsheetID,
		SheetName:       sheetName,
	}
}

// GoogleSheetsClient appends every published post to a sheet.
type GoogleSheetsClient struct {
	service       *sheets.Service
	SpreadsheetID string
	SheetName     string
	retry         failsafe.Executor[any]
}

func NewGoogleSheetsClient(ctx context.Context, conf Config) (*GoogleSheetsClient, error) {
	config, err := google.JWTConfigFromJSON(
		conf.CredentialsJSON,
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("could not build JWT config: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("could not create sheets service: %w", err)
	}

	return &GoogleSheetsClient{
		service:       srv,
		SpreadsheetID: conf.SpreadsheetID,
		SheetName:     conf.SheetName,
		retry: failsafe.With[any](retrypolicy.NewBuilder[any]().
			WithMaxRetries(2).
			WithBackoff(time.Second, 4*time.Second).
			Build()),
	}, nil
}

// PostRow is the column layout shared by the sheet mirror and the xlsx export.
func PostRow(post domain.Post) []interface{} {
	return []interface{}{
		post.CreatedDate,
		string(post.Platform),
		string(post.Status),
		formatTime(post.ScheduledAt),
		formatTime(post.PublishedAt),
		post.SourceTopic,
		post.Content,
		deref(post.PlatformPostID),
		deref(post.Diagnostic),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (gsc *GoogleSheetsClient) Mirror(ctx context.Context, post domain.Post) error {
	return gsc.BatchAdd(ctx, []domain.Post{post})
}

// BatchAdd appends posts in one request, retrying transient failures.
func (gsc *GoogleSheetsClient) BatchAdd(ctx context.Context, posts []domain.Post) error {
	var vr sheets.ValueRange
	for _, post := range posts {
		vr.Values = append(vr.Values, PostRow(post))
	}

	return gsc.retry.WithContext(ctx).Run(func() error {
		_, err := gsc.service.Spreadsheets.Values.Append(
			gsc.SpreadsheetID,
			gsc.SheetName+"!A:I",
			&vr,
		).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("could not append rows: %w", err)
		}
		return nil
	})
}
