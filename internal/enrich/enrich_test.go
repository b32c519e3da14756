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

package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var paragraph = strings.Repeat("Agents that call tools need an audit trail that survives retries. ", 12)

func TestExtractReadsArticleText(t *testing.T) {
	page := `<html><head><title>Audit trails</title></head><body>
		<nav>menu menu menu</nav>
		<article><h1>Audit trails</h1><p>` + paragraph + `</p></article>
		<footer>footer</footer></body></html>`

	u, _ := url.Parse("https://example.com/post")
	content, err := Extract([]byte(page), u)
	require.NoError(t, err)
	require.Contains(t, content.Text, "audit trail that survives retries")
	require.NotContains(t, content.Text, "menu menu")
}

func TestExtractTooLittleText(t *testing.T) {
	u, _ := url.Parse("https://example.com/")
	_, err := Extract([]byte(`<html><body><p>hi</p></body></html>`), u)
	require.Error(t, err)
}

func TestFetchRejectsProtectedPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>Checking your browser before accessing` + strings.Repeat(" ", 200) + `</body></html>`))
	}))
	defer srv.Close()

	_, err := NewFetcher(0).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrProtected)
}

func TestFetchBadURL(t *testing.T) {
	_, err := NewFetcher(0).Fetch(context.Background(), "not a url")
	require.Error(t, err)
}
