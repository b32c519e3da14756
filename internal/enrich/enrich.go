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

// Package enrich fetches linked pages and pulls their readable text, so
// collected posts that carry only a link still give extraction something to
// read.
package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"
)

const minContent = 100

var ErrProtected = errors.New("page is behind bot protection")

type Content struct {
	Title string
	Text  string
}

type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: 2 << 20,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (Content, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return Content{}, fmt.Errorf("bad url %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Content{}, err
	}
	setBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return Content{}, fmt.Errorf("load page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Content{}, fmt.Errorf("load page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return Content{}, fmt.Errorf("read page: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") && !utf8.Valid(body) {
		return Content{}, fmt.Errorf("binary content at %s", pageURL)
	}
	if isProtectedPage(body) {
		return Content{}, ErrProtected
	}

	return Extract(body, parsed)
}

// Extract tries trafilatura first and falls back to plain DOM heuristics.
func Extract(body []byte, pageURL *url.URL) (Content, error) {
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL:     pageURL,
		EnableFallback:  true,
		ExcludeComments: true,
	})
	if err == nil && result != nil && len(result.ContentText) > minContent {
		return Content{
			Title: result.Metadata.Title,
			Text:  squash(result.ContentText),
		}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Content{}, fmt.Errorf("parse html: %w", err)
	}
	if content, ok := structured(doc); ok {
		return content, nil
	}
	return fallback(doc)
}

func structured(doc *goquery.Document) (Content, bool) {
	selection := doc.Find("article, main, .article, .post, .content")
	if selection.Length() == 0 {
		return Content{}, false
	}

	var title string
	for _, selector := range []string{"h1", "h2", ".title", ".article-title"} {
		if title == "" {
			title = strings.TrimSpace(selection.Find(selector).First().Text())
		}
	}

	text := squash(selection.Text())
	if len(text) < minContent {
		return Content{}, false
	}
	return Content{Title: title, Text: text}, true
}

func fallback(doc *goquery.Document) (Content, error) {
	doc.Find("script, style, noscript, iframe, nav, footer").Remove()

	longest := ""
	doc.Find("p, div, article").Each(func(i int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); len(text) > len(longest) {
			longest = text
		}
	})
	if len(longest) < 500 {
		longest = doc.Find("body").Text()
	}

	text := squash(longest)
	if len(text) < minContent {
		return Content{}, errors.New("not enough text on page")
	}
	return Content{Title: strings.TrimSpace(doc.Find("title").First().Text()), Text: text}, nil
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isProtectedPage(body []byte) bool {
	s := string(body)
	return strings.Contains(s, "Checking your browser") ||
		strings.Contains(s, "DDoS protection") ||
		(strings.Contains(s, "Cloudflare") && strings.Contains(s, "challenge")) ||
		len(s) < 100 && strings.Contains(s, "<html")
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Referer", "https://www.google.com/")
}
