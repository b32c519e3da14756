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

type Category string

const (
	CategoryEcosystem  Category = "ecosystem"
	CategoryEnterprise Category = "enterprise"
)

func (c Category) Valid() bool {
	return c == CategoryEcosystem || c == CategoryEnterprise
}

// Topic is a detected subject of discussion for one civil date. TopicTitle is
// unique within a date.
type Topic struct {
	ID         int64    `json:"id" db:"id"`
	Date       string   `json:"date" db:"date"`
	TopicTitle string   `json:"topic_title" db:"topic_title"`
	Summary    string   `json:"summary" db:"summary"`
	Keyword    string   `json:"keyword" db:"keyword"`
	SampleURLs []string `json:"sample_urls" db:"sample_urls"`
	PostCount  int      `json:"post_count" db:"post_count"`
	Category   Category `json:"category" db:"category"`
}

type KeywordSignal struct {
	ID        int64    `json:"id" db:"id"`
	Date      string   `json:"date" db:"date"`
	Keyword   string   `json:"keyword" db:"keyword"`
	PostCount int      `json:"post_count" db:"post_count"`
	Sentiment string   `json:"sentiment" db:"sentiment"`
	Category  Category `json:"category" db:"category"`
}

type Keyword struct {
	ID       int64    `json:"id" db:"id"`
	Keyword  string   `json:"keyword" db:"keyword"`
	Active   bool     `json:"active" db:"active"`
	Category Category `json:"category" db:"category"`
}

type DailyReport struct {
	Date                string     `json:"date" db:"date"`
	EcosystemSynthesis  string     `json:"ecosystem_synthesis" db:"ecosystem_synthesis"`
	EnterpriseSynthesis string     `json:"enterprise_synthesis" db:"enterprise_synthesis"`
	SentimentScore      float64    `json:"sentiment_score" db:"sentiment_score"`
	SentimentDirection  string     `json:"sentiment_direction" db:"sentiment_direction"`
	SentimentLabel      string     `json:"sentiment_label" db:"sentiment_label"`
	SlackPostText       string     `json:"slack_post_text" db:"slack_post_text"`
	PostedAt            *time.Time `json:"posted_at" db:"posted_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}
