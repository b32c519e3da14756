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
	"math"
	"strings"
)

func ScoreOf(sentiment string) float64 {
	switch sentiment {
	case "positive":
		return 1
	case "negative":
		return -1
	default:
		return 0
	}
}

type Direction struct {
	Arrow string  `json:"direction"`
	Label string  `json:"label"`
	Delta float64 `json:"delta"`
}

// DirectionOf compares today's score with yesterday's. Without a yesterday the
// direction is flat.
func DirectionOf(today float64, yesterday *float64) Direction {
	if yesterday == nil {
		return Direction{Arrow: "->", Label: "flat"}
	}

	delta := round(today-*yesterday, 2)
	switch {
	case delta > 0.05:
		return Direction{Arrow: "^", Label: "improving", Delta: delta}
	case delta < -0.05:
		return Direction{Arrow: "v", Label: "softening", Delta: delta}
	default:
		return Direction{Arrow: "->", Label: "flat", Delta: delta}
	}
}

func LabelOf(score float64) string {
	switch {
	case score > 0.3:
		return "Positive"
	case score > -0.1:
		return "Neutral"
	default:
		return "Cautious"
	}
}

// URLLabel is the anchor text a link gets in the digest.
func URLLabel(url string) string {
	switch {
	case strings.Contains(url, "reddit.com"):
		return "Reddit thread"
	case strings.Contains(url, "news.ycombinator.com"), strings.Contains(url, "ycombinator.com/item"):
		return "HN thread"
	case strings.Contains(url, "twitter.com"), strings.Contains(url, "x.com"):
		return "Twitter thread"
	default:
		return "Read article"
	}
}

// MeanScore averages signal sentiments to three decimals.
func MeanScore(sentiments []string) float64 {
	if len(sentiments) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sentiments {
		sum += ScoreOf(s)
	}
	return round(sum/float64(len(sentiments)), 3)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
