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

package notify

import "regexp"

var (
	slackLink = regexp.MustCompile(`<(https?://[^|>]+)\|([^>]+)>`)
	slackBold = regexp.MustCompile(`\*([^*\n]+)\*`)
)

// SlackLinks rewrites <url|label> links as [label](url). Bold markers are
// left alone, which is what Telegram's Markdown expects.
func SlackLinks(text string) string {
	return slackLink.ReplaceAllString(text, "[$2]($1)")
}

// SlackToMarkdown turns Slack mrkdwn into CommonMark.
func SlackToMarkdown(text string) string {
	return slackBold.ReplaceAllString(SlackLinks(text), "**$1**")
}
