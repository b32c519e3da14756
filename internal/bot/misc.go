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

package bot

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"signalroom/internal/domain"
)

// Levenshtein
func minDistance(a, b string) int {
	m, n := len(a), len(b)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
		dp[i][0] = i
	}
	for j := range dp[0] {
		dp[0][j] = j
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1]
			} else {
				dp[i][j] = 1 + min(dp[i-1][j], dp[i][j-1], dp[i-1][j-1])
			}
		}
	}
	return dp[m][n]
}

func (bot *Bot) findSimilarCommands(input string) []string {
	type cmdDistance struct {
		name     string
		distance int
	}

	distances := make([]cmdDistance, 0, len(bot.commands))
	for _, cmd := range bot.commands {
		distances = append(distances, cmdDistance{cmd.Name, minDistance(input, cmd.Name)})
	}

	sort.SliceStable(distances, func(i, j int) bool {
		return distances[i].distance < distances[j].distance
	})

	var suggestions []string
	for i := 0; i < 3 && i < len(distances); i++ {
		suggestions = append(suggestions, distances[i].name)
	}

	return suggestions
}

func (bot *Bot) suggestions(input string) string {
	message := "Unknown command. Did you mean one of these?\n"
	for _, name := range bot.findSimilarCommands(input) {
		if command := bot.CommandByName(name); command != nil {
			message += fmt.Sprintf("`%s` - %s\n", command.Name, command.Description)
		}
	}
	return message + "\nSee `help [command]` for more."
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("give a post ID, e.g. `approve 12`")
	}
	return id, nil
}

// describe turns lifecycle errors into something a reviewer can act on.
func describe(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return errors.New("no such post or topic")
	case errors.Is(err, domain.ErrConflict):
		return fmt.Errorf("not possible in the post's current state: %w", err)
	default:
		return err
	}
}

func (bot *Bot) formatPost(p domain.Post) string {
	var out strings.Builder
	fmt.Fprintf(&out, "#%d [%s] %s", p.ID, p.Platform, p.Status)
	if p.ScheduledAt != nil {
		fmt.Fprintf(&out, " at %s", p.ScheduledAt.In(bot.deps.Calendar.Location()).Format("Jan 2 15:04"))
	}
	fmt.Fprintf(&out, "\nTopic: %s\n\n%s", p.SourceTopic, p.Content)
	if p.Status == domain.StatusFailed && p.Diagnostic != nil {
		fmt.Fprintf(&out, "\n\nError: %s", *p.Diagnostic)
	}
	return out.String()
}

func (bot *Bot) formatPosts(posts []domain.Post) string {
	parts := make([]string, len(posts))
	for i, p := range posts {
		parts[i] = bot.formatPost(p)
	}
	return strings.Join(parts, "\n\n———\n\n")
}
