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
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"signalroom/internal/composer"
	"signalroom/internal/domain"
	"signalroom/internal/notify"
	"signalroom/internal/spreadsheet"
)

type Request struct {
	ChatID int64
	UserID int64
	Text   string
	Args   string
}

type Command struct {
	Name        string
	Description string
	Example     string
	Group       string
	Markdown    bool
	Call        func(context.Context, Request) (string, error)
}

func (bot *Bot) NewCommand(cmd Command) {
	bot.commands = append(bot.commands, cmd)
}

func (bot *Bot) CommandByName(name string) *Command {
	for i := range bot.commands {
		if bot.commands[i].Name == name {
			return &bot.commands[i]
		}
	}

	return nil
}

func (bot *Bot) registerCommands() {
	bot.NewCommand(Command{Name: "help", Description: "Print this message or help on one command", Example: "help revise", Group: "General", Markdown: true, Call: bot.Help})
	bot.NewCommand(Command{Name: "about", Description: "What this bot does", Group: "General", Call: bot.About})

	bot.NewCommand(Command{Name: "queue", Description: "Drafts and scheduled posts", Group: "Review", Call: bot.Queue})
	bot.NewCommand(Command{Name: "approve", Description: "Schedule a draft", Example: "approve 12", Group: "Review", Call: bot.Approve})
	bot.NewCommand(Command{Name: "publish", Description: "Publish a scheduled post now", Example: "publish 12", Group: "Review", Call: bot.Publish})
	bot.NewCommand(Command{Name: "reject", Description: "Reject a post; scheduled slots get a replacement draft", Example: "reject 12", Group: "Review", Call: bot.Reject})
	bot.NewCommand(Command{Name: "revise", Description: "Redraft with feedback", Example: "revise 12 less hype, name the regulation", Group: "Review", Call: bot.Revise})
	bot.NewCommand(Command{Name: "edit", Description: "Replace a draft's text", Example: "edit 12 New text", Group: "Review", Call: bot.Edit})
	bot.NewCommand(Command{Name: "delete", Description: "Delete a post", Example: "delete 12", Group: "Review", Call: bot.Delete})
	bot.NewCommand(Command{Name: "history", Description: "Today's published, failed and rejected posts", Group: "Review", Call: bot.History})
	bot.NewCommand(Command{Name: "xlsx", Description: "Queue and history as an XLSX file", Group: "Review", Call: bot.Spreadsheet})

	bot.NewCommand(Command{Name: "draft", Description: "Draft a post from one of today's topics", Example: "draft linkedin Cursor raises $900M Series B", Group: "Compose", Call: bot.Draft})
	bot.NewCommand(Command{Name: "topics", Description: "Today's emerging topics", Group: "Compose", Call: bot.Topics})
	bot.NewCommand(Command{Name: "stats", Description: "Posts published today against the daily limits", Group: "Compose", Call: bot.Stats})

	bot.NewCommand(Command{Name: "report", Description: "Daily intelligence report, today unless a date is given", Example: "report 2025-07-01", Group: "Intelligence", Markdown: true, Call: bot.Report})
	bot.NewCommand(Command{Name: "runlog", Description: "Latest pipeline runs", Group: "Intelligence", Call: bot.RunLog})
	bot.NewCommand(Command{Name: "trigger", Description: "Run the pipeline or one step of it in the background", Example: "trigger synthesizer", Group: "Intelligence", Call: bot.Trigger})

	bot.NewCommand(Command{Name: "adduser", Description: "Allow a Telegram user ID", Example: "adduser 5293210034", Group: "Telegram", Call: bot.AddUser})
	bot.NewCommand(Command{Name: "rmuser", Description: "Revoke a Telegram user ID", Example: "rmuser 5293210034", Group: "Telegram", Call: bot.RemoveUser})
	bot.NewCommand(Command{Name: "togglepublic", Description: "Open or close the bot to everyone", Group: "Telegram", Call: bot.TogglePublicity})
}

func constructCommandHelpMessage(command Command) string {
	commandHelp := fmt.Sprintf("\n*%s* - %s\n", command.Name, command.Description)
	if command.Example != "" {
		commandHelp += fmt.Sprintf("Example: `%s`\n", command.Example)
	}

	return commandHelp
}

func (bot *Bot) Help(ctx context.Context, req Request) (string, error) {
	if req.Args != "" {
		if command := bot.CommandByName(strings.ToLower(req.Args)); command != nil {
			return constructCommandHelpMessage(*command), nil
		}
	}

	commandsByGroup := make(map[string][]Command)
	for _, command := range bot.commands {
		commandsByGroup[command.Group] = append(commandsByGroup[command.Group], command)
	}

	groups := make([]string, 0, len(commandsByGroup))
	for g := range commandsByGroup {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var helpMessage strings.Builder
	for _, group := range groups {
		fmt.Fprintf(&helpMessage, "\n*[%s]*\n", group)
		for _, command := range commandsByGroup[group] {
			helpMessage.WriteString(constructCommandHelpMessage(command))
		}
	}

	return helpMessage.String(), nil
}

func (bot *Bot) About(ctx context.Context, req Request) (string, error) {
	return `signalroom review bot.

Drafts social posts from the day's community topics and keeps them in a queue until someone approves, edits, revises or rejects them. The intelligence pipeline and its daily report can be driven from here too.

License: GPLv3`, nil
}

func (bot *Bot) Queue(ctx context.Context, req Request) (string, error) {
	posts, err := bot.deps.Composer.Queue(ctx)
	if err != nil {
		return "", err
	}
	if len(posts) == 0 {
		return "The queue is empty.", nil
	}
	return bot.formatPosts(posts), nil
}

func (bot *Bot) History(ctx context.Context, req Request) (string, error) {
	posts, err := bot.deps.Composer.History(ctx)
	if err != nil {
		return "", err
	}
	if len(posts) == 0 {
		return "Nothing published, failed or rejected today.", nil
	}
	return bot.formatPosts(posts), nil
}

func (bot *Bot) Approve(ctx context.Context, req Request) (string, error) {
	id, err := parseID(req.Args)
	if err != nil {
		return "", err
	}
	post, err := bot.deps.Composer.Approve(ctx, id)
	if err != nil {
		return "", describe(err)
	}
	return "✅ Scheduled\n\n" + bot.formatPost(*post), nil
}

func (bot *Bot) Publish(ctx context.Context, req Request) (string, error) {
	id, err := parseID(req.Args)
	if err != nil {
		return "", err
	}
	post, err := bot.deps.Composer.Publish(ctx, id)
	if err != nil {
		return "", describe(err)
	}
	if post.Status == domain.StatusFailed {
		return "⚠️ Publish failed\n\n" + bot.formatPost(*post), nil
	}
	return "✅ Published\n\n" + bot.formatPost(*post), nil
}

func (bot *Bot) Reject(ctx context.Context, req Request) (string, error) {
	id, err := parseID(req.Args)
	if err != nil {
		return "", err
	}
	result, err := bot.deps.Composer.Reject(ctx, id)
	if err != nil {
		return "", describe(err)
	}

	out := fmt.Sprintf("Rejected #%d (%s).", result.Rejected.ID, result.Rejected.SourceTopic)
	switch {
	case result.Replacement != nil:
		out += "\n\nReplacement draft:\n\n" + bot.formatPost(*result.Replacement)
	case result.ReplacementError != "":
		out += "\nNo replacement: " + result.ReplacementError
	}
	return out, nil
}

func (bot *Bot) Revise(ctx context.Context, req Request) (string, error) {
	idArg, feedback, _ := strings.Cut(req.Args, " ")
	id, err := parseID(idArg)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(feedback) == "" {
		return "", errors.New("feedback is required, e.g. `revise 12 shorter`")
	}

	result, err := bot.deps.Composer.Revise(ctx, id, feedback)
	if err != nil {
		return "", describe(err)
	}
	return fmt.Sprintf("Revised #%d.\n\n%s", result.Rejected.ID, bot.formatPost(*result.Revision)), nil
}

func (bot *Bot) Edit(ctx context.Context, req Request) (string, error) {
	idArg, content, _ := strings.Cut(req.Args, " ")
	id, err := parseID(idArg)
	if err != nil {
		return "", err
	}
	post, err := bot.deps.Composer.Edit(ctx, id, content)
	if err != nil {
		return "", describe(err)
	}
	return "✅ Updated\n\n" + bot.formatPost(*post), nil
}

func (bot *Bot) Delete(ctx context.Context, req Request) (string, error) {
	id, err := parseID(req.Args)
	if err != nil {
		return "", err
	}
	if err := bot.deps.Composer.Delete(ctx, id); err != nil {
		return "", describe(err)
	}
	return fmt.Sprintf("Deleted #%d.", id), nil
}

func (bot *Bot) Draft(ctx context.Context, req Request) (string, error) {
	platformArg, title, _ := strings.Cut(req.Args, " ")
	platform := domain.Platform(strings.ToLower(platformArg))
	title = strings.TrimSpace(title)
	if !platform.Valid() || title == "" {
		return "", errors.New("usage: draft <twitter|linkedin> <topic title>")
	}

	topic, err := bot.deps.Reader.TopicByTitle(ctx, bot.deps.Calendar.Today(), title)
	if err != nil {
		return "", describe(err)
	}

	post, err := bot.deps.Composer.Draft(ctx, composer.DraftRequest{
		TopicTitle:  topic.TopicTitle,
		Summary:     topic.Summary,
		Keywords:    []string{topic.Keyword},
		SourceLinks: topic.SampleURLs,
		Platform:    platform,
	})
	if err != nil {
		return "", describe(err)
	}
	return "📝 New draft\n\n" + bot.formatPost(*post), nil
}

func (bot *Bot) Topics(ctx context.Context, req Request) (string, error) {
	topics, err := bot.deps.Reader.TopicsOn(ctx, bot.deps.Calendar.Today(), "")
	if err != nil {
		return "", err
	}
	if len(topics) == 0 {
		return "No topics yet today. Has the pipeline run?", nil
	}

	var out strings.Builder
	for i, t := range topics {
		fmt.Fprintf(&out, "%d. %s (%d posts, %s)\n", i+1, t.TopicTitle, t.PostCount, t.Category)
	}
	return out.String(), nil
}

func (bot *Bot) Stats(ctx context.Context, req Request) (string, error) {
	stats, err := bot.deps.Stats.Stats(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Published on %s\nTwitter: %d/%d\nLinkedIn: %d/%d",
		stats.Date,
		stats.Twitter.Count, stats.Twitter.Limit,
		stats.LinkedIn.Count, stats.LinkedIn.Limit,
	), nil
}

func (bot *Bot) Report(ctx context.Context, req Request) (string, error) {
	date := bot.deps.Calendar.Today()
	if req.Args != "" {
		date = req.Args
	}

	report, err := bot.deps.Reader.GetReport(ctx, date)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Sprintf("No report for %s.", date), nil
	}
	if err != nil {
		return "", err
	}
	return notify.SlackLinks(report.SlackPostText), nil
}

func (bot *Bot) RunLog(ctx context.Context, req Request) (string, error) {
	entries, err := bot.deps.Reader.RecentRunLog(ctx, 10)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "No runs recorded yet.", nil
	}

	var out strings.Builder
	for _, e := range entries {
		mark := "✅"
		if e.Status == domain.RunError {
			mark = "❌"
		}
		fmt.Fprintf(&out, "%s %s %s %dms", mark, e.CreatedAt.In(bot.deps.Calendar.Location()).Format("01-02 15:04"), e.FunctionName, e.DurationMs)
		if e.ErrorMsg != nil {
			fmt.Fprintf(&out, ": %s", *e.ErrorMsg)
		}
		out.WriteString("\n")
	}
	return out.String(), nil
}

func (bot *Bot) Trigger(ctx context.Context, req Request) (string, error) {
	target := strings.ToLower(req.Args)
	if target == "" {
		target = "all"
	}

	var baseline int64
	if bot.deps.Watcher != nil {
		var err error
		if baseline, err = bot.deps.Watcher.Baseline(ctx); err != nil {
			return "", err
		}
	}

	if err := bot.deps.Pipeline.Trigger(ctx, target); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return "", fmt.Errorf("unknown target %q, pick one of: %s", target, strings.Join(bot.deps.Pipeline.Targets(), ", "))
		}
		return "", err
	}

	if bot.deps.Watcher != nil && req.ChatID != 0 {
		go bot.watch(context.WithoutCancel(ctx), req.ChatID, baseline, target)
	}
	return fmt.Sprintf("🚀 Started %s.", target), nil
}

func (bot *Bot) watch(ctx context.Context, chatID int64, baseline int64, target string) {
	result, err := bot.deps.Watcher.Wait(ctx, baseline, target)
	text := "✅ Pipeline finished."
	switch {
	case err != nil:
		text = "⚠️ " + err.Error()
	case len(result.Failed) > 0:
		text = "⚠️ Pipeline finished with errors in: " + strings.Join(result.Failed, ", ")
	}

	if _, err := bot.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		bot.log.WithError(err).Warn("failed to send pipeline outcome")
	}
}

func (bot *Bot) Spreadsheet(ctx context.Context, req Request) (string, error) {
	queue, err := bot.deps.Composer.Queue(ctx)
	if err != nil {
		return "", err
	}
	history, err := bot.deps.Composer.History(ctx)
	if err != nil {
		return "", err
	}

	buf, err := spreadsheet.GenerateFromPosts(append(queue, history...))
	if err != nil {
		return "", err
	}

	doc := tgbotapi.NewDocument(req.ChatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("posts-%s.xlsx", bot.deps.Calendar.Today()),
		Bytes: buf.Bytes(),
	})
	if _, err := bot.sender.Send(doc); err != nil {
		return "", fmt.Errorf("send spreadsheet: %w", err)
	}
	return "", nil
}

func (bot *Bot) AddUser(ctx context.Context, req Request) (string, error) {
	id, err := strconv.ParseInt(req.Args, 10, 64)
	if err != nil {
		return "", errors.New("invalid user ID")
	}

	for _, allowedID := range bot.conf.Telegram.AllowedUserIDs {
		if id == allowedID {
			return "This user is already allowed.", nil
		}
	}

	bot.conf.Telegram.AllowedUserIDs = append(bot.conf.Telegram.AllowedUserIDs, id)
	if err := bot.conf.Update(); err != nil {
		bot.log.WithError(err).Warn("allowed users changed but config not saved")
	}
	return "User added.", nil
}

func (bot *Bot) RemoveUser(ctx context.Context, req Request) (string, error) {
	id, err := strconv.ParseInt(req.Args, 10, 64)
	if err != nil {
		return "", errors.New("invalid user ID")
	}

	kept := bot.conf.Telegram.AllowedUserIDs[:0]
	for _, allowedID := range bot.conf.Telegram.AllowedUserIDs {
		if allowedID != id {
			kept = append(kept, allowedID)
		}
	}
	bot.conf.Telegram.AllowedUserIDs = kept
	if err := bot.conf.Update(); err != nil {
		bot.log.WithError(err).Warn("allowed users changed but config not saved")
	}
	return "User removed.", nil
}

func (bot *Bot) TogglePublicity(ctx context.Context, req Request) (string, error) {
	bot.conf.Telegram.Public = !bot.conf.Telegram.Public
	if err := bot.conf.Update(); err != nil {
		bot.log.WithError(err).Warn("publicity changed but config not saved")
	}

	if bot.conf.Telegram.Public {
		return "The bot is now open to everyone.", nil
	}
	return "The bot is now limited to allowed users.", nil
}
