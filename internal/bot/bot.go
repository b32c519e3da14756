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

// Package bot is the Telegram review desk: queue triage, drafting and
// pipeline triggers from a chat, plus delivery of the daily report.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"signalroom/internal/calendar"
	"signalroom/internal/composer"
	"signalroom/internal/config"
	"signalroom/internal/domain"
	"signalroom/internal/intel"
	"signalroom/internal/logging"
	"signalroom/internal/notify"
	"signalroom/internal/publish"
)

type Composer interface {
	Queue(ctx context.Context) ([]domain.Post, error)
	History(ctx context.Context) ([]domain.Post, error)
	Approve(ctx context.Context, id int64) (*domain.Post, error)
	Publish(ctx context.Context, id int64) (*domain.Post, error)
	Reject(ctx context.Context, id int64) (*composer.RejectResult, error)
	Revise(ctx context.Context, id int64, feedback string) (*composer.ReviseResult, error)
	Edit(ctx context.Context, id int64, content string) (*domain.Post, error)
	Delete(ctx context.Context, id int64) error
	Draft(ctx context.Context, req composer.DraftRequest) (*domain.Post, error)
}

type Pipeline interface {
	Trigger(ctx context.Context, target string) error
	Targets() []string
}

type Stats interface {
	Stats(ctx context.Context) (*publish.Stats, error)
}

type Reader interface {
	TopicsOn(ctx context.Context, date string, category domain.Category) ([]domain.Topic, error)
	TopicByTitle(ctx context.Context, date, title string) (*domain.Topic, error)
	RecentRunLog(ctx context.Context, limit int) ([]domain.RunLogEntry, error)
	GetReport(ctx context.Context, date string) (*domain.DailyReport, error)
}

// Sender is the part of the Telegram API the bot writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Deps struct {
	Composer Composer
	Pipeline Pipeline
	Watcher  *intel.Watcher
	Stats    Stats
	Reader   Reader
	Calendar *calendar.Calendar
}

type Bot struct {
	api      *tgbotapi.BotAPI
	sender   Sender
	conf     *config.Config
	deps     Deps
	log      logging.Logger
	commands []Command
}

func NewBot(conf *config.Config, deps Deps, log logging.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(conf.Telegram.ApiToken)
	if err != nil {
		return nil, err
	}

	bot := newBot(api, conf, deps, log)
	bot.api = api
	return bot, nil
}

// NewConsole builds the command set without a Telegram connection.
// Commands that upload files fail on it.
func NewConsole(conf *config.Config, deps Deps, log logging.Logger) *Bot {
	return newBot(noSender{}, conf, deps, log)
}

type noSender struct{}

func (noSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return tgbotapi.Message{}, errors.New("only available in Telegram")
}

func newBot(sender Sender, conf *config.Config, deps Deps, log logging.Logger) *Bot {
	bot := &Bot{
		sender: sender,
		conf:   conf,
		deps:   deps,
		log:    log,
	}
	bot.registerCommands()
	return bot
}

// Start polls for updates until ctx is done, reconnecting with backoff.
func (bot *Bot) Start(ctx context.Context) error {
	bot.log.WithField("username", bot.api.Self.UserName).Info("telegram bot authorized")

	retryDelay := 5 * time.Second
	for {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := bot.api.GetUpdatesChan(u)

	receive:
		for {
			select {
			case <-ctx.Done():
				bot.api.StopReceivingUpdates()
				return ctx.Err()
			case update, ok := <-updates:
				if !ok {
					break receive
				}
				if update.Message == nil {
					continue
				}
				go bot.handle(ctx, update.Message)
			}
		}

		bot.log.WithField("retry_in", retryDelay.String()).Warn("lost connection to telegram, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
		if retryDelay < 300*time.Second {
			retryDelay *= 2
		}
	}
}

func (bot *Bot) handle(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	bot.log.WithFields(logging.Fields{"user": message.From.UserName, "text": message.Text}).Debug("message received")

	reply, markdown := bot.Dispatch(ctx, Request{
		ChatID: message.Chat.ID,
		UserID: message.From.ID,
		Text:   message.Text,
	})
	if reply == "" {
		return
	}
	bot.reply(message.Chat.ID, message.MessageID, reply, markdown)
}

// Dispatch runs the command in req and returns the reply text and whether it
// is Markdown.
func (bot *Bot) Dispatch(ctx context.Context, req Request) (string, bool) {
	if !bot.allowed(req.UserID) {
		bot.log.WithField("user_id", req.UserID).Debug("rejected message from unknown user")
		return "You are not allowed to use this bot.", false
	}

	out, markdown, err := bot.run(ctx, req)
	if err != nil {
		return "❌ " + err.Error(), false
	}
	return out, markdown
}

// Run executes a command for an operator who is already authenticated,
// such as the dashboard console.
func (bot *Bot) Run(ctx context.Context, text string) (string, error) {
	out, _, err := bot.run(ctx, Request{Text: text})
	return out, err
}

func (bot *Bot) run(ctx context.Context, req Request) (string, bool, error) {
	name, args := splitCommand(req.Text)
	if name == "" {
		return "", false, nil
	}
	req.Args = args

	command := bot.CommandByName(name)
	if command == nil {
		return bot.suggestions(name), true, nil
	}

	out, err := command.Call(ctx, req)
	return out, command.Markdown, err
}

func (bot *Bot) allowed(userID int64) bool {
	if bot.conf.Telegram.Public {
		return true
	}
	for _, id := range bot.conf.Telegram.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// splitCommand accepts "queue", "/queue" and "/queue@SomeBot".
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}

	name, args, _ := strings.Cut(text, " ")
	name = strings.TrimPrefix(strings.ToLower(name), "/")
	name, _, _ = strings.Cut(name, "@")
	return name, strings.TrimSpace(args)
}

func (bot *Bot) reply(chatID int64, replyTo int, text string, markdown bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}

	if _, err := bot.sender.Send(msg); err != nil && markdown {
		// Unbalanced markup in post or topic text; send it raw.
		msg.ParseMode = ""
		_, err = bot.sender.Send(msg)
		if err != nil {
			bot.log.WithError(err).Warn("failed to send telegram reply")
		}
	} else if err != nil {
		bot.log.WithError(err).Warn("failed to send telegram reply")
	}
}

// Notify sends text to every report chat. Slack links are rewritten for
// Telegram.
func (bot *Bot) Notify(ctx context.Context, text string) error {
	chats := bot.conf.Telegram.ReportChatIDs
	if len(chats) == 0 {
		return fmt.Errorf("no telegram report chats configured")
	}

	converted := notify.SlackLinks(text)
	var sent int
	for _, chatID := range chats {
		msg := tgbotapi.NewMessage(chatID, converted)
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.DisableWebPagePreview = true
		if _, err := bot.sender.Send(msg); err != nil {
			bot.log.WithError(err).WithField("chat_id", chatID).Warn("failed to deliver report")
			continue
		}
		sent++
	}

	if sent == 0 {
		return fmt.Errorf("report not delivered to any of %d telegram chats", len(chats))
	}
	return nil
}
