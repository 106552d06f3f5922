// Package telegram is the bot surface: command routing for the tracker and
// delivery of rendered feed items to chats.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"igtracker/pkg/checker"
	"igtracker/pkg/feed"
	"igtracker/pkg/instagram"
	"igtracker/pkg/logger"
	"igtracker/pkg/store"
)

// api is the slice of the Telegram Bot API the bot needs
type api interface {
	sender
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// CheckRunner enqueues a sync cycle for a subscriber on a background worker.
// Submit reports whether the cycle was accepted.
type CheckRunner interface {
	Submit(subscriberID string) bool
}

// Bot routes subscriber commands: /start, /track, /untrack, /subs, /check
type Bot struct {
	api        api
	store      *store.Store
	checker    *checker.Checker
	dispatcher *Dispatcher
	runner     CheckRunner
	// allowedUser restricts the bot to one Telegram user when non-zero
	allowedUser int64
	logger      logger.Logger

	now func() time.Time
}

// New creates a bot over an established Telegram API connection
func New(botAPI api, st *store.Store, chk *checker.Checker, dispatcher *Dispatcher, runner CheckRunner, allowedUser int64) *Bot {
	return &Bot{
		api:         botAPI,
		store:       st,
		checker:     chk,
		dispatcher:  dispatcher,
		runner:      runner,
		allowedUser: allowedUser,
		logger:      logger.GetLogger(),
		now:         time.Now,
	}
}

// Run polls Telegram for updates until the context is canceled
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("bot update loop started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes a single Telegram update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if b.allowedUser != 0 && (msg.From == nil || msg.From.ID != b.allowedUser) {
		return
	}

	chatID := msg.Chat.ID
	subscriberID := strconv.FormatInt(chatID, 10)
	command := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	b.logger.DebugWithFields("command received", map[string]interface{}{
		"subscriber": subscriberID,
		"command":    command,
	})

	switch command {
	case "start":
		b.handleStart(ctx, subscriberID)
	case "track":
		b.handleTrack(ctx, chatID, subscriberID, args)
	case "untrack":
		b.handleUntrack(ctx, subscriberID, args)
	case "subs":
		b.handleSubs(ctx, subscriberID)
	case "check":
		b.handleCheck(ctx, subscriberID)
	}
}

func (b *Bot) handleStart(ctx context.Context, subscriberID string) {
	state, err := b.store.Load(subscriberID)
	if err != nil {
		b.logger.WithError(err).Error("failed to load subscriber state")
		return
	}
	// persist the fresh default state on first contact
	if state.Profiles.Len() == 0 && !state.Checking {
		if err := b.store.Save(subscriberID, state); err != nil {
			b.logger.WithError(err).Error("failed to persist subscriber state")
		}
	}
	b.reply(ctx, subscriberID, "Hello!")
}

func (b *Bot) handleTrack(ctx context.Context, chatID int64, subscriberID, args string) {
	username := instagram.SanitizeUsername(args)
	if username == "" {
		b.reply(ctx, subscriberID, "Please provide an instagram username as a parameter of the command")
		return
	}
	if !instagram.IsValidUsername(username) {
		b.reply(ctx, subscriberID, "Wrong username format!")
		return
	}

	state, err := b.store.Load(subscriberID)
	if err != nil {
		b.logger.WithError(err).Error("failed to load subscriber state")
		b.reply(ctx, subscriberID, "Failed to create a subscription...")
		return
	}
	if state.Profiles.Has(username) {
		b.reply(ctx, subscriberID, "You are already tracking this profile")
		return
	}

	// probing the profile takes a while
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.WithError(err).Warn("failed to send chat action")
	}

	// items published from this instant on count as new
	now := b.now()

	preview, err := b.checker.Preview(ctx, username)
	if err != nil {
		var feedErr *feed.Error
		if errors.As(err, &feedErr) {
			b.reply(ctx, subscriberID, fmt.Sprintf("An error occurred with profile %s: %s", username, feedErr.Message))
			return
		}
		b.logger.WithError(err).WithField("feed", username).Error("failed to probe profile")
		b.reply(ctx, subscriberID, "Failed to create a subscription...")
		return
	}

	state.Profiles.Set(username, now)
	if err := b.store.Save(subscriberID, state); err != nil {
		b.logger.WithError(err).Error("failed to persist subscription")
		b.reply(ctx, subscriberID, "Failed to create a subscription...")
		return
	}

	b.reply(ctx, subscriberID, "Subscription successfully created!")
	if len(preview) > 0 {
		if err := b.dispatcher.SendItem(ctx, subscriberID, preview[0]); err != nil {
			b.logger.WithError(err).Warn("failed to send preview item")
		}
	}
}

func (b *Bot) handleUntrack(ctx context.Context, subscriberID, args string) {
	username := instagram.SanitizeUsername(args)
	if username == "" {
		b.reply(ctx, subscriberID, "Please provide an instagram username as a parameter of the command")
		return
	}
	if !instagram.IsValidUsername(username) {
		b.reply(ctx, subscriberID, "Wrong username format!")
		return
	}

	state, err := b.store.Load(subscriberID)
	if err != nil {
		b.logger.WithError(err).Error("failed to load subscriber state")
		return
	}
	if !state.Profiles.Delete(username) {
		b.reply(ctx, subscriberID, "You are not tracking this profile")
		return
	}
	if err := b.store.Save(subscriberID, state); err != nil {
		b.logger.WithError(err).Error("failed to persist subscription removal")
		b.reply(ctx, subscriberID, "Failed to remove the subscription...")
		return
	}
	b.reply(ctx, subscriberID, "Subscription successfully removed!")
}

func (b *Bot) handleSubs(ctx context.Context, subscriberID string) {
	state, err := b.store.Load(subscriberID)
	if err != nil {
		b.logger.WithError(err).Error("failed to load subscriber state")
		return
	}
	if state.Profiles.Len() == 0 {
		b.reply(ctx, subscriberID, "You have no subscriptions")
		return
	}
	b.reply(ctx, subscriberID, "You track the following profiles:\n"+strings.Join(state.Profiles.FeedIDs(), "\n"))
}

func (b *Bot) handleCheck(ctx context.Context, subscriberID string) {
	if !b.runner.Submit(subscriberID) {
		b.reply(ctx, subscriberID, "Too many checks are queued right now, try again later")
	}
}

func (b *Bot) reply(ctx context.Context, subscriberID, text string) {
	if err := b.dispatcher.SendText(ctx, subscriberID, text); err != nil {
		b.logger.WithError(err).WithField("subscriber", subscriberID).Warn("failed to send reply")
	}
}
