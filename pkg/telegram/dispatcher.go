package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"igtracker/pkg/feed"
	"igtracker/pkg/instagram"
	"igtracker/pkg/logger"
)

// sender is the slice of the Telegram Bot API the dispatcher needs
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// Dispatcher delivers rendered feed items and status texts to Telegram
// chats. It implements checker.Dispatcher: subscriber identifiers are
// stringified chat IDs. Sends are synchronous; an error means the item was
// not delivered and its watermark must not advance.
type Dispatcher struct {
	api    sender
	logger logger.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher over the given bot API
func NewDispatcher(api sender) *Dispatcher {
	return &Dispatcher{
		api:    api,
		logger: logger.GetLogger(),
		now:    time.Now,
	}
}

// SendText sends an HTML-formatted text message
func (d *Dispatcher) SendText(ctx context.Context, subscriberID string, text string) error {
	chatID, err := parseChatID(subscriberID)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := d.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendItem renders a feed item according to its media variant and delivers
// it: single photo, single video, or a media group for galleries
func (d *Dispatcher) SendItem(ctx context.Context, subscriberID string, item feed.Item) error {
	chatID, err := parseChatID(subscriberID)
	if err != nil {
		return err
	}

	markup := postMarkup(item.Shortcode)
	now := d.now().UTC()

	switch media := item.Media.(type) {
	case feed.Image:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(media.URL))
		photo.Caption = buildCaption(&item, now, false)
		photo.ParseMode = tgbotapi.ModeHTML
		photo.ReplyMarkup = markup
		if _, err := d.api.Send(photo); err != nil {
			return fmt.Errorf("failed to send photo: %w", err)
		}

	case feed.Video:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FileURL(media.URL))
		video.Caption = buildCaption(&item, now, false)
		video.ParseMode = tgbotapi.ModeHTML
		video.ReplyMarkup = markup
		if _, err := d.api.Send(video); err != nil {
			return fmt.Errorf("failed to send video: %w", err)
		}

	case feed.Gallery:
		group := make([]interface{}, 0, len(media.Items))
		for i, entry := range media.Items {
			if entry.IsVideo {
				input := tgbotapi.NewInputMediaVideo(tgbotapi.FileURL(entry.URL))
				if i == 0 {
					input.Caption = buildCaption(&item, now, true)
					input.ParseMode = tgbotapi.ModeHTML
				}
				group = append(group, input)
			} else {
				input := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(entry.URL))
				if i == 0 {
					input.Caption = buildCaption(&item, now, true)
					input.ParseMode = tgbotapi.ModeHTML
				}
				group = append(group, input)
			}
		}
		if _, err := d.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, group)); err != nil {
			return fmt.Errorf("failed to send media group: %w", err)
		}

	default:
		return fmt.Errorf("unsupported media variant %T", item.Media)
	}

	d.logger.DebugWithFields("item delivered", map[string]interface{}{
		"subscriber": subscriberID,
		"shortcode":  item.Shortcode,
	})
	return nil
}

// postMarkup builds the inline "Check it out" button linking to the post
func postMarkup(shortcode string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Check it out", instagram.GetPostURL(shortcode)),
		),
	)
}

func parseChatID(subscriberID string) (int64, error) {
	chatID, err := strconv.ParseInt(subscriberID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subscriber id %q: %w", subscriberID, err)
	}
	return chatID, nil
}
