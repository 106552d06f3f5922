package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igtracker/pkg/feed"
)

// fakeAPI records everything pushed through the bot API
type fakeAPI struct {
	sent     []tgbotapi.Chattable
	groups   []tgbotapi.MediaGroupConfig
	requests []tgbotapi.Chattable

	sendErr error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.groups = append(f.groups, c)
	return []tgbotapi.Message{{MessageID: 1}}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

// texts returns the bodies of plain messages sent so far
func (f *fakeAPI) texts() []string {
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func newTestItem(media feed.Media) feed.Item {
	return feed.Item{
		Shortcode: "Cxyz42",
		Posted:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Caption:   "hello",
		Likes:     10,
		Comments:  2,
		Media:     media,
	}
}

func TestDispatcherSendText(t *testing.T) {
	api := &fakeAPI{}
	d := NewDispatcher(api)

	err := d.SendText(context.Background(), "42", "<b>hi</b>")

	require.NoError(t, err)
	require.Len(t, api.sent, 1)
	msg := api.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "<b>hi</b>", msg.Text)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
}

func TestDispatcherSendTextBadSubscriberID(t *testing.T) {
	d := NewDispatcher(&fakeAPI{})

	err := d.SendText(context.Background(), "not-a-chat", "hi")

	assert.Error(t, err)
}

func TestDispatcherSendItemImage(t *testing.T) {
	api := &fakeAPI{}
	d := NewDispatcher(api)

	err := d.SendItem(context.Background(), "42", newTestItem(feed.Image{URL: "https://cdn.example.com/a.jpg"}))

	require.NoError(t, err)
	require.Len(t, api.sent, 1)
	photo := api.sent[0].(tgbotapi.PhotoConfig)
	assert.Equal(t, int64(42), photo.ChatID)
	assert.Contains(t, photo.Caption, "hello")
	assert.Equal(t, tgbotapi.ModeHTML, photo.ParseMode)
	assert.NotNil(t, photo.ReplyMarkup)
}

func TestDispatcherSendItemVideo(t *testing.T) {
	api := &fakeAPI{}
	d := NewDispatcher(api)

	err := d.SendItem(context.Background(), "42", newTestItem(feed.Video{URL: "https://cdn.example.com/v.mp4", Views: 100}))

	require.NoError(t, err)
	require.Len(t, api.sent, 1)
	video := api.sent[0].(tgbotapi.VideoConfig)
	assert.Contains(t, video.Caption, "👁")
}

func TestDispatcherSendItemGallery(t *testing.T) {
	api := &fakeAPI{}
	d := NewDispatcher(api)

	item := newTestItem(feed.Gallery{Items: []feed.GalleryItem{
		{URL: "https://cdn.example.com/1.jpg"},
		{URL: "https://cdn.example.com/2.mp4", IsVideo: true},
	}})

	err := d.SendItem(context.Background(), "42", item)

	require.NoError(t, err)
	require.Len(t, api.groups, 1)
	group := api.groups[0]
	require.Len(t, group.Media, 2)

	first := group.Media[0].(tgbotapi.InputMediaPhoto)
	assert.Contains(t, first.Caption, "Check it out")

	second := group.Media[1].(tgbotapi.InputMediaVideo)
	assert.Empty(t, second.Caption)
}

func TestDispatcherSendItemError(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("telegram down")}
	d := NewDispatcher(api)

	err := d.SendItem(context.Background(), "42", newTestItem(feed.Image{URL: "https://cdn.example.com/a.jpg"}))

	assert.Error(t, err)
}
