// Package telegram delivers chunk files to the archive channel.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// uploadTimeout bounds one send_video call; chunk files run to hundreds of
// megabytes on slow uplinks.
const uploadTimeout = 300 * time.Second

type Uploader struct {
	bot       *tgbotapi.BotAPI
	channelID int64
}

// NewUploader authenticates the bot once per run. The underlying client is
// plain HTTP with a per-request timeout, so each upload's network use ends
// with the call.
func NewUploader(token string, channelID int64) (*Uploader, error) {
	client := &http.Client{Timeout: uploadTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	bot.Debug = false
	return &Uploader{bot: bot, channelID: channelID}, nil
}

// BotUsername identifies the authenticated bot, for startup logging.
func (u *Uploader) BotUsername() string {
	return u.bot.Self.UserName
}

// UploadVideo sends one chunk with a caption and returns Telegram's file
// reference for the stored video.
func (u *Uploader) UploadVideo(ctx context.Context, path, caption string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	video := tgbotapi.NewVideo(u.channelID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.SupportsStreaming = true

	msg, err := u.bot.Send(video)
	if err != nil {
		return "", fmt.Errorf("send video %s: %w", path, err)
	}
	if msg.Video == nil {
		// Telegram re-classifies some uploads as documents.
		if msg.Document != nil {
			return msg.Document.FileID, nil
		}
		return "", fmt.Errorf("send video %s: response carries no file reference", path)
	}
	return msg.Video.FileID, nil
}
