package notifier

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ppbooks/noveltybot/logger"
	apperrors "ppbooks/noveltybot/pkg/errors"
)

const (
	sendPhotoEndpoint   = "/sendPhoto"
	sendMessageEndpoint = "/sendMessage"
	parseModeMarkdown   = "Markdown"
)

// TelegramNotifier implements Notifier via the Telegram Bot API.
type TelegramNotifier struct {
	client *resty.Client
	token  string
	chatID string
	log    *logger.Logger
}

// TelegramOption configures a TelegramNotifier.
type TelegramOption func(*TelegramNotifier)

// WithTimeout bounds each Bot API request.
func WithTimeout(d time.Duration) TelegramOption {
	return func(n *TelegramNotifier) {
		n.client.SetTimeout(d)
	}
}

// NewTelegramNotifier creates a notifier posting to chatID through the bot
// identified by token. apiURL is normally https://api.telegram.org.
func NewTelegramNotifier(apiURL, token, chatID string, opts ...TelegramOption) *TelegramNotifier {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(apiURL, "/") + "/bot" + token)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(10 * time.Second)

	n := &TelegramNotifier{
		client: client,
		token:  token,
		chatID: chatID,
		log:    logger.ForNotifier().WithField("chat_id", chatID),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

// telegramPayload is the body shared by sendPhoto and sendMessage.
type telegramPayload struct {
	ChatID      string      `json:"chat_id"`
	ParseMode   string      `json:"parse_mode"`
	ReplyMarkup replyMarkup `json:"reply_markup"`
	Text        string      `json:"text,omitempty"`
	Caption     string      `json:"caption,omitempty"`
	Photo       string      `json:"photo,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// buildRequest picks the endpoint and payload for n. A photo notification
// carries the message as caption; otherwise it is sent as plain text.
func (t *TelegramNotifier) buildRequest(n Notification) (string, telegramPayload) {
	message := FormatMessage(n.Title, n.Price)
	payload := telegramPayload{
		ChatID:    t.chatID,
		ParseMode: parseModeMarkdown,
		ReplyMarkup: replyMarkup{
			InlineKeyboard: [][]inlineButton{{{Text: buttonLabel, URL: n.ItemURL}}},
		},
	}

	if n.ImageURL != "" {
		payload.Photo = n.ImageURL
		payload.Caption = message
		return sendPhotoEndpoint, payload
	}

	payload.Text = message
	return sendMessageEndpoint, payload
}

// Notify sends exactly one Bot API request for n.
func (t *TelegramNotifier) Notify(ctx context.Context, n Notification) error {
	endpoint, payload := t.buildRequest(n)

	var result telegramResponse
	res, err := t.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		SetError(&result).
		Post(endpoint)
	if err != nil {
		return apperrors.NewNotifier(endpoint, "request to Telegram failed", t.redact(err))
	}

	if res.IsError() || !result.OK {
		t.log.Error().
			Str("endpoint", endpoint).
			Int("status", res.StatusCode()).
			Int("error_code", result.ErrorCode).
			Str("description", result.Description).
			Str("url", n.ItemURL).
			Msg("Telegram rejected the message")
		return apperrors.NewNotifier(endpoint, "telegram rejected the message: "+result.Description, nil)
	}

	t.log.Info().
		Str("endpoint", endpoint).
		Int64("message_id", result.Result.MessageID).
		Str("url", n.ItemURL).
		Msg("Telegram accepted the message")
	return nil
}

// redact drops the request URL from transport errors, since it embeds the bot token
func (t *TelegramNotifier) redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if t.token != "" && strings.Contains(err.Error(), t.token) {
		return errors.New(strings.ReplaceAll(err.Error(), t.token, "<redacted>"))
	}
	return err
}
