package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

type TelegramConfig struct {
	Token   string
	BaseURL string // defaults to the public Bot API host
	Timeout time.Duration
}

// Telegram sends messages through the Telegram Bot API.
type Telegram struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Telegram{
		token:   cfg.Token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64        `json:"chat_id"`
	Text        string       `json:"text"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type editMarkupRequest struct {
	ChatID      int64       `json:"chat_id"`
	MessageID   int64       `json:"message_id"`
	ReplyMarkup replyMarkup `json:"reply_markup"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, msg Message) error {
	req := sendMessageRequest{ChatID: msg.ChatID, Text: msg.Text}
	if len(msg.Buttons) > 0 {
		markup := &replyMarkup{}
		for _, row := range msg.Buttons {
			var keyboardRow []inlineButton
			for _, b := range row {
				keyboardRow = append(keyboardRow, inlineButton{Text: b.Label, CallbackData: b.Data})
			}
			markup.InlineKeyboard = append(markup.InlineKeyboard, keyboardRow)
		}
		req.ReplyMarkup = markup
	}

	return t.call(ctx, "sendMessage", req)
}

func (t *Telegram) ClearButtons(ctx context.Context, chatID, messageID int64) error {
	req := editMarkupRequest{
		ChatID:      chatID,
		MessageID:   messageID,
		ReplyMarkup: replyMarkup{InlineKeyboard: [][]inlineButton{}},
	}

	return t.call(ctx, "editMessageReplyMarkup", req)
}

func (t *Telegram) call(ctx context.Context, method string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("%s failed: %s", method, apiResp.Description)
	}

	return nil
}

// Wire shapes of the inbound webhook payload. Only the fields the bot
// reacts to are mapped.
type telegramUpdate struct {
	Message       *telegramMessage       `json:"message"`
	CallbackQuery *telegramCallbackQuery `json:"callback_query"`
}

type telegramMessage struct {
	MessageID int64         `json:"message_id"`
	From      *telegramUser `json:"from"`
	Chat      telegramChat  `json:"chat"`
	Text      string        `json:"text"`
}

type telegramCallbackQuery struct {
	From    telegramUser     `json:"from"`
	Message *telegramMessage `json:"message"`
	Data    string           `json:"data"`
}

type telegramUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type telegramChat struct {
	ID int64 `json:"id"`
}

// ParseTelegramUpdate maps a webhook payload to an Update. Payloads
// that are neither a text message nor a callback press return
// ErrUnsupported.
func ParseTelegramUpdate(r io.Reader) (Update, error) {
	var wire telegramUpdate
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return Update{}, fmt.Errorf("decode update: %w", err)
	}

	switch {
	case wire.CallbackQuery != nil && wire.CallbackQuery.Message != nil:
		cb := wire.CallbackQuery
		return Update{
			UserID:    cb.From.ID,
			Username:  cb.From.Username,
			ChatID:    cb.Message.Chat.ID,
			MessageID: cb.Message.MessageID,
			Callback:  cb.Data,
		}, nil

	case wire.Message != nil && wire.Message.From != nil && wire.Message.Text != "":
		msg := wire.Message
		return Update{
			UserID:    msg.From.ID,
			Username:  msg.From.Username,
			ChatID:    msg.Chat.ID,
			MessageID: msg.MessageID,
			Text:      msg.Text,
		}, nil

	default:
		return Update{}, ErrUnsupported
	}
}
