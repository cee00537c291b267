// Package telegram adapts the Bot API transport to the state machine's
// Messenger contract and translates inbound webhook updates into events.
package telegram

import (
	"context"
	"fmt"

	"churchbot/internal/auth"
	"churchbot/internal/bot"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Client wraps the Bot API connection. It satisfies bot.Messenger.
type Client struct {
	api *tgbotapi.BotAPI
}

func NewClient(token string) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("Authorized on telegram")
	return &Client{api: api}, nil
}

func (c *Client) Send(_ context.Context, chatID int64, msg bot.Message) error {
	out := tgbotapi.NewMessage(chatID, msg.Text)
	if msg.HTML {
		out.ParseMode = tgbotapi.ModeHTML
	}
	if markup := buildMarkup(msg.Keyboard); markup != nil {
		out.ReplyMarkup = markup
	}
	_, err := c.api.Send(out)
	return err
}

func (c *Client) Edit(_ context.Context, chatID int64, messageID int, msg bot.Message) error {
	var err error
	if markup := buildMarkup(msg.Keyboard); markup != nil {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, msg.Text, *markup)
		if msg.HTML {
			edit.ParseMode = tgbotapi.ModeHTML
		}
		_, err = c.api.Send(edit)
	} else {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, msg.Text)
		if msg.HTML {
			edit.ParseMode = tgbotapi.ModeHTML
		}
		_, err = c.api.Send(edit)
	}
	return err
}

func (c *Client) AckCallback(_ context.Context, callbackID string) error {
	_, err := c.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

// ChatInfo resolves a user's profile through the private-chat lookup. It only
// works for users who have started a conversation with the bot.
func (c *Client) ChatInfo(_ context.Context, userID int64) (auth.UserInfo, error) {
	chat, err := c.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: userID},
	})
	if err != nil {
		return auth.UserInfo{}, err
	}
	return auth.UserInfo{
		ID:        chat.ID,
		Username:  chat.UserName,
		FirstName: chat.FirstName,
		LastName:  chat.LastName,
	}, nil
}

// SetWebhook points the Bot API at the given public URL.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if _, err := c.api.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	return nil
}

func (c *Client) WebhookInfo() (tgbotapi.WebhookInfo, error) {
	return c.api.GetWebhookInfo()
}

func (c *Client) BotInfo() tgbotapi.User {
	return c.api.Self
}

// TranslateUpdate maps a webhook update onto the state machine's event type.
// Updates that are neither a text message nor a callback return nil.
func TranslateUpdate(update *tgbotapi.Update) *bot.Event {
	if cq := update.CallbackQuery; cq != nil && cq.Message != nil {
		return &bot.Event{
			ChatID:     cq.Message.Chat.ID,
			From:       userInfo(cq.From),
			Callback:   cq.Data,
			CallbackID: cq.ID,
			MessageID:  cq.Message.MessageID,
		}
	}
	if msg := update.Message; msg != nil && msg.Text != "" {
		return &bot.Event{
			ChatID: msg.Chat.ID,
			From:   userInfo(msg.From),
			Text:   msg.Text,
		}
	}
	return nil
}

func userInfo(u *tgbotapi.User) auth.UserInfo {
	if u == nil {
		return auth.UserInfo{}
	}
	return auth.UserInfo{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func buildMarkup(keyboard [][]bot.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(keyboard) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, len(keyboard))
	for i, row := range keyboard {
		buttons := make([]tgbotapi.InlineKeyboardButton, len(row))
		for j, btn := range row {
			buttons[j] = tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data)
		}
		rows[i] = buttons
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
