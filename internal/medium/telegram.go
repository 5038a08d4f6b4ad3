package medium

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramConfig configures a Telegram-backed Medium.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// Telegram implements Medium over go-telegram/bot's long-polling client:
// it sends the prompt via SendMessage and waits for the next message in
// ChatID.
type Telegram struct {
	b       *bot.Bot
	chatID  int64
	replies chan string
}

// NewTelegram builds a Telegram Medium and registers its update handler.
func NewTelegram(ctx context.Context, cfg TelegramConfig) (*Telegram, error) {
	t := &Telegram{chatID: cfg.ChatID, replies: make(chan string, 1)}

	b, err := bot.New(cfg.Token, bot.WithDefaultHandler(t.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	t.b = b

	go b.Start(ctx)
	return t, nil
}

func (t *Telegram) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.ID != t.chatID {
		return
	}
	select {
	case t.replies <- update.Message.Text:
	default:
	}
}

// OnEvent is accepted for interface symmetry.
func (t *Telegram) OnEvent(fn EventFunc) {}

// Prompt sends text to the configured chat and blocks for the next
// message there.
func (t *Telegram) Prompt(ctx context.Context, text string) (string, error) {
	_, err := t.b.SendMessage(ctx, &bot.SendMessageParams{ChatID: t.chatID, Text: text})
	if err != nil {
		return "", fmt.Errorf("telegram: send prompt: %w", err)
	}

	select {
	case reply := <-t.replies:
		return reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
