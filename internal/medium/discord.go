package medium

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DiscordConfig configures a Discord-backed Medium.
type DiscordConfig struct {
	Token     string // bot token
	ChannelID string
}

// Discord implements Medium over a discordgo session: it posts the
// prompt to ChannelID and waits for the next non-bot message there.
type Discord struct {
	session   *discordgo.Session
	channelID string
	replies   chan string
}

// NewDiscord builds a Discord Medium and opens its gateway session.
func NewDiscord(cfg DiscordConfig) (*Discord, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	d := &Discord{session: session, channelID: cfg.ChannelID, replies: make(chan string, 1)}
	session.AddHandler(d.handleMessageCreate)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return d, nil
}

func (d *Discord) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.ChannelID != d.channelID {
		return
	}
	select {
	case d.replies <- m.Content:
	default:
	}
}

// OnEvent is accepted for interface symmetry; Discord surfaces progress
// by posting to the same channel via Prompt's caller instead.
func (d *Discord) OnEvent(fn EventFunc) {}

// Prompt sends text to the configured channel and blocks for the next
// human message there.
func (d *Discord) Prompt(ctx context.Context, text string) (string, error) {
	if _, err := d.session.ChannelMessageSend(d.channelID, text); err != nil {
		return "", fmt.Errorf("discord: send prompt: %w", err)
	}

	select {
	case reply := <-d.replies:
		return reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close releases the underlying gateway session.
func (d *Discord) Close() error { return d.session.Close() }
