package medium

import (
	"context"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// SlackConfig configures a Slack-backed Medium.
type SlackConfig struct {
	BotToken string // xoxb-...
	AppToken string // xapp-..., Socket Mode
	Channel  string // channel or DM id the human replies in
}

// Slack implements Medium by posting a prompt to a channel over the Web
// API and waiting for the human's next message there via Socket Mode,
// the same transport the teacher's channel adapter listens on.
type Slack struct {
	client       *slack.Client
	socketClient *socketmode.Client
	channel      string

	mu      sync.Mutex
	replies chan string
	onEvent EventFunc
	started bool
}

// NewSlack builds a Slack Medium. Call Start before the first Prompt.
func NewSlack(cfg SlackConfig) *Slack {
	client := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	socketClient := socketmode.New(client, socketmode.OptionDebug(false))
	return &Slack{
		client:       client,
		socketClient: socketClient,
		channel:      cfg.Channel,
		replies:      make(chan string, 1),
	}
}

// Start connects the Socket Mode event loop that feeds reply text into
// Prompt's waiters. It must be called once before Prompt is used.
func (s *Slack) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	go s.pump(ctx)
	go func() {
		_ = s.socketClient.Run()
	}()
	return nil
}

func (s *Slack) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-s.socketClient.Events:
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			s.socketClient.Ack(*evt.Request)

			inner, ok := eventsAPI.InnerEvent.Data.(*slackevents.MessageEvent)
			if !ok || inner.Channel != s.channel || inner.BotID != "" {
				continue
			}
			select {
			case s.replies <- inner.Text:
			default:
			}
		}
	}
}

// OnEvent registers a background-progress callback.
func (s *Slack) OnEvent(fn EventFunc) { s.onEvent = fn }

// Prompt posts text to the configured channel and blocks for the human's
// next message there.
func (s *Slack) Prompt(ctx context.Context, text string) (string, error) {
	if _, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false)); err != nil {
		return "", fmt.Errorf("slack: post prompt: %w", err)
	}

	select {
	case reply := <-s.replies:
		return reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
