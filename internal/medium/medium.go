// Package medium implements the abstract Medium a user Participant is
// delivered messages through: prompt(text) -> reply, plus an optional
// callback for background-event display while a reply is awaited.
package medium

import "context"

// EventFunc is invoked with human-readable background events (e.g.
// "waiting for approval on file_write") while a Medium awaits a reply.
// Implementations may use it to post progress to the underlying channel.
type EventFunc func(event string)

// Medium delivers a prompt to a human participant and awaits their
// textual reply. A single operation, by design (spec §4.8): transport
// specifics (Slack, Discord, Telegram, a test double) live behind it.
type Medium interface {
	// Prompt delivers text and blocks until the participant replies or
	// ctx is done.
	Prompt(ctx context.Context, text string) (string, error)
}

// WithEvents is satisfied by a Medium that also accepts a progress
// callback; Communicator dispatch checks for it opportunistically.
type WithEvents interface {
	Medium
	OnEvent(fn EventFunc)
}
