// Package session implements Session: a bounded working unit containing
// zero or more Conversations, created at the start of a working unit and
// persisted continuously until closed.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/legionai/legion/internal/conversation"
	"github.com/legionai/legion/pkg/models"
)

// Session is a collection of Conversations representing one working unit.
// Conversations are created lazily on first send and looked up by their
// deterministic (initiator, responder, name) id.
type Session struct {
	id        string
	createdAt time.Time

	mu            sync.RWMutex
	conversations map[string]*conversation.Conversation
}

// New creates an empty Session.
func New() *Session {
	return &Session{
		id:            uuid.NewString(),
		createdAt:     time.Now().UTC(),
		conversations: make(map[string]*conversation.Conversation),
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Conversation returns the directional conversation (initiator, responder,
// name), creating it if this is the first reference.
func (s *Session) Conversation(initiator, responder, name string) *conversation.Conversation {
	if name == "" {
		name = conversation.DefaultName
	}
	id := conversation.ID(initiator, responder, name)

	s.mu.RLock()
	c, ok := s.conversations[id]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[id]; ok {
		return c
	}
	c = conversation.New(initiator, responder, name)
	s.conversations[id] = c
	return c
}

// Conversations returns every conversation created in this session so far.
func (s *Session) Conversations() []*conversation.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*conversation.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	return out
}

// Send appends a text message authored by from into the (from, to, name)
// conversation, creating it if needed. This is the primitive the
// Communicator builds its full dispatch procedure on top of; called
// directly it only logs the message, without awaiting or producing a
// reply.
func (s *Session) Send(from, to, text, name string) models.Message {
	c := s.Conversation(from, to, name)
	return c.Append(from, []models.Block{models.TextBlock(text)})
}
