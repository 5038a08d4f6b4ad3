// Package conversation implements the Conversation Log: a directional,
// append-only message history between two participants.
package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/legionai/legion/internal/legionerr"
	"github.com/legionai/legion/pkg/models"
)

// DefaultName is used when a caller does not name a conversation.
const DefaultName = "default"

// ID computes the deterministic, collision-free, order-preserving id for a
// directional conversation between initiator and responder under name.
// id(a, b, n) == id(a, b, n) across runs; id(a, b, n) != id(b, a, n).
func ID(initiator, responder, name string) string {
	if name == "" {
		name = DefaultName
	}
	h := sha256.New()
	// A length-prefixed separator keeps the function collision-free even
	// when a participant id itself contains the delimiter byte.
	fmt.Fprintf(h, "%d:%s|%d:%s|%d:%s", len(initiator), initiator, len(responder), responder, len(name), name)
	return hex.EncodeToString(h.Sum(nil))
}

// Conversation is a directional, append-only log between two participants.
// Appends are single-writer: a per-Conversation mutex enforces that while
// one dispatch is appending, no other task may append concurrently.
type Conversation struct {
	id        string
	initiator string
	responder string
	name      string

	mu       sync.Mutex
	messages []models.Message
}

// New creates a Conversation for (initiator, responder, name). Callers
// normally obtain Conversations through a Session, which handles
// lazy-creation and lookup by deterministic id.
func New(initiator, responder, name string) *Conversation {
	if name == "" {
		name = DefaultName
	}
	return &Conversation{
		id:        ID(initiator, responder, name),
		initiator: initiator,
		responder: responder,
		name:      name,
	}
}

func (c *Conversation) ID() string        { return c.id }
func (c *Conversation) Initiator() string { return c.initiator }
func (c *Conversation) Responder() string { return c.responder }
func (c *Conversation) Name() string      { return c.name }

// roleFor implements the directionality rule: messages authored by the
// initiator are role user; messages authored by the responder are role
// assistant; messages whose content is only tool-results are role user
// regardless of author.
func (c *Conversation) roleFor(author string, content []models.Block) models.Role {
	if isToolResultsOnly(content) {
		return models.RoleUser
	}
	if author == c.initiator {
		return models.RoleUser
	}
	return models.RoleAssistant
}

func isToolResultsOnly(content []models.Block) bool {
	if len(content) == 0 {
		return false
	}
	for _, b := range content {
		if b.Type != models.BlockToolResult {
			return false
		}
	}
	return true
}

// Append assigns a role by the directionality rule and appends a new
// Message to the log. It is the sole mutation path; Messages are never
// mutated after append.
func (c *Conversation) Append(author string, content []models.Block) models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := models.Message{
		ID:        uuid.NewString(),
		Author:    author,
		Role:      c.roleFor(author, content),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	c.messages = append(c.messages, msg)
	return msg
}

// Messages returns an ordered, defensive-copy view of the log.
func (c *Conversation) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len reports the number of messages appended so far.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// AssertToolOrdering validates the tool-ordering invariant over the whole
// log: every assistant message with tool-calls {t_1..t_k} must be
// immediately followed by a user message whose tool-results are exactly
// {t_1..t_k} by id, in order. The Log itself only asserts this on close;
// the Agent Runtime is the normative enforcer during a live dispatch.
func (c *Conversation) AssertToolOrdering() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, msg := range c.messages {
		calls := msg.ToolCalls()
		if len(calls) == 0 {
			continue
		}
		if i+1 >= len(c.messages) {
			return legionerr.New(legionerr.KindTool, fmt.Sprintf(
				"conversation %s: assistant message %d has %d tool-calls with no following result message",
				c.id, i, len(calls)))
		}
		next := c.messages[i+1]
		if next.Role != models.RoleUser {
			return legionerr.New(legionerr.KindTool, fmt.Sprintf(
				"conversation %s: message %d following tool-calls is not role user", c.id, i+1))
		}
		results := next.ToolResults()
		if len(results) != len(calls) {
			return legionerr.New(legionerr.KindTool, fmt.Sprintf(
				"conversation %s: message %d has %d tool-calls but following message has %d tool-results",
				c.id, i, len(calls), len(results)))
		}
		for j, call := range calls {
			if results[j].ToolCallID != call.ID {
				return legionerr.New(legionerr.KindTool, fmt.Sprintf(
					"conversation %s: tool-result order mismatch at message %d: want %s got %s",
					c.id, i+1, call.ID, results[j].ToolCallID))
			}
		}
	}
	return nil
}
