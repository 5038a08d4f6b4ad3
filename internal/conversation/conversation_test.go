package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legionai/legion/pkg/models"
)

func TestID_DeterministicAndDirectional(t *testing.T) {
	a := ID("user", "agent-a", "default")
	b := ID("user", "agent-a", "default")
	assert.Equal(t, a, b)

	reverse := ID("agent-a", "user", "default")
	assert.NotEqual(t, a, reverse)
}

func TestID_DefaultsName(t *testing.T) {
	assert.Equal(t, ID("a", "b", ""), ID("a", "b", DefaultName))
}

func TestConversation_RoleByDirectionality(t *testing.T) {
	c := New("user", "agent-a", "")

	userMsg := c.Append("user", []models.Block{models.TextBlock("hello")})
	assert.Equal(t, models.RoleUser, userMsg.Role)

	agentMsg := c.Append("agent-a", []models.Block{models.TextBlock("hi")})
	assert.Equal(t, models.RoleAssistant, agentMsg.Role)
}

func TestConversation_ToolResultsOnlyAreAlwaysUserRole(t *testing.T) {
	c := New("user", "agent-a", "")

	// Even though the responder (agent-a) is not the initiator, a
	// tool-results-only message is role user regardless of author.
	msg := c.Append("agent-a", []models.Block{
		models.ToolResultBlock(models.ToolResult{ToolCallID: "tc-1", Content: "ok"}),
	})
	assert.Equal(t, models.RoleUser, msg.Role)
}

func TestConversation_MessagesReturnsDefensiveCopy(t *testing.T) {
	c := New("user", "agent-a", "")
	c.Append("user", []models.Block{models.TextBlock("hello")})

	msgs := c.Messages()
	msgs[0].Content[0].Text = "mutated"

	again := c.Messages()
	assert.Equal(t, "hello", again[0].Content[0].Text)
}

func TestConversation_AssertToolOrdering_Valid(t *testing.T) {
	c := New("user", "agent-a", "")
	c.Append("user", []models.Block{models.TextBlock("read foo")})
	c.Append("agent-a", []models.Block{
		models.ToolCallBlock(models.ToolCall{ID: "tc-1", Name: "file_read", Input: json.RawMessage(`{}`)}),
	})
	c.Append("agent-a", []models.Block{
		models.ToolResultBlock(models.ToolResult{ToolCallID: "tc-1", Content: "contents"}),
	})

	require.NoError(t, c.AssertToolOrdering())
}

func TestConversation_AssertToolOrdering_MissingResult(t *testing.T) {
	c := New("user", "agent-a", "")
	c.Append("agent-a", []models.Block{
		models.ToolCallBlock(models.ToolCall{ID: "tc-1", Name: "file_read"}),
	})

	err := c.AssertToolOrdering()
	assert.Error(t, err)
}

func TestConversation_AssertToolOrdering_WrongOrder(t *testing.T) {
	c := New("user", "agent-a", "")
	c.Append("agent-a", []models.Block{
		models.ToolCallBlock(models.ToolCall{ID: "tc-1"}),
		models.ToolCallBlock(models.ToolCall{ID: "tc-2"}),
	})
	c.Append("agent-a", []models.Block{
		models.ToolResultBlock(models.ToolResult{ToolCallID: "tc-2"}),
		models.ToolResultBlock(models.ToolResult{ToolCallID: "tc-1"}),
	})

	assert.Error(t, c.AssertToolOrdering())
}
