package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Constants(t *testing.T) {
	assert.Equal(t, Role("user"), RoleUser)
	assert.Equal(t, Role("assistant"), RoleAssistant)
}

func TestMessage_TextConcatenatesTextBlocks(t *testing.T) {
	msg := Message{
		Content: []Block{
			TextBlock("hello "),
			ToolCallBlock(ToolCall{ID: "tc-1", Name: "search"}),
			TextBlock("world"),
		},
	}
	assert.Equal(t, "hello world", msg.Text())
}

func TestMessage_ToolCallsAndResults(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Content: []Block{
			TextBlock("let me check"),
			ToolCallBlock(ToolCall{ID: "tc-1", Name: "file_read", Input: json.RawMessage(`{"path":"foo"}`)}),
			ToolCallBlock(ToolCall{ID: "tc-2", Name: "file_read", Input: json.RawMessage(`{"path":"bar"}`)}),
		},
	}

	require.True(t, msg.HasToolCalls())
	calls := msg.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "tc-1", calls[0].ID)
	assert.Equal(t, "tc-2", calls[1].ID)
	assert.Empty(t, msg.ToolResults())

	resultMsg := Message{
		Role: RoleUser,
		Content: []Block{
			ToolResultBlock(ToolResult{ToolCallID: "tc-1", Content: "content-of-foo"}),
			ToolResultBlock(ToolResult{ToolCallID: "tc-2", Content: "no such file", IsError: true}),
		},
	}
	assert.False(t, resultMsg.HasToolCalls())
	results := resultMsg.ToolResults()
	require.Len(t, results, 2)
	assert.False(t, results[0].IsError)
	assert.True(t, results[1].IsError)
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	original := Message{
		ID:     "msg-1",
		Author: "agent-a",
		Role:   RoleAssistant,
		Content: []Block{
			TextBlock("checking now"),
			ToolCallBlock(ToolCall{ID: "tc-1", Name: "file_read", Input: json.RawMessage(`{"path":"foo"}`)}),
		},
		CreatedAt: now,
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.Author, decoded.Author)
	assert.Equal(t, original.Role, decoded.Role)
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
	require.Len(t, decoded.Content, 2)
	assert.Equal(t, BlockText, decoded.Content[0].Type)
	assert.Equal(t, BlockToolCall, decoded.Content[1].Type)
	require.NotNil(t, decoded.Content[1].ToolCall)
	assert.Equal(t, "tc-1", decoded.Content[1].ToolCall.ID)
}

func TestToolResult_ErrorFlag(t *testing.T) {
	ok := ToolResult{ToolCallID: "tc-1", Content: "fine"}
	assert.False(t, ok.IsError)

	failed := ToolResult{ToolCallID: "tc-2", Content: "boom", IsError: true}
	assert.True(t, failed.IsError)
}
