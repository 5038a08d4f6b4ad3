package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legionai/legion/internal/collective"
	"github.com/legionai/legion/internal/suspension"
	"github.com/legionai/legion/pkg/models"
)

type echoTool struct{ name string }

func (e echoTool) Name() string           { return e.name }
func (e echoTool) Definition() Definition { return Definition{Name: e.name} }
func (e echoTool) Execute(_ context.Context, input json.RawMessage, _ ExecContext) (string, error) {
	return string(input), nil
}

func newExecutorFixture(t *testing.T) (*Executor, *collective.Registry) {
	t.Helper()
	toolReg := NewRegistry()
	require.NoError(t, toolReg.Register(echoTool{name: "echo"}))
	collectiveReg := collective.NewRegistry()
	return NewExecutor(toolReg), collectiveReg
}

func TestExecutor_UnknownToolProducesErrorResult(t *testing.T) {
	exec, collectiveReg := newExecutorFixture(t)
	participant := &collective.Participant{ID: "agent-a", Tools: []string{"*"}}
	require.NoError(t, collectiveReg.Save(participant))

	calls := []models.ToolCall{{ID: "tc-1", Name: "nonexistent", Input: json.RawMessage(`{}`)}}
	results := exec.Execute(context.Background(), calls, participant, collectiveReg, nil, suspension.New(), ExecContext{})

	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
	assert.Equal(t, "tc-1", results[0].ToolCallID)
}

func TestExecutor_AutoAllowedExecutes(t *testing.T) {
	exec, collectiveReg := newExecutorFixture(t)
	participant := &collective.Participant{ID: "agent-a", Tools: []string{"*"}}
	require.NoError(t, collectiveReg.Save(participant))

	calls := []models.ToolCall{{ID: "tc-1", Name: "echo", Input: json.RawMessage(`"hi"`)}}
	results := exec.Execute(context.Background(), calls, participant, collectiveReg, nil, suspension.New(), ExecContext{})

	require.Len(t, results, 1)
	assert.False(t, results[0].IsError)
	assert.Equal(t, `"hi"`, results[0].Content)
}

func TestExecutor_RequiresApprovalNoApproverIsDenied(t *testing.T) {
	exec, collectiveReg := newExecutorFixture(t)
	participant := &collective.Participant{
		ID:    "agent-a",
		Tools: []string{"*"},
		Policies: []collective.PolicyEntry{
			{Pattern: "*", Policy: collective.ToolPolicy{Mode: collective.PolicyRequiresApproval}},
		},
	}
	require.NoError(t, collectiveReg.Save(participant))

	calls := []models.ToolCall{{ID: "tc-1", Name: "echo", Input: json.RawMessage(`"hi"`)}}
	results := exec.Execute(context.Background(), calls, participant, collectiveReg, nil, suspension.New(), ExecContext{})

	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
}

func TestExecutor_PendingApprovalApprovedRuns(t *testing.T) {
	exec, collectiveReg := newExecutorFixture(t)
	participant := &collective.Participant{
		ID:    "agent-a",
		Tools: []string{"*"},
		Policies: []collective.PolicyEntry{
			{Pattern: "*", Policy: collective.ToolPolicy{Mode: collective.PolicyRequiresApproval}},
		},
	}
	require.NoError(t, collectiveReg.Save(participant))

	bridge := suspension.New()
	calls := []models.ToolCall{{ID: "tc-1", Name: "echo", Input: json.RawMessage(`"hi"`)}}

	resultsCh := make(chan []models.ToolResult, 1)
	go func() {
		resultsCh <- exec.Execute(context.Background(), calls, participant, collectiveReg, []string{"user"}, bridge, ExecContext{})
	}()

	batch, resolver, ok := bridge.WaitForSignal(context.Background())
	require.True(t, ok)
	require.Len(t, batch.Items, 1)
	resolver(suspension.DecisionMap{"tc-1": {Approved: true}})

	select {
	case results := <-resultsCh:
		require.Len(t, results, 1)
		assert.False(t, results[0].IsError)
		assert.Equal(t, `"hi"`, results[0].Content)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestExecutor_PendingApprovalRejectedIsNonErrorObservation(t *testing.T) {
	exec, collectiveReg := newExecutorFixture(t)
	participant := &collective.Participant{
		ID:    "agent-a",
		Tools: []string{"*"},
		Policies: []collective.PolicyEntry{
			{Pattern: "*", Policy: collective.ToolPolicy{Mode: collective.PolicyRequiresApproval}},
		},
	}
	require.NoError(t, collectiveReg.Save(participant))

	bridge := suspension.New()
	calls := []models.ToolCall{{ID: "tc-1", Name: "echo", Input: json.RawMessage(`"hi"`)}}

	resultsCh := make(chan []models.ToolResult, 1)
	go func() {
		resultsCh <- exec.Execute(context.Background(), calls, participant, collectiveReg, []string{"user"}, bridge, ExecContext{})
	}()

	_, resolver, ok := bridge.WaitForSignal(context.Background())
	require.True(t, ok)
	resolver(suspension.DecisionMap{"tc-1": {Approved: false, Reason: "not now"}})

	select {
	case results := <-resultsCh:
		require.Len(t, results, 1)
		assert.False(t, results[0].IsError)
		assert.Contains(t, results[0].Content, "not now")
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestExecutor_PreservesOrderAndOneResultPerCall(t *testing.T) {
	exec, collectiveReg := newExecutorFixture(t)
	participant := &collective.Participant{ID: "agent-a", Tools: []string{"*"}}
	require.NoError(t, collectiveReg.Save(participant))

	calls := []models.ToolCall{
		{ID: "tc-1", Name: "echo", Input: json.RawMessage(`"a"`)},
		{ID: "tc-2", Name: "nonexistent"},
		{ID: "tc-3", Name: "echo", Input: json.RawMessage(`"c"`)},
	}
	results := exec.Execute(context.Background(), calls, participant, collectiveReg, nil, suspension.New(), ExecContext{})

	require.Len(t, results, 3)
	assert.Equal(t, "tc-1", results[0].ToolCallID)
	assert.Equal(t, "tc-2", results[1].ToolCallID)
	assert.Equal(t, "tc-3", results[2].ToolCallID)
	assert.True(t, results[1].IsError)
}
