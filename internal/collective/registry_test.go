package collective

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legionai/legion/pkg/models"
)

func TestRegistry_SaveAndGet(t *testing.T) {
	r := NewRegistry()

	err := r.Save(&Participant{
		ID:      "agent-a",
		Name:    "Agent A",
		Variant: VariantAgent,
		Tools:   []string{"*"},
	})
	require.NoError(t, err)

	got, ok := r.Get("agent-a")
	require.True(t, ok)
	assert.Equal(t, "Agent A", got.Name)
	assert.Equal(t, StatusActive, got.Status)
}

func TestRegistry_SaveRejectsInvalidConfig(t *testing.T) {
	r := NewRegistry()

	err := r.Save(&Participant{ID: "bad", Name: "Bad", Variant: "not-a-real-variant"})
	assert.Error(t, err)

	_, ok := r.Get("bad")
	assert.False(t, ok)
}

func TestRegistry_GetReturnsDefensiveCopy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Save(&Participant{ID: "a", Name: "A", Variant: VariantMock}))

	got, _ := r.Get("a")
	got.Name = "mutated"

	again, _ := r.Get("a")
	assert.Equal(t, "A", again.Name)
}

func TestRegistry_RetireProtectedFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Save(&Participant{ID: "user", Name: "Human", Variant: VariantUser}))

	err := r.Retire("user")
	assert.Error(t, err)
}

func TestRegistry_RetireThenRestorePreservesConfig(t *testing.T) {
	r := NewRegistry()
	original := &Participant{
		ID:          "agent-b",
		Name:        "Agent B",
		Variant:     VariantAgent,
		Description: "does things",
		Tools:       []string{"file_read"},
	}
	require.NoError(t, r.Save(original))

	require.NoError(t, r.Retire("agent-b"))
	retired, _ := r.Get("agent-b")
	assert.Equal(t, StatusRetired, retired.Status)
	assert.False(t, retired.IsActive())

	// Re-saving with the original fields (un-retiring) preserves config.
	original.Status = StatusActive
	require.NoError(t, r.Save(original))
	restored, _ := r.Get("agent-b")
	assert.Equal(t, StatusActive, restored.Status)
	assert.Equal(t, "does things", restored.Description)
	assert.Equal(t, []string{"file_read"}, restored.Tools)
}

func TestRegistry_ListFiltersByVariantAndActive(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Save(&Participant{ID: "a1", Name: "A1", Variant: VariantAgent}))
	require.NoError(t, r.Save(&Participant{ID: "a2", Name: "A2", Variant: VariantAgent}))
	require.NoError(t, r.Save(&Participant{ID: "m1", Name: "M1", Variant: VariantMock}))
	require.NoError(t, r.Retire("a2"))

	agents := r.List(Filter{Variant: VariantAgent})
	assert.Len(t, agents, 2)

	activeAgents := r.List(Filter{Variant: VariantAgent, ActiveOnly: true})
	assert.Len(t, activeAgents, 1)
	assert.Equal(t, "a1", activeAgents[0].ID)
}

func TestParticipant_PolicyForResolutionOrder(t *testing.T) {
	p := &Participant{
		ID:      "agent-c",
		Variant: VariantAgent,
		Policies: []PolicyEntry{
			{Pattern: "file_write", Policy: ToolPolicy{Mode: PolicyRequiresApproval}},
			{Pattern: "file_*", Policy: ToolPolicy{Mode: PolicyAuto}},
			{Pattern: "*", Policy: ToolPolicy{Mode: PolicyRequiresApproval}},
		},
	}

	exact, ok := p.PolicyFor("file_write")
	require.True(t, ok)
	assert.Equal(t, PolicyRequiresApproval, exact.Mode)

	prefixed, ok := p.PolicyFor("file_read")
	require.True(t, ok)
	assert.Equal(t, PolicyAuto, prefixed.Mode)

	wildcard, ok := p.PolicyFor("web_search")
	require.True(t, ok)
	assert.Equal(t, PolicyRequiresApproval, wildcard.Mode)
}

func TestParticipant_PolicyForDefaultsToNoMatch(t *testing.T) {
	p := &Participant{ID: "agent-d", Variant: VariantAgent}
	_, ok := p.PolicyFor("anything")
	assert.False(t, ok)
}

func TestApprovalAuthority_CanApprove(t *testing.T) {
	wildcard := ApprovalAuthority{Wildcard: true}
	assert.True(t, wildcard.CanApprove("anyone"))

	patterned := ApprovalAuthority{Patterns: []string{"agent-*"}}
	assert.True(t, patterned.CanApprove("agent-a"))
	assert.False(t, patterned.CanApprove("user"))

	empty := ApprovalAuthority{}
	assert.False(t, empty.CanApprove("agent-a"))
}

func TestParticipant_GrantsAllTools(t *testing.T) {
	withWildcard := &Participant{Tools: []string{"file_read", "*"}}
	assert.True(t, withWildcard.GrantsAllTools())

	withoutWildcard := &Participant{Tools: []string{"file_read"}}
	assert.False(t, withoutWildcard.GrantsAllTools())
}

func TestRegistry_EventPublisherReceivesSaveEvents(t *testing.T) {
	var captured []models.Event
	pub := publisherFunc(func(e models.Event) { captured = append(captured, e) })

	r := NewRegistry(WithEventPublisher(pub))
	require.NoError(t, r.Save(&Participant{ID: "agent-e", Name: "E", Variant: VariantAgent}))

	require.Len(t, captured, 1)
	assert.Equal(t, models.EventParticipantChanged, captured[0].Type)
	require.NotNil(t, captured[0].ParticipantChanged)
	assert.Equal(t, "agent-e", captured[0].ParticipantChanged.ParticipantID)
	assert.Equal(t, "saved", captured[0].ParticipantChanged.Action)
}

type publisherFunc func(models.Event)

func (f publisherFunc) Publish(e models.Event) { f(e) }
