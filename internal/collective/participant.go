// Package collective implements the Collective Registry: lookup, storage,
// and validation of Participants — the identity shared by humans, agents,
// and scripted mocks that the Communicator addresses by id.
package collective

// Variant tags the kind of Participant.
type Variant string

const (
	VariantAgent Variant = "agent"
	VariantUser  Variant = "user"
	VariantMock  Variant = "mock"
)

// Status is a Participant's lifecycle state. Retirement is reversible
// metadata, not deletion.
type Status string

const (
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
)

// PolicyMode is the two-valued mode of a ToolPolicy.
type PolicyMode string

const (
	PolicyAuto             PolicyMode = "auto"
	PolicyRequiresApproval PolicyMode = "requires_approval"
)

// ToolPolicy governs one tool-name pattern for a Participant.
type ToolPolicy struct {
	Mode PolicyMode `json:"mode" yaml:"mode"`
	// Approver, if set, is the participant id that must approve instead of
	// falling back to the chain-derived default.
	Approver string `json:"approver,omitempty" yaml:"approver,omitempty"`
}

// PolicyEntry pairs a tool-name pattern with its ToolPolicy. Policies are
// stored as an ordered slice, not a map, because the Authorization
// Engine's glob resolution is insertion-order-sensitive (spec §4.4).
type PolicyEntry struct {
	Pattern string     `json:"pattern" yaml:"pattern"`
	Policy  ToolPolicy `json:"policy" yaml:"policy"`
}

// ApprovalAuthority describes who a Participant may approve on behalf of.
// Exactly one of Wildcard or Patterns is meaningful; an empty value means
// the participant cannot approve anything.
type ApprovalAuthority struct {
	Wildcard bool     `json:"wildcard,omitempty" yaml:"wildcard,omitempty"`
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
}

// CanApprove reports whether this authority covers requesterID, applying
// the same glob semantics as tool-pattern matching: exact match, then
// prefix-with-trailing-star, then full wildcard.
func (a ApprovalAuthority) CanApprove(requesterID string) bool {
	if a.Wildcard {
		return true
	}
	for _, p := range a.Patterns {
		if matchPattern(p, requesterID) {
			return true
		}
	}
	return false
}

// ModelRef identifies the LLM an agent participant calls.
type ModelRef struct {
	Provider    string   `json:"provider" yaml:"provider"`
	Model       string   `json:"model" yaml:"model"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// RuntimeLimits overrides the Agent Runtime's defaults for one participant.
type RuntimeLimits struct {
	MaxIterations *int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	MaxDepth      *int `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
}

// ScriptedResponse is one trigger/reply pair for a mock participant.
// Matching is case-insensitive substring; "*" matches anything.
type ScriptedResponse struct {
	Trigger string `json:"trigger" yaml:"trigger"`
	Reply   string `json:"reply" yaml:"reply"`
}

// Participant is the identity shared by humans, agents, and mocks.
type Participant struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Variant     Variant  `json:"variant" yaml:"variant"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tools       []string `json:"tools,omitempty" yaml:"tools,omitempty"`

	Policies  []PolicyEntry     `json:"policies,omitempty" yaml:"policies,omitempty"`
	Authority ApprovalAuthority `json:"approval_authority,omitempty" yaml:"approval_authority,omitempty"`
	Status    Status            `json:"status" yaml:"status"`

	// Agent-only.
	SystemPrompt  string         `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Model         *ModelRef      `json:"model,omitempty" yaml:"model,omitempty"`
	RuntimeLimits *RuntimeLimits `json:"runtime_limits,omitempty" yaml:"runtime_limits,omitempty"`

	// User-only.
	Medium string `json:"medium,omitempty" yaml:"medium,omitempty"`

	// Mock-only.
	ScriptedResponses []ScriptedResponse `json:"scripted_responses,omitempty" yaml:"scripted_responses,omitempty"`
}

// GrantsAllTools reports whether this participant's tool list includes the
// wildcard, short-circuiting the intersection computed by the Tool
// Registry's effective-set rule.
func (p *Participant) GrantsAllTools() bool {
	for _, t := range p.Tools {
		if t == "*" {
			return true
		}
	}
	return false
}

// IsActive reports whether the participant may be dispatched to.
func (p *Participant) IsActive() bool {
	return p.Status != StatusRetired
}

// PolicyFor returns the ToolPolicy governing toolName, applying the
// Authorization Engine's resolution order: exact match first, then glob
// patterns in insertion order (exact string, prefix-star, full wildcard).
// The second return value reports whether any policy matched.
func (p *Participant) PolicyFor(toolName string) (ToolPolicy, bool) {
	for _, e := range p.Policies {
		if e.Pattern == toolName {
			return e.Policy, true
		}
	}
	for _, e := range p.Policies {
		if e.Pattern == toolName {
			continue
		}
		if matchPattern(e.Pattern, toolName) {
			return e.Policy, true
		}
	}
	return ToolPolicy{}, false
}

// matchPattern implements the core's glob semantics: exact string,
// prefix-with-trailing-star (e.g. "file_*"), or the full wildcard "*".
func matchPattern(pattern, name string) bool {
	if pattern == name {
		return true
	}
	if pattern == "*" {
		return true
	}
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(name) >= len(prefix) && name[:len(prefix)] == prefix
	}
	return false
}
