// Package policy implements the Authorization Engine: per-tool policy
// evaluation and approver resolution from the communication chain.
package policy

import (
	"github.com/legionai/legion/internal/collective"
)

// DecisionKind is the three-valued outcome of Evaluate.
type DecisionKind string

const (
	Allowed         DecisionKind = "allowed"
	Denied          DecisionKind = "denied"
	PendingApproval DecisionKind = "pending_approval"
)

// Decision is the Authorization Engine's verdict for one tool-call.
type Decision struct {
	Kind     DecisionKind
	Reason   string
	Approver string // populated only when Kind == PendingApproval
}

// Registry is the subset of the Collective Registry the engine needs to
// resolve a fallback approver.
type Registry interface {
	Get(id string) (*collective.Participant, bool)
	List(filter collective.Filter) []*collective.Participant
}

// Evaluate computes the authorization decision for participant invoking
// tool, given the active communication chain (outermost first, immediate
// sender last). Resolution order (spec §4.4):
//
//  1. Exact match of tool in the participant's policies.
//  2. Otherwise, glob patterns in insertion order (prefix-star, then "*").
//  3. If nothing matches, default to Allowed.
func Evaluate(p *collective.Participant, registry Registry, tool string, chain []string) Decision {
	toolPolicy, matched := p.PolicyFor(tool)
	if !matched {
		return Decision{Kind: Allowed}
	}
	if toolPolicy.Mode == collective.PolicyAuto {
		return Decision{Kind: Allowed}
	}

	approver, ok := resolveApprover(toolPolicy, registry, chain)
	if !ok {
		return Decision{Kind: Denied, Reason: "no approver"}
	}
	return Decision{Kind: PendingApproval, Approver: approver}
}

// resolveApprover picks the explicit policy approver if set; else the
// immediate sender (top of the chain); else the first user participant
// found in the registry.
func resolveApprover(p collective.ToolPolicy, registry Registry, chain []string) (string, bool) {
	if p.Approver != "" {
		return p.Approver, true
	}
	if len(chain) > 0 {
		return chain[len(chain)-1], true
	}
	for _, participant := range registry.List(collective.Filter{Variant: collective.VariantUser, ActiveOnly: true}) {
		return participant.ID, true
	}
	return "", false
}

// CanApprove applies the same glob semantics as tool-pattern matching over
// the approver's ApprovalAuthority.
func CanApprove(registry Registry, approverID, requesterID string) bool {
	approver, ok := registry.Get(approverID)
	if !ok {
		return false
	}
	return approver.Authority.CanApprove(requesterID)
}
