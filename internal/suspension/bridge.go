// Package suspension implements the Suspension Bridge: a single-shot
// promise-style rendezvous between the Tool Executor (producer) and the
// Communicator (consumer) for one batch of pending approvals.
package suspension

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/legionai/legion/internal/legionerr"
)

// PendingItem is one tool-call awaiting approval.
type PendingItem struct {
	ToolCallID string
	ToolName   string
	Input      json.RawMessage
	Approver   string
}

// Batch is the set of pending items submitted in a single rendezvous.
type Batch struct {
	Items []PendingItem
}

// Decision is the approver's verdict on one item.
type Decision struct {
	Approved bool
	Reason   string
}

// DecisionMap maps tool-call id to Decision, covering every item in the
// Batch it resolves.
type DecisionMap map[string]Decision

// Resolver fulfills the Executor's pending future with decisions for every
// item in the batch it was handed.
type Resolver func(DecisionMap)

// pendingRequest's resultCh is fulfilled at most once, guarded by once —
// either by a real Resolver call, by Close's no-approver fallback, or by
// the bridge's TTL expiry, whichever happens first.
type pendingRequest struct {
	batch    Batch
	resultCh chan DecisionMap
	once     sync.Once
}

func (r *pendingRequest) deliver(d DecisionMap) {
	r.once.Do(func() { r.resultCh <- d })
}

// Bridge is a single-shot rendezvous: at most one batch is ever submitted
// through RequestApproval, and at most one observer ever picks it up
// through WaitForSignal.
type Bridge struct {
	mu      sync.Mutex
	pending chan *pendingRequest
	current *pendingRequest
	closed  bool
	ttl     time.Duration
}

// New creates a Bridge ready to carry exactly one approval batch, with no
// request TTL: RequestApproval waits until ctx is done or a resolver fires.
func New() *Bridge {
	return &Bridge{pending: make(chan *pendingRequest, 1)}
}

// NewWithTTL creates a Bridge that auto-rejects its one batch with a
// KindSuspension error ttl after RequestApproval publishes it, if no
// resolver has fulfilled it by then. A zero ttl behaves like New.
func NewWithTTL(ttl time.Duration) *Bridge {
	return &Bridge{pending: make(chan *pendingRequest, 1), ttl: ttl}
}

// RequestApproval is the Executor-facing surface: it publishes batch and
// blocks until a resolver fulfills it, the context is cancelled, the
// bridge's TTL (if any) elapses, or the bridge is closed with no observer
// ever having attached (in which case it returns a synthesized "no
// approver" rejection for every item).
func (b *Bridge) RequestApproval(ctx context.Context, batch Batch) (DecisionMap, error) {
	req := &pendingRequest{batch: batch, resultCh: make(chan DecisionMap, 1)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, legionerr.SuspensionErr("", "bridge already closed")
	}
	select {
	case b.pending <- req:
		b.current = req
	default:
		b.mu.Unlock()
		return nil, legionerr.SuspensionErr("", "bridge already has a pending batch")
	}
	b.mu.Unlock()

	if b.ttl > 0 {
		timer := time.AfterFunc(b.ttl, func() {
			req.deliver(rejectAll(batch, "approval request TTL expired"))
		})
		defer timer.Stop()
	}

	select {
	case decisions := <-req.resultCh:
		return decisions, nil
	case <-ctx.Done():
		return nil, legionerr.Wrap(legionerr.KindCancelled, ctx.Err(), "approval wait cancelled")
	}
}

// WaitForSignal is the Communicator-facing surface: it blocks until a
// batch is published or ctx is done. The returned Resolver, when called,
// fulfills the Executor's RequestApproval future — unless the bridge's TTL
// already rejected it first, in which case the decisions passed to
// Resolver are silently dropped, matching a request that timed out before
// its approver responded.
func (b *Bridge) WaitForSignal(ctx context.Context) (Batch, Resolver, bool) {
	select {
	case req := <-b.pending:
		return req.batch, req.deliver, true
	case <-ctx.Done():
		return Batch{}, nil, false
	}
}

// Close releases the bridge. If a batch was published but no observer ever
// attached via WaitForSignal, the pending RequestApproval call is
// unblocked with a synthesized rejection for every item — the bridge's
// "no approver" fallback for misconfiguration. Close is idempotent.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	select {
	case req := <-b.pending:
		req.deliver(rejectAll(req.batch, "no approver"))
	default:
		if b.current != nil {
			b.current.deliver(rejectAll(b.current.batch, "no approver"))
		}
	}
}

func rejectAll(batch Batch, reason string) DecisionMap {
	decisions := make(DecisionMap, len(batch.Items))
	for _, item := range batch.Items {
		decisions[item.ToolCallID] = Decision{Approved: false, Reason: reason}
	}
	return decisions
}
