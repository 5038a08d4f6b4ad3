// Package communicator implements the Communicator: the universal
// send(from, to, message) -> response operation (spec §4.8) that resolves
// a target Participant, drives its dispatch by variant, and arbitrates
// the approval cascade when a dispatched agent's Executor suspends.
package communicator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/legionai/legion/internal/agentruntime"
	"github.com/legionai/legion/internal/collective"
	"github.com/legionai/legion/internal/conversation"
	"github.com/legionai/legion/internal/legionerr"
	"github.com/legionai/legion/internal/medium"
	"github.com/legionai/legion/internal/session"
	"github.com/legionai/legion/internal/suspension"
	"github.com/legionai/legion/pkg/models"
)

// DefaultMaxDepth is the built-in chain-length ceiling (spec §4.8 step 1).
const DefaultMaxDepth = 10

// EventPublisher is the subset of the Event Bus the Communicator needs.
type EventPublisher interface {
	Publish(models.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(models.Event) {}

// runtimeOutcome is the Agent Runtime's completion future's value.
type runtimeOutcome struct {
	text string
	err  error
}

// Communicator is the universal peer-to-peer tool. One Communicator
// serves one Session: conversations, the pending-approval store, and
// in-flight dispatches are scoped to it.
type Communicator struct {
	collective  *collective.Registry
	session     *session.Session
	runtime     *agentruntime.Runtime
	pending     *PendingApprovalStore
	events      EventPublisher
	maxDepth    int
	approvalTTL time.Duration

	mu      sync.RWMutex
	mediums map[string]medium.Medium // keyed by user Participant id
}

// Config wires a Communicator's dependencies.
type Config struct {
	Collective *collective.Registry
	Session    *session.Session
	Runtime    *agentruntime.Runtime
	Events     EventPublisher
	MaxDepth   int
	// ApprovalTTL bounds how long a dispatched agent's suspended tool
	// calls wait for an approval decision before the Suspension Bridge
	// auto-rejects them. Zero disables the bound (wait indefinitely,
	// subject only to ctx cancellation).
	ApprovalTTL time.Duration
}

// New builds a Communicator.
func New(cfg Config) *Communicator {
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	events := cfg.Events
	if events == nil {
		events = noopPublisher{}
	}
	return &Communicator{
		collective:  cfg.Collective,
		session:     cfg.Session,
		runtime:     cfg.Runtime,
		pending:     NewPendingApprovalStore(),
		events:      events,
		maxDepth:    maxDepth,
		approvalTTL: cfg.ApprovalTTL,
		mediums:     make(map[string]medium.Medium),
	}
}

// newBridge builds the Suspension Bridge a dispatch runs its Agent Runtime
// call against, applying the Communicator's configured approval TTL.
func (c *Communicator) newBridge() *suspension.Bridge {
	if c.approvalTTL > 0 {
		return suspension.NewWithTTL(c.approvalTTL)
	}
	return suspension.New()
}

// RegisterMedium attaches the Medium a user Participant is reached
// through. userID must name a VariantUser Participant.
func (c *Communicator) RegisterMedium(userID string, m medium.Medium) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mediums[userID] = m
}

// Request is one send(from, to, message, ...) invocation.
type Request struct {
	From             string
	To               string
	Text             string
	ConversationName string
	Chain            []string
	ParentBridge     *suspension.Bridge
	// SkipAppend implements the active-conversation shortcut: set when
	// this send is issued by the communicate tool from within the agent
	// runtime turn that already owns the (from, to, name) conversation.
	SkipAppend bool
}

// Send implements the Communicator's universal operation.
func (c *Communicator) Send(ctx context.Context, req Request) (string, error) {
	if len(req.Chain) >= c.maxDepth {
		return "", legionerr.DepthExceeded(req.Chain, c.maxDepth)
	}
	if req.From == req.To {
		return "", legionerr.ParticipantError(req.To, "cannot send to self")
	}

	target, ok := c.collective.Get(req.To)
	if !ok {
		return "", legionerr.ParticipantError(req.To, "unknown participant")
	}
	if !target.IsActive() {
		return "", legionerr.ParticipantError(req.To, "participant is retired")
	}

	conv := c.session.Conversation(req.From, req.To, req.ConversationName)

	if !req.SkipAppend {
		msg := conv.Append(req.From, []models.Block{models.TextBlock(req.Text)})
		c.publishMessageSent(conv.ID(), req.From, req.To, msg)
	}

	var (
		responseText string
		dispatchErr  error
	)

	switch target.Variant {
	case collective.VariantAgent:
		responseText, dispatchErr = c.dispatchAgent(ctx, req, target, conv)
	case collective.VariantUser:
		responseText, dispatchErr = c.dispatchUser(ctx, req, target)
	case collective.VariantMock:
		responseText, dispatchErr = c.dispatchMock(req.Text, target)
	default:
		dispatchErr = legionerr.ParticipantError(req.To, "unsupported participant variant")
	}

	if dispatchErr != nil {
		return "", dispatchErr
	}

	if !req.SkipAppend {
		msg := conv.Append(req.To, []models.Block{models.TextBlock(responseText)})
		c.publishMessageSent(conv.ID(), req.To, req.From, msg)
	}

	return responseText, nil
}

func (c *Communicator) publishMessageSent(convID, from, to string, msg models.Message) {
	c.events.Publish(models.Event{
		Type: models.EventMessageSent,
		MessageSent: &models.MessageSentPayload{
			ConversationID: convID,
			From:           from,
			To:             to,
			Role:           msg.Role,
			Text:           msg.Text(),
		},
	})
}

// dispatchUser delivers req.Text through the target's registered Medium
// and awaits a textual reply.
func (c *Communicator) dispatchUser(ctx context.Context, req Request, target *collective.Participant) (string, error) {
	c.mu.RLock()
	m, ok := c.mediums[target.ID]
	c.mu.RUnlock()
	if !ok {
		return "", legionerr.ParticipantError(target.ID, "no medium registered for user participant")
	}

	reply, err := m.Prompt(ctx, req.Text)
	if err != nil {
		return "", legionerr.Wrap(legionerr.KindParticipant, err, "medium prompt failed")
	}
	return reply, nil
}

// dispatchMock matches text against target's scripted triggers: the
// first case-insensitive substring match wins, "*" matches anything, and
// an unmatched prompt yields a deterministic "no match" message.
func (c *Communicator) dispatchMock(text string, target *collective.Participant) (string, error) {
	lower := strings.ToLower(text)
	for _, sr := range target.ScriptedResponses {
		if sr.Trigger == "*" || strings.Contains(lower, strings.ToLower(sr.Trigger)) {
			return sr.Reply, nil
		}
	}
	return fmt.Sprintf("no scripted response matched %q", text), nil
}

// dispatchAgent pushes req.From onto the chain, spawns the Agent Runtime
// on a fresh Suspension Bridge, and races its completion against any
// approval suspensions until the dispatch resolves or parks.
func (c *Communicator) dispatchAgent(ctx context.Context, req Request, target *collective.Participant, conv *conversation.Conversation) (string, error) {
	bridge := c.newBridge()
	newChain := pushChain(req.Chain, req.From)

	runtimeDone := make(chan runtimeOutcome, 1)
	go func() {
		text, err := c.runtime.Run(ctx, target, conv, newChain, bridge, c.session.ID())
		runtimeDone <- runtimeOutcome{text: text, err: err}
	}()

	out := c.raceBridge(ctx, bridge, runtimeDone, req.From, target, newChain, conv, req.ParentBridge)
	return out.text, out.err
}

// ResolveApproval implements the resolve_approval tool's effect (spec
// §6): it fulfills a parked request's decisions and resumes racing the
// inner dispatch exactly as dispatchAgent would have, so a further
// suspension parks a fresh request id rather than deadlocking.
func (c *Communicator) ResolveApproval(ctx context.Context, requestID string, decisions suspension.DecisionMap) (string, error) {
	entry, ok := c.pending.take(requestID)
	if !ok {
		return "", legionerr.SuspensionErr(requestID, "unknown or already-resolved request id")
	}

	entry.resolver(decisions)
	c.publishResolved(requestID, decisions)

	out := c.raceBridge(ctx, entry.bridge, entry.runtimeDone, entry.immediateSender, entry.requester, entry.chain, entry.conv, nil)
	return out.text, out.err
}

// raceOutcome is raceBridge's result: either a completed/failed dispatch,
// or a parked one awaiting resolve_approval, identified by RequestID.
type raceOutcome struct {
	text      string
	err       error
	parked    bool
	requestID string
}

// raceBridge is the promise-race loop shared by a fresh dispatch
// (dispatchAgent) and a resumed one (resolve_approval's continuation
// after an approver decides): it alternates waiting for the runtime's
// completion future and the bridge's suspension signal, resolving each
// suspension via the approval cascade (spec §4.8) until the runtime
// finishes or a request is parked in the Pending Approval Store.
func (c *Communicator) raceBridge(
	ctx context.Context,
	bridge *suspension.Bridge,
	runtimeDone chan runtimeOutcome,
	immediateSender string,
	requester *collective.Participant,
	chain []string,
	conv *conversation.Conversation,
	parentBridge *suspension.Bridge,
) raceOutcome {
	for {
		sigCtx, cancelSig := context.WithCancel(ctx)
		sigCh := make(chan signalOutcome, 1)
		go func() {
			batch, resolver, ok := bridge.WaitForSignal(sigCtx)
			sigCh <- signalOutcome{batch: batch, resolver: resolver, ok: ok}
		}()

		select {
		case out := <-runtimeDone:
			cancelSig()
			bridge.Close()
			return raceOutcome{text: out.text, err: out.err}

		case sig := <-sigCh:
			cancelSig()
			if !sig.ok {
				out := <-runtimeDone
				bridge.Close()
				return raceOutcome{text: out.text, err: out.err}
			}

			parked, requestID := c.cascade(ctx, sig, immediateSender, requester, chain, bridge, runtimeDone, conv, parentBridge)
			if parked {
				return raceOutcome{
					text:      formatApprovalRequestText(requestID, sig.batch),
					parked:    true,
					requestID: requestID,
				}
			}
			// Not parked: the cascade already resolved this batch.
			// Loop back and keep racing for either completion or a
			// further suspension.
		}
	}
}

type signalOutcome struct {
	batch    suspension.Batch
	resolver suspension.Resolver
	ok       bool
}

// cascade implements the four approval-cascade branches of spec §4.8. It
// returns parked=true (and a request id) only for the store-and-return
// path; every other branch resolves the bridge itself before returning.
func (c *Communicator) cascade(
	ctx context.Context,
	sig signalOutcome,
	immediateSender string,
	requester *collective.Participant,
	chain []string,
	bridge *suspension.Bridge,
	runtimeDone chan runtimeOutcome,
	conv *conversation.Conversation,
	parentBridge *suspension.Bridge,
) (parked bool, requestID string) {
	approverID := approverOf(sig.batch)
	c.events.Publish(models.Event{
		Type:              models.EventApprovalRequested,
		ApprovalRequested: &models.ApprovalRequestedPayload{Approver: approverID, ToolCalls: toolCallIDs(sig.batch)},
	})

	approver, approverKnown := c.collective.Get(approverID)

	switch {
	case approverKnown && approver.Variant == collective.VariantUser:
		decisions := c.promptUserForEach(ctx, approver, sig.batch)
		sig.resolver(decisions)
		c.publishResolved("", decisions)
		return false, ""

	case approverKnown && approver.Variant == collective.VariantAgent && approver.Authority.CanApprove(requester.ID):
		entry := &pendingEntry{
			batch:           sig.batch,
			resolver:        sig.resolver,
			bridge:          bridge,
			runtimeDone:     runtimeDone,
			immediateSender: immediateSender,
			requester:       requester,
			chain:           chain,
			conv:            conv,
		}
		id := c.pending.park(entry)
		return true, id

	case parentBridge != nil:
		decisions, err := parentBridge.RequestApproval(ctx, sig.batch)
		if err != nil {
			decisions = rejectAll(sig.batch, "parent approval channel closed")
		}
		sig.resolver(decisions)
		c.publishResolved("", decisions)
		return false, ""

	default:
		decisions := rejectAll(sig.batch, "no approver")
		sig.resolver(decisions)
		c.publishResolved("", decisions)
		return false, ""
	}
}

func (c *Communicator) publishResolved(requestID string, decisions suspension.DecisionMap) {
	approved := true
	var reason string
	for _, d := range decisions {
		if !d.Approved {
			approved = false
			reason = d.Reason
			break
		}
	}
	c.events.Publish(models.Event{
		Type: models.EventApprovalResolved,
		ApprovalResolved: &models.ApprovalResolvedPayload{
			RequestID: requestID,
			Approved:  approved,
			Reason:    reason,
		},
	})
}

// promptUserForEach asks sender's medium to approve or reject each
// pending item individually, per spec §4.8.
func (c *Communicator) promptUserForEach(ctx context.Context, sender *collective.Participant, batch suspension.Batch) suspension.DecisionMap {
	c.mu.RLock()
	m, ok := c.mediums[sender.ID]
	c.mu.RUnlock()

	decisions := make(suspension.DecisionMap, len(batch.Items))
	if !ok {
		return rejectAll(batch, "no medium registered for approving user")
	}

	for _, item := range batch.Items {
		prompt := fmt.Sprintf("approve tool call %s(%s)? reply 'approve' or 'reject [reason]'", item.ToolName, string(item.Input))
		reply, err := m.Prompt(ctx, prompt)
		if err != nil {
			decisions[item.ToolCallID] = suspension.Decision{Approved: false, Reason: "medium prompt failed"}
			continue
		}
		approved, reason := parseApprovalReply(reply)
		decisions[item.ToolCallID] = suspension.Decision{Approved: approved, Reason: reason}
	}
	return decisions
}

func parseApprovalReply(reply string) (approved bool, reason string) {
	trimmed := strings.TrimSpace(reply)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "approve") {
		return true, ""
	}
	if strings.HasPrefix(lower, "reject") {
		rest := strings.TrimSpace(trimmed[len("reject"):])
		return false, rest
	}
	return false, "unrecognized reply: " + trimmed
}

func rejectAll(batch suspension.Batch, reason string) suspension.DecisionMap {
	decisions := make(suspension.DecisionMap, len(batch.Items))
	for _, item := range batch.Items {
		decisions[item.ToolCallID] = suspension.Decision{Approved: false, Reason: reason}
	}
	return decisions
}

func toolCallIDs(batch suspension.Batch) []string {
	ids := make([]string, len(batch.Items))
	for i, item := range batch.Items {
		ids[i] = item.ToolCallID
	}
	return ids
}

func approverOf(batch suspension.Batch) string {
	if len(batch.Items) == 0 {
		return ""
	}
	return batch.Items[0].Approver
}

func formatApprovalRequestText(requestID string, batch suspension.Batch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "APPROVAL REQUEST %s: ", requestID)
	for i, item := range batch.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s(%s)", item.ToolName, string(item.Input))
	}
	return b.String()
}

func pushChain(chain []string, id string) []string {
	out := make([]string, len(chain), len(chain)+1)
	copy(out, chain)
	return append(out, id)
}
