package communicator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/legionai/legion/internal/collective"
	"github.com/legionai/legion/internal/conversation"
	"github.com/legionai/legion/internal/suspension"
)

// pendingEntry is one parked approval: a suspended inner dispatch, its
// unresolved batch, and everything needed to resume racing it once an
// approver decides.
type pendingEntry struct {
	batch           suspension.Batch
	resolver        suspension.Resolver
	bridge          *suspension.Bridge
	runtimeDone     chan runtimeOutcome
	immediateSender string
	requester       *collective.Participant
	chain           []string
	conv            *conversation.Conversation
}

// PendingApprovalStore is the process-wide table of parked approval
// requests (spec §4.8, §6): entries park here when an agent with approval
// authority must be asked out-of-band via resolve_approval, rather than
// through a synchronous user-medium prompt.
type PendingApprovalStore struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

// NewPendingApprovalStore builds an empty store.
func NewPendingApprovalStore() *PendingApprovalStore {
	return &PendingApprovalStore{entries: make(map[string]*pendingEntry)}
}

// park stores entry under a fresh request id and returns it.
func (s *PendingApprovalStore) park(entry *pendingEntry) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()
	return id
}

// take removes and returns the entry for id, if present. A request id can
// only ever be resolved once.
func (s *PendingApprovalStore) take(id string) (*pendingEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	return entry, ok
}

// peekBatch returns the pending Batch for id without resolving it, so the
// resolve_approval tool can apply one decision across every item it
// covers without racing take's single-resolution guarantee.
func (s *PendingApprovalStore) peekBatch(id string) (suspension.Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return suspension.Batch{}, false
	}
	return entry.batch, true
}
