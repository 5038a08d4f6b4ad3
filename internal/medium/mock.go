package medium

import "context"

// Mock is a scripted Medium for tests and the Mock participant variant's
// sibling use in the Communicator: it returns canned replies in order,
// falling back to a default when exhausted.
type Mock struct {
	Replies []string
	Default string

	calls int
}

// Prompt returns the next scripted reply, or Default once exhausted.
func (m *Mock) Prompt(ctx context.Context, text string) (string, error) {
	if m.calls < len(m.Replies) {
		reply := m.Replies[m.calls]
		m.calls++
		return reply, nil
	}
	return m.Default, nil
}

// OnEvent is a no-op; Mock has nowhere to surface background events.
func (m *Mock) OnEvent(fn EventFunc) {}
