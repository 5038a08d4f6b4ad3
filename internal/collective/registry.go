package collective

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/legionai/legion/pkg/models"
)

// DefaultProtectedIDs are the built-in participants every Collective ships
// with: the human operator and the two bootstrap agents. They cannot be
// retired.
var DefaultProtectedIDs = []string{"user", "assistant", "supervisor"}

// configSchema validates the subset of Participant fields that must be
// present for the registry to reason about a config at save time: id,
// name, and variant. Variant-specific required fields are intentionally
// not enforced here so that, e.g., a mock participant need not carry a
// system_prompt.
const configSchema = `{
	"type": "object",
	"required": ["id", "name", "variant"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"variant": {"enum": ["agent", "user", "mock"]}
	}
}`

var compiledConfigSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("participant.schema.json", configSchema)
})

// EventPublisher is the subset of the Event Bus the registry needs.
// Registry changes are observable via the bus (spec §4.3); the registry
// does not otherwise depend on observability internals.
type EventPublisher interface {
	Publish(models.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(models.Event) {}

// Registry is the Collective Registry: process-wide, read-mostly lookup of
// Participants, with controlled write paths (save, retire).
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*Participant
	protected    map[string]bool
	bus          EventPublisher
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithEventPublisher attaches an Event Bus publisher for observability.
func WithEventPublisher(bus EventPublisher) Option {
	return func(r *Registry) { r.bus = bus }
}

// WithProtectedIDs overrides DefaultProtectedIDs.
func WithProtectedIDs(ids ...string) Option {
	return func(r *Registry) {
		r.protected = make(map[string]bool, len(ids))
		for _, id := range ids {
			r.protected[id] = true
		}
	}
}

// NewRegistry builds an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		participants: make(map[string]*Participant),
		bus:          noopPublisher{},
	}
	r.protected = make(map[string]bool, len(DefaultProtectedIDs))
	for _, id := range DefaultProtectedIDs {
		r.protected[id] = true
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns a defensive copy of the participant with the given id.
func (r *Registry) Get(id string) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return nil, false
	}
	clone := *p
	return &clone, true
}

// Filter selects participants for List.
type Filter struct {
	Variant    Variant // zero value matches all variants
	ActiveOnly bool
}

// List returns defensive copies of every participant matching filter.
func (r *Registry) List(filter Filter) []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		if filter.Variant != "" && p.Variant != filter.Variant {
			continue
		}
		if filter.ActiveOnly && !p.IsActive() {
			continue
		}
		clone := *p
		out = append(out, &clone)
	}
	return out
}

// Save validates config against the participant schema and upserts it.
func (p *Participant) marshalable() any {
	data, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var decoded any
	_ = json.Unmarshal(data, &decoded)
	return decoded
}

// Save validates config against the participant schema and upserts it into
// the registry. Validation failures are returned without mutating state.
func (r *Registry) Save(config *Participant) error {
	if config.ID == "" {
		return fmt.Errorf("collective: participant id is required")
	}

	schema, err := compiledConfigSchema()
	if err != nil {
		return fmt.Errorf("collective: compile participant schema: %w", err)
	}
	if err := schema.Validate(config.marshalable()); err != nil {
		return fmt.Errorf("collective: participant %q invalid: %w", config.ID, err)
	}

	if config.Status == "" {
		config.Status = StatusActive
	}

	r.mu.Lock()
	clone := *config
	r.participants[config.ID] = &clone
	r.mu.Unlock()

	r.bus.Publish(models.Event{
		Type: models.EventParticipantChanged,
		ParticipantChanged: &models.ParticipantChangedPayload{
			ParticipantID: config.ID,
			Status:        string(config.Status),
			Action:        "saved",
		},
	})
	return nil
}

// Retire marks a participant retired. Protected built-in ids cannot be
// retired. Retirement is reversible: Save with Status=StatusActive
// restores the full config, preserving every field untouched.
func (r *Registry) Retire(id string) error {
	if r.protected[id] {
		return fmt.Errorf("collective: participant %q is protected and cannot be retired", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return fmt.Errorf("collective: unknown participant %q", id)
	}
	p.Status = StatusRetired

	r.bus.Publish(models.Event{
		Type: models.EventParticipantChanged,
		ParticipantChanged: &models.ParticipantChangedPayload{
			ParticipantID: id,
			Status:        string(StatusRetired),
			Action:        "retired",
		},
	})
	return nil
}

// IsProtected reports whether id is a built-in participant.
func (r *Registry) IsProtected(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.protected[id]
}
