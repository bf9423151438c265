// Package datasource defines the uniform contract every query backend
// implements and the registry that routes queries between them.
package datasource

import (
	"context"
	"sync"

	"mcpql/internal/domain"
)

// ConnectionState is the per-instance connection state machine.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// StateListener receives connection state transitions for one instance.
type StateListener func(id string, state ConnectionState)

// DataSource is the contract each backend implements. Connect and
// ExecuteQuery may perform network or IPC I/O and must honor cancellation
// through the supplied context. Overlapping ExecuteQuery calls on one
// instance must be safe — the transport above does not serialize requests.
type DataSource interface {
	ID() string
	DisplayName() string
	QueryLanguage() string
	DefaultLimit() int

	State() ConnectionState
	ConnectionInfo() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	OnStateChange(fn StateListener)

	ExecuteQuery(ctx context.Context, req *domain.QueryRequest) (*domain.TabularResult, error)
	ValidateQuery(text string) []string
	FormatQuery(text string) (string, error)
	CanHandleQuery(text string) bool

	Close() error
}

// Schema describes the entities a backend can introspect.
type Schema struct {
	Entities []Entity `json:"entities"`
}

// Entity is one table/collection/folder with its columns.
type Entity struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// Introspector is an optional add-on: backends that can list their
// entities and columns implement it. Callers type-assert.
type Introspector interface {
	Introspect(ctx context.Context) (*Schema, error)
}

// ExampleProvider is an optional add-on: human-readable quick-start
// queries for a backend.
type ExampleProvider interface {
	Examples() string
}

// ViewerURLProvider is an optional add-on: a deep link that opens the
// query in the backend's own external viewer.
type ViewerURLProvider interface {
	ViewerURL(query string) (string, error)
}

// PayloadSubmitter is an optional add-on for raw-JSON protocol backends:
// when ExecuteQuery reports it has no cached result for a query, the
// caller re-invokes the tool out of band and hands the raw JSON back
// through SubmitPayload, which caches it and returns the normalized
// table. Callers type-assert.
type PayloadSubmitter interface {
	SubmitPayload(queryText, raw string) (*domain.TabularResult, error)
}

// Pinger is an optional add-on used by the health monitor to probe a
// connected instance without running a query.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Registration describes a backend to the registry. The factory defers
// construction until the instance is first needed.
type Registration struct {
	ID            string
	DisplayName   string
	Icon          string
	QueryLanguage string
	SortOrder     int
	Enabled       bool
	Factory       func() (DataSource, error)
}

// Descriptor converts the registration to its display-level view.
func (r Registration) Descriptor() domain.DataSourceDescriptor {
	return domain.DataSourceDescriptor{
		ID:            r.ID,
		DisplayName:   r.DisplayName,
		Icon:          r.Icon,
		QueryLanguage: r.QueryLanguage,
		SortOrder:     r.SortOrder,
		Enabled:       r.Enabled,
	}
}

// StateTracker is a small embeddable helper giving backends the state
// machine surface: guarded state plus listener fan-out.
type StateTracker struct {
	mu        sync.Mutex
	id        string
	state     ConnectionState
	listeners []StateListener
}

// NewStateTracker starts in the disconnected state.
func NewStateTracker(id string) StateTracker {
	return StateTracker{id: id}
}

func (t *StateTracker) State() ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *StateTracker) OnStateChange(fn StateListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// SetState records a transition and notifies listeners outside the lock.
func (t *StateTracker) SetState(s ConnectionState) {
	t.mu.Lock()
	if t.state == s {
		t.mu.Unlock()
		return
	}
	t.state = s
	listeners := make([]StateListener, len(t.listeners))
	copy(listeners, t.listeners)
	id := t.id
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(id, s)
	}
}
