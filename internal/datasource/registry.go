package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownSource is returned when an id names no usable registration.
var ErrUnknownSource = errors.New("unknown data source")

// CurrentChangedListener observes active-backend switches.
type CurrentChangedListener func(id string, ds DataSource)

// Registry owns backend registrations and their lazily created singleton
// instances, and tracks which backend is currently active. It is created
// at startup, passed by reference to whoever needs routing, and disposed
// at shutdown. All methods are safe for concurrent use; SwitchTo and
// GetForQuery serialize on one mutex.
type Registry struct {
	logger *slog.Logger

	mu            sync.Mutex
	registrations map[string]Registration // key: lower-cased id
	order         []string                // registration order of keys, for stable listings
	instances     map[string]DataSource
	currentID     string
	listeners     []CurrentChangedListener
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:        logger.With("component", "registry"),
		registrations: map[string]Registration{},
		instances:     map[string]DataSource{},
	}
}

// Register upserts a registration by id. Ids are case-insensitive and must
// be non-empty.
func (r *Registry) Register(reg Registration) error {
	if strings.TrimSpace(reg.ID) == "" {
		return fmt.Errorf("data source registration needs a non-empty id")
	}
	key := strings.ToLower(reg.ID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.registrations[key]; !exists {
		r.order = append(r.order, key)
	}
	r.registrations[key] = reg
	return nil
}

// GetAll returns the enabled registrations sorted ascending by SortOrder.
func (r *Registry) GetAll() []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabledLocked()
}

func (r *Registry) enabledLocked() []Registration {
	out := make([]Registration, 0, len(r.order))
	for _, key := range r.order {
		reg := r.registrations[key]
		if reg.Enabled {
			out = append(out, reg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// GetOrCreate returns the singleton instance for an id, constructing it on
// first access. Unknown ids and registrations without a factory fail with
// ErrUnknownSource.
func (r *Registry) GetOrCreate(id string) (DataSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(id)
}

func (r *Registry) getOrCreateLocked(id string) (DataSource, error) {
	key := strings.ToLower(id)
	if ds, ok := r.instances[key]; ok {
		return ds, nil
	}
	reg, ok := r.registrations[key]
	if !ok || reg.Factory == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}
	ds, err := reg.Factory()
	if err != nil {
		return nil, fmt.Errorf("create data source %q: %w", reg.ID, err)
	}
	r.instances[key] = ds
	r.logger.Info("data source instantiated", "id", reg.ID)
	return ds, nil
}

// Current returns the active instance, or nil when none was selected yet.
func (r *Registry) Current() DataSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentID == "" {
		return nil
	}
	return r.instances[r.currentID]
}

// CurrentID returns the active backend id ("" when none).
func (r *Registry) CurrentID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentID == "" {
		return ""
	}
	return r.registrations[r.currentID].ID
}

// OnCurrentChanged subscribes to active-backend switches.
func (r *Registry) OnCurrentChanged(fn CurrentChangedListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// SwitchTo makes a backend the active one: the previous current instance
// is disconnected (when connected), the new instance is created on demand,
// and the change is announced. Switching to the already-current id is a
// no-op; an unknown id fails without side effects.
func (r *Registry) SwitchTo(ctx context.Context, id string) error {
	key := strings.ToLower(id)

	r.mu.Lock()
	if key == r.currentID && key != "" {
		r.mu.Unlock()
		return nil
	}
	if _, ok := r.registrations[key]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}

	previous := r.instances[r.currentID]
	ds, err := r.getOrCreateLocked(id)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.currentID = key
	canonicalID := r.registrations[key].ID
	listeners := make([]CurrentChangedListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	if previous != nil && previous.State() == StateConnected {
		if err := previous.Disconnect(ctx); err != nil {
			r.logger.Warn("disconnect previous data source failed", "id", previous.ID(), "error", err)
		}
	}

	r.logger.Info("current data source changed", "id", canonicalID)
	for _, fn := range listeners {
		fn(canonicalID, ds)
	}
	return nil
}

// GetForQuery resolves the backend for one query. Precedence: an explicit
// type hint naming a known id wins; otherwise the enabled registrations
// are sniffed in SortOrder order via CanHandleQuery; otherwise the current
// active instance is the fallback (and may be nil).
func (r *Registry) GetForQuery(typeHint, queryText string) (DataSource, error) {
	if strings.TrimSpace(typeHint) != "" {
		r.mu.Lock()
		_, known := r.registrations[strings.ToLower(typeHint)]
		r.mu.Unlock()
		if known {
			return r.GetOrCreate(typeHint)
		}
	}

	r.mu.Lock()
	candidates := r.enabledLocked()
	r.mu.Unlock()

	for _, reg := range candidates {
		ds, err := r.GetOrCreate(reg.ID)
		if err != nil {
			r.logger.Warn("skipping data source during sniffing", "id", reg.ID, "error", err)
			continue
		}
		if ds.CanHandleQuery(queryText) {
			return ds, nil
		}
	}

	return r.Current(), nil
}

// Dispose closes every cached instance. The registry is unusable after.
func (r *Registry) Dispose() {
	r.mu.Lock()
	instances := make([]DataSource, 0, len(r.instances))
	for _, ds := range r.instances {
		instances = append(instances, ds)
	}
	r.instances = map[string]DataSource{}
	r.currentID = ""
	r.mu.Unlock()

	for _, ds := range instances {
		if err := ds.Close(); err != nil {
			r.logger.Warn("close data source failed", "id", ds.ID(), "error", err)
		}
	}
}

// Instances snapshots the currently cached instances, for health probing.
func (r *Registry) Instances() []DataSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DataSource, 0, len(r.instances))
	for _, ds := range r.instances {
		out = append(out, ds)
	}
	return out
}
