package attendance

import (
	"sort"
	"sync"
	"time"
)

// State is the lifecycle state of a registered session.
type State string

// State constants for registry entries.
const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateCrashed State = "crashed"
)

// Entry is a snapshot of one registered session.
type Entry struct {
	SessionID string     `json:"session_id"`
	Device    int        `json:"device"`
	State     State      `json:"state"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

type registryEntry struct {
	Entry

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
}

func (e *registryEntry) signalStop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

func (e *registryEntry) end(now time.Time) {
	if e.EndedAt == nil {
		e.EndedAt = &now
	}
}

// Registry is the process-local directory of sessions started by this process.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	now     func() time.Time
}

// NewRegistry creates an empty registry. A nil clock uses time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		entries: make(map[string]*registryEntry),
		now:     now,
	}
}

// Register adds a running entry and returns the channel that is closed when the
// session is asked to stop.
func (r *Registry) Register(id string) (<-chan struct{}, error) {
	return r.RegisterDevice(id, 0)
}

// RegisterDevice is Register with the camera device recorded on the entry.
func (r *Registry) RegisterDevice(id string, device int) (<-chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return nil, ErrAlreadyRegistered
	}
	e := &registryEntry{
		Entry: Entry{
			SessionID: id,
			Device:    device,
			State:     StateRunning,
			StartedAt: r.now(),
		},
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	r.entries[id] = e
	return e.stop, nil
}

// Deactivate asks a running session to stop. Unknown ids and repeated calls are no-ops.
func (r *Registry) Deactivate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return
	}
	if e.State == StateRunning {
		e.State = StateStopped
		e.end(r.now())
	}
	e.signalStop()
}

// MarkCrashed records a loop failure. The stop channel is closed as well so that
// nothing waits on a dead loop.
func (r *Registry) MarkCrashed(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return
	}
	e.State = StateCrashed
	if err != nil {
		e.Error = err.Error()
	}
	e.end(r.now())
	e.signalStop()
}

// markDone closes the entry's done channel once its loop has returned.
func (r *Registry) markDone(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		e.doneOnce.Do(func() { close(e.done) })
	}
}

// Done returns a channel closed when the session's loop has exited.
func (r *Registry) Done(id string) (<-chan struct{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.done, true
}

// IsActive reports whether id is registered and running.
func (r *Registry) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	return ok && e.State == StateRunning
}

// ListIDs returns every registered id, oldest first.
func (r *Registry) ListIDs() []string {
	entries := r.Entries()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.SessionID
	}
	return ids
}

// RunningIDs returns the ids of running entries, oldest first.
func (r *Registry) RunningIDs() []string {
	ids := []string{}
	for _, e := range r.Entries() {
		if e.State == StateRunning {
			ids = append(ids, e.SessionID)
		}
	}
	return ids
}

// Get returns a snapshot of one entry.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.Entry, true
}

// Entries returns snapshots of all entries ordered by start time.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	result := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e.Entry)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].SessionID < result[j].SessionID
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

// Prune removes entries that are not running and ended more than horizon before now.
// It returns the number of entries removed.
func (r *Registry) Prune(horizon time.Duration, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-horizon)
	removed := 0
	for id, e := range r.entries {
		if e.State == StateRunning || e.EndedAt == nil {
			continue
		}
		select {
		case <-e.done:
		default:
			continue // loop still winding down
		}
		if e.EndedAt.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}
