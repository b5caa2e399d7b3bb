// Package state holds the client-side cache of remote views. Every cached
// slot is keyed by name and bound to the actor it was fetched for; switching
// actors wipes the cache and invalidates fetches still in flight, so a slow
// response for the previous actor can never surface under the new one.
package state

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amitsaini144/solagram/internal/model"
)

// Status describes the lifecycle of one cached slot.
type Status int

const (
	// StatusEmpty means nothing has been fetched yet.
	StatusEmpty Status = iota
	// StatusFetching means a refresh is running; any prior value stays
	// visible meanwhile.
	StatusFetching
	// StatusPopulated means the value is current.
	StatusPopulated
	// StatusStale means the value is present but superseded, either by an
	// invalidation or by a failed refresh.
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusFetching:
		return "fetching"
	case StatusPopulated:
		return "populated"
	case StatusStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of one slot. Value and Err can both be
// set: a failed refresh keeps the last good value alongside the failure.
type Snapshot struct {
	Status    Status
	Value     interface{}
	Err       error
	UpdatedAt time.Time
}

// ValueOf extracts a typed value from a snapshot. ok is false when the
// slot holds no value of that type.
func ValueOf[T any](s Snapshot) (T, bool) {
	v, ok := s.Value.(T)
	return v, ok
}

// Token proves which actor generation and slot version a fetch started
// under. Completions carrying an outdated token are discarded.
type Token struct {
	gen uint64
	ver uint64
}

type entry struct {
	status    Status
	value     interface{}
	hasValue  bool
	err       error
	updatedAt time.Time
	version   uint64
}

// Store is the synchronization state for one engine instance. It is safe
// for concurrent use.
type Store struct {
	mu         sync.RWMutex
	actor      model.Identity
	hasActor   bool
	generation uint64
	entries    map[string]*entry

	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		entries: make(map[string]*entry),
		logger:  logger,
		now:     time.Now,
	}
}

// SetActor binds the store to an actor. Switching to a different actor
// clears every slot and advances the generation so in-flight completions
// for the old actor get dropped. Setting the same actor again is a no-op.
// The return value reports whether the actor actually changed.
func (s *Store) SetActor(id model.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasActor && s.actor == id {
		return false
	}

	s.actor = id
	s.hasActor = true
	s.reset()
	s.logger.Info("actor switched, state cleared",
		zap.String("actor", id.Short()),
		zap.Uint64("generation", s.generation))
	return true
}

// ClearActor unbinds the actor and clears every slot.
func (s *Store) ClearActor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actor = model.Identity{}
	s.hasActor = false
	s.reset()
	s.logger.Info("actor cleared", zap.Uint64("generation", s.generation))
}

// Actor returns the bound actor, if any.
func (s *Store) Actor() (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actor, s.hasActor
}

// reset wipes entries and advances the generation. Caller holds the lock.
func (s *Store) reset() {
	s.generation++
	s.entries = make(map[string]*entry)
}

// Begin marks key as fetching and returns the token the eventual
// completion must present. A prior value stays visible while the fetch
// runs.
func (s *Store) Begin(key string) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.status = StatusFetching
	return Token{gen: s.generation, ver: e.version}
}

// Complete stores a fetched value for key. The write is discarded when the
// token is outdated, that is when the actor changed or the slot was
// invalidated after the fetch began. It reports whether the value was
// applied.
func (s *Store) Complete(key string, tok Token, value interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || tok.gen != s.generation || tok.ver != e.version {
		s.logger.Debug("discarding stale completion", zap.String("key", key))
		return false
	}

	e.status = StatusPopulated
	e.value = value
	e.hasValue = true
	e.err = nil
	e.updatedAt = s.now()
	return true
}

// Fail records a fetch failure for key. A prior value is retained and the
// slot turns Stale so the value stays usable next to the error; without a
// prior value the slot returns to Empty. Outdated tokens are discarded.
func (s *Store) Fail(key string, tok Token, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || tok.gen != s.generation || tok.ver != e.version {
		return false
	}

	e.err = err
	e.updatedAt = s.now()
	if e.hasValue {
		e.status = StatusStale
	} else {
		e.status = StatusEmpty
	}
	return true
}

// Invalidate marks key as superseded. The cached value stays visible but
// the slot reports Stale, and any fetch already in flight for it will be
// discarded on completion. Unknown keys are ignored.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}
	e.version++
	if e.hasValue {
		e.status = StatusStale
	} else {
		e.status = StatusEmpty
	}
}

// InvalidateAll marks every slot stale without dropping values.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		e.version++
		if e.hasValue {
			e.status = StatusStale
		} else {
			e.status = StatusEmpty
		}
	}
}

// Get returns a snapshot of key. ok is false for slots never touched.
func (s *Store) Get(key string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return Snapshot{Status: StatusEmpty}, false
	}
	snap := Snapshot{Status: e.status, Err: e.err, UpdatedAt: e.updatedAt}
	if e.hasValue {
		snap.Value = e.value
	}
	return snap, true
}

// NeedsFetch reports whether key requires a refresh: never fetched, stale,
// or older than maxAge. A slot already fetching does not.
func (s *Store) NeedsFetch(key string, maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return true
	}
	switch e.status {
	case StatusFetching:
		return false
	case StatusPopulated:
		return maxAge > 0 && s.now().Sub(e.updatedAt) > maxAge
	default:
		return true
	}
}

// Len returns the number of tracked slots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StatusCounts returns the number of slots per status, for gauges.
func (s *Store) StatusCounts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Status]int, 4)
	for _, e := range s.entries {
		counts[e.status]++
	}
	return counts
}
