// ABOUTME: Durable per-conversation "last seen" timestamps
// ABOUTME: Two JSON maps (chat, support) of id -> epoch millis persisted through a store.KV

package seen

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/house-notify/internal/store"
)

// Namespace selects one of the persisted marker maps. The value is the
// storage key the map lives under.
type Namespace string

const (
	Chat    Namespace = "chat_seen_contacts"
	Support Namespace = "chat_seen_support"
)

// Namespaces lists every namespace the store manages.
var Namespaces = []Namespace{Chat, Support}

const defaultIOTimeout = 2 * time.Second

// Store keeps seen markers in memory and writes the whole namespace map
// through to the KV backend on every Set. Backend failures are logged and
// degrade to "absent" on read and to memory-only on write; they never reach
// the caller.
//
// Set overwrites unconditionally. Keeping markers monotonic is the caller's job.
type Store struct {
	mu      sync.RWMutex
	kv      store.KV
	markers map[Namespace]map[string]int64
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a store over kv and loads both namespaces. A nil logger uses
// slog.Default().
func New(ctx context.Context, kv store.KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		kv:      kv,
		markers: make(map[Namespace]map[string]int64),
		logger:  logger.With("component", "seen"),
		timeout: defaultIOTimeout,
	}
	s.Reload(ctx)
	return s
}

// Reload replaces the in-memory markers with what the backend holds.
// A namespace that cannot be read or decoded loads as empty.
func (s *Store) Reload(ctx context.Context) {
	loaded := make(map[Namespace]map[string]int64, len(Namespaces))
	for _, ns := range Namespaces {
		loaded[ns] = s.load(ctx, ns)
	}

	s.mu.Lock()
	s.markers = loaded
	s.mu.Unlock()
}

func (s *Store) load(ctx context.Context, ns Namespace) map[string]int64 {
	out := make(map[string]int64)
	if s.kv == nil {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.kv.Get(ctx, string(ns))
	if errors.Is(err, store.ErrNotFound) {
		return out
	}
	if err != nil {
		s.logger.Warn("reading seen markers failed", "namespace", ns, "error", err)
		return out
	}

	var decoded map[string]json.Number
	if err := json.Unmarshal(raw, &decoded); err != nil {
		s.logger.Warn("discarding unreadable seen markers", "namespace", ns, "error", err)
		return out
	}
	for id, n := range decoded {
		ms, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				continue
			}
			ms = int64(f)
		}
		if ms > 0 {
			out[id] = ms
		}
	}
	return out
}

// Get returns the marker for id in ns.
func (s *Store) Get(ns Namespace, id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms, ok := s.markers[ns][id]
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Set records t as the marker for id in ns and persists the namespace.
// Precision is milliseconds.
func (s *Store) Set(ns Namespace, id string, t time.Time) {
	if id == "" || t.IsZero() {
		return
	}

	s.mu.Lock()
	m, ok := s.markers[ns]
	if !ok {
		m = make(map[string]int64)
		s.markers[ns] = m
	}
	m[id] = t.UnixMilli()
	raw, err := json.Marshal(m)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("encoding seen markers failed", "namespace", ns, "error", err)
		return
	}
	s.persist(ns, raw)
}

func (s *Store) persist(ns Namespace, raw []byte) {
	if s.kv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.kv.Put(ctx, string(ns), raw); err != nil {
		s.logger.Warn("persisting seen markers failed", "namespace", ns, "error", err)
	}
}

// Snapshot returns a copy of the markers in ns, for diagnostics.
func (s *Store) Snapshot(ns Namespace) map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]time.Time, len(s.markers[ns]))
	for id, ms := range s.markers[ns] {
		out[id] = time.UnixMilli(ms)
	}
	return out
}
