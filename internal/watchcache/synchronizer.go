package watchcache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// State is the phase of a Synchronizer
type State int32

const (
	// Bootstrapping means a snapshot is being collected. Readers still see
	// the last published contents, which may be empty.
	Bootstrapping State = iota
	// Synced means the last snapshot was published and incremental changes
	// are applied directly to the cache.
	Synced
)

func (s State) String() string {
	if s == Synced {
		return "synced"
	}
	return "bootstrapping"
}

// Options configures a Synchronizer for one kind
type Options[R, E any] struct {
	Kind string

	// Convert maps a raw payload to an entry. It returns false when required
	// fields are missing; such payloads are dropped.
	Convert func(R) (E, bool)

	// Identity extracts the identity of a converted entry
	Identity func(E) Identity

	// RawIdentity extracts the identity of a raw payload. It is used for
	// Delete so a partial payload can still remove its entry. When nil,
	// Delete falls back to Convert.
	RawIdentity func(R) (Identity, bool)

	// Carry is applied when an Upsert replaces an existing entry
	Carry func(prev, next E) E

	Log logrus.FieldLogger
}

// Synchronizer keeps one Cache in step with a change feed. It buffers a
// snapshot between Init and InitDone and swaps it in atomically, then applies
// upserts and deletes in arrival order.
type Synchronizer[R, E any] struct {
	opts  Options[R, E]
	cache *Cache[E]
	log   logrus.FieldLogger

	state atomic.Int32

	// mu serializes Apply and Warm. It is never held while waiting on the
	// feed.
	mu        sync.Mutex
	buffer    []E
	published bool
}

// New creates a Synchronizer in the Bootstrapping state with an empty cache
func New[R, E any](opts Options[R, E]) *Synchronizer[R, E] {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Synchronizer[R, E]{
		opts:  opts,
		cache: NewCache(opts.Kind, opts.Identity, opts.Carry),
		log:   log.WithField("kind", opts.Kind),
	}
	s.state.Store(int32(Bootstrapping))
	loading.WithLabelValues(opts.Kind).Set(1)
	cacheEntries.WithLabelValues(opts.Kind).Set(0)
	return s
}

// Cache returns the cache this synchronizer publishes into
func (s *Synchronizer[R, E]) Cache() *Cache[E] {
	return s.cache
}

// Kind returns the kind this synchronizer tracks
func (s *Synchronizer[R, E]) Kind() string {
	return s.opts.Kind
}

// State returns the current phase
func (s *Synchronizer[R, E]) State() State {
	return State(s.state.Load())
}

// IsLoading reports whether a snapshot is in progress. It does not take the
// cache lock.
func (s *Synchronizer[R, E]) IsLoading() bool {
	return s.State() == Bootstrapping
}

// Read returns a copy of the published entries
func (s *Synchronizer[R, E]) Read() []E {
	return s.cache.Read()
}

// Run applies notifications until the feed closes or ctx is done. When the
// feed closes the cache keeps its last contents.
func (s *Synchronizer[R, E]) Run(ctx context.Context, feed <-chan Notification[R]) {
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("synchronizer stopped")
			return
		case n, ok := <-feed:
			if !ok {
				s.log.WithField("state", s.State()).Warn("feed closed, cache frozen at last state")
				return
			}
			s.Apply(n)
		}
	}
}

// Apply processes a single notification
func (s *Synchronizer[R, E]) Apply(n Notification[R]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notificationsTotal.WithLabelValues(s.opts.Kind, n.Type.String()).Inc()

	switch n.Type {
	case Init:
		if s.State() == Synced {
			resyncsTotal.WithLabelValues(s.opts.Kind).Inc()
			s.log.Info("resync started")
		}
		s.buffer = nil
		s.setState(Bootstrapping)

	case InitItem:
		if s.State() != Bootstrapping {
			s.log.Debug("ignoring snapshot item outside of bootstrap")
			return
		}
		if e, ok := s.convert(n.Object); ok {
			s.buffer = append(s.buffer, e)
		}

	case InitDone:
		if s.State() != Bootstrapping {
			s.log.Debug("ignoring unpaired snapshot completion")
			return
		}
		s.cache.Publish(s.buffer)
		s.log.WithField("entries", len(s.buffer)).Debug("snapshot published")
		s.buffer = nil
		s.published = true
		s.setState(Synced)

	case Upsert:
		// Changes arriving before the authoritative snapshot are dropped; the
		// snapshot already reflects them.
		if s.State() != Synced {
			return
		}
		if e, ok := s.convert(n.Object); ok {
			s.cache.Upsert(e)
		}

	case Delete:
		if s.State() != Synced {
			return
		}
		if id, ok := s.rawIdentity(n.Object); ok {
			s.cache.Remove(id)
		}

	case Error:
		s.log.WithError(n.Err).Warn("feed error")
		return
	}

	cacheEntries.WithLabelValues(s.opts.Kind).Set(float64(s.cache.Len()))
}

// Warm publishes a listing obtained out of band so something can be shown
// before the first snapshot completes. It only takes effect while no
// snapshot has ever been published; the loading state is unchanged.
func (s *Synchronizer[R, E]) Warm(items []R) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.published || s.State() != Bootstrapping {
		return false
	}
	entries := make([]E, 0, len(items))
	for _, item := range items {
		if e, ok := s.convert(item); ok {
			entries = append(entries, e)
		}
	}
	s.cache.Publish(entries)
	cacheEntries.WithLabelValues(s.opts.Kind).Set(float64(s.cache.Len()))
	return true
}

func (s *Synchronizer[R, E]) convert(raw R) (E, bool) {
	e, ok := s.opts.Convert(raw)
	if !ok {
		conversionDropsTotal.WithLabelValues(s.opts.Kind).Inc()
		s.log.Debug("dropping unconvertible payload")
	}
	return e, ok
}

func (s *Synchronizer[R, E]) rawIdentity(raw R) (Identity, bool) {
	if s.opts.RawIdentity != nil {
		return s.opts.RawIdentity(raw)
	}
	e, ok := s.opts.Convert(raw)
	if !ok {
		return Identity{}, false
	}
	return s.opts.Identity(e), true
}

func (s *Synchronizer[R, E]) setState(st State) {
	s.state.Store(int32(st))
	loading.WithLabelValues(s.opts.Kind).Set(boolGauge(st == Bootstrapping))
}
