package store

import (
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/stride/internal/util"
	"github.com/kode4food/stride/pkg/api"
)

type (
	// Store owns the local arena of workflow instances, keyed by submission
	// ID. It mediates all reads and writes: Put replaces an instance
	// wholesale, Merge runs a read-modify-write cycle under a per-key lock,
	// and every mutation bumps the entry version and notifies watchers.
	// Reads of unknown submissions return the draft default, never an error
	Store struct {
		entries *util.LRUCache[*entry]
		changes topic.Topic[Change]
		prod    topic.Producer[Change]
		mu      sync.Mutex
	}

	// Change describes one mutation applied to the arena. Versions are
	// monotonic per submission, so observers can order changes
	Change struct {
		SubmissionID api.SubmissionID
		Instance     *api.WorkflowInstance
		Version      int64
	}

	// MergeFunc computes the next instance from the current one. Returning
	// the input unchanged leaves the entry untouched
	MergeFunc func(*api.WorkflowInstance) *api.WorkflowInstance

	entry struct {
		mu       sync.Mutex
		instance *api.WorkflowInstance
		version  int64
	}
)

// DefaultArenaSize bounds the number of locally cached instances
const DefaultArenaSize = 1024

// New creates a store with a bounded instance arena
func New(arenaSize int) *Store {
	if arenaSize <= 0 {
		arenaSize = DefaultArenaSize
	}
	changes := caravan.NewTopic[Change]()
	return &Store{
		entries: util.NewLRUCache[*entry](arenaSize),
		changes: changes,
		prod:    changes.NewProducer(),
	}
}

// Get returns the current instance and version for a submission. Prior to
// initialization this is the draft default at version zero
func (s *Store) Get(id api.SubmissionID) (*api.WorkflowInstance, int64) {
	e := s.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instance, e.version
}

// Put replaces the stored instance wholesale and returns the new version
func (s *Store) Put(id api.SubmissionID, w *api.WorkflowInstance) int64 {
	e := s.entryFor(id)
	e.mu.Lock()
	e.instance = w
	e.version++
	version := e.version
	e.mu.Unlock()

	s.notify(id, w, version)
	return version
}

// PutIf replaces the stored instance only when the entry version still
// matches. A stale write is discarded, returning the current version and
// false. This is the guard that keeps an old operation's reconciliation
// from clobbering state written by a newer one
func (s *Store) PutIf(
	id api.SubmissionID, w *api.WorkflowInstance, version int64,
) (int64, bool) {
	e := s.entryFor(id)
	e.mu.Lock()
	if e.version != version {
		current := e.version
		e.mu.Unlock()
		return current, false
	}
	e.instance = w
	e.version++
	next := e.version
	e.mu.Unlock()

	s.notify(id, w, next)
	return next, true
}

// Merge reads the current instance, applies fn, and stores the result. The
// whole cycle runs under the entry's lock, so merges on the same submission
// never interleave. Merges on different submissions are independent. Returns
// the pre-merge snapshot, the stored result, and the new version
func (s *Store) Merge(
	id api.SubmissionID, fn MergeFunc,
) (*api.WorkflowInstance, *api.WorkflowInstance, int64) {
	e := s.entryFor(id)
	e.mu.Lock()
	before := e.instance
	after := fn(before)
	if after == nil || after == before {
		version := e.version
		e.mu.Unlock()
		return before, before, version
	}
	after = after.SetLastUpdated(time.Now())
	e.instance = after
	e.version++
	version := e.version
	e.mu.Unlock()

	s.notify(id, after, version)
	return before, after, version
}

// Reset discards the local cached view of a submission. Server-side state is
// untouched; the next read observes the draft default until a refresh
func (s *Store) Reset(id api.SubmissionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Remove(string(id))
}

// Watch returns a consumer of change notifications for the whole arena.
// Callers must Close the consumer when done
func (s *Store) Watch() topic.Consumer[Change] {
	return s.changes.NewConsumer()
}

// Close releases the change topic
func (s *Store) Close() {
	s.prod.Close()
}

func (s *Store) entryFor(id api.SubmissionID) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, _ := s.entries.Get(string(id), func() (*entry, error) {
		return &entry{instance: api.NewDraft(id)}, nil
	})
	return e
}

func (s *Store) notify(
	id api.SubmissionID, w *api.WorkflowInstance, version int64,
) {
	s.prod.Send() <- Change{
		SubmissionID: id,
		Instance:     w,
		Version:      version,
	}
}
