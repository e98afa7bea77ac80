package subagent

import (
	"sync"
	"time"

	"github.com/xln3/forgeagent/pkg/types"
)

// sweepInterval and evictAfter govern the background-task TTL sweeper: a
// task is only ever considered for eviction once it has left
// BackgroundRunning, and is evicted once evictAfter has passed since its
// EndedAt, whether or not it has been read.
const (
	sweepInterval = time.Minute
	evictAfter    = 15 * time.Minute
)

// Store is the in-memory registry of background tasks a Task spawn creates.
// TaskOutput reads by id; a sweeper goroutine evicts finished entries past
// their TTL so the map doesn't grow unbounded across a long-lived worker.
type Store struct {
	mu    sync.Mutex
	tasks map[string]*types.BackgroundTask
}

// NewStore creates an empty background-task store and starts its sweeper.
func NewStore() *Store {
	s := &Store{tasks: make(map[string]*types.BackgroundTask)}
	go s.sweepLoop()
	return s
}

// Register adds a freshly-spawned task.
func (s *Store) Register(t *types.BackgroundTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
}

// Get returns a snapshot copy of the task, or a zero BackgroundTask and
// false if unknown or already evicted.
func (s *Store) Get(id string) (types.BackgroundTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return types.BackgroundTask{}, false
	}
	return *t, true
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.sweep(time.Now())
	}
}

func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		if t.State == types.BackgroundRunning {
			continue
		}
		if t.EndedAt != nil && now.Sub(*t.EndedAt) > evictAfter {
			delete(s.tasks, id)
		}
	}
}
