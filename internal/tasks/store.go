// Package tasks tracks long-running generation and audit jobs that HTTP
// clients poll by id instead of holding a connection open.
//
// Finished tasks are kept for a TTL; the store also caps the number of
// entries, evicting the oldest finished task first.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pagegen/internal/logging"
)

// ErrNotFound is returned for unknown or expired task ids.
var ErrNotFound = errors.New("task not found")

// Status is the lifecycle state of a task.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Task is a snapshot of one background job.
type Task struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    Status    `json:"status"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Finished reports whether the task reached a terminal state.
func (t Task) Finished() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Func is the body of a background task.
type Func func(ctx context.Context) (any, error)

// Store is an in-memory task registry. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	tasks      map[string]*Task
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewStore creates a store and starts its expiry loop. Call Close to stop
// the loop and cancel running tasks.
func NewStore(ttl time.Duration, maxEntries int) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		tasks:      make(map[string]*Task),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}

	s.wg.Add(1)
	go s.cleanupLoop(sweepInterval(ttl))
	return s
}

func sweepInterval(ttl time.Duration) time.Duration {
	d := ttl / 2
	if d < time.Second {
		d = time.Second
	}
	if d > time.Minute {
		d = time.Minute
	}
	return d
}

// Create registers a new processing task and returns its id.
func (s *Store) Create(kind string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tasks) >= s.maxEntries {
		s.pruneLocked()
	}
	if len(s.tasks) >= s.maxEntries {
		s.evictOldestLocked()
	}

	now := s.now()
	id := uuid.NewString()
	s.tasks[id] = &Task{
		ID:        id,
		Kind:      kind,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	logging.TasksDebug("Created task %s (%s)", id, kind)
	return id
}

// Complete marks a task completed with result.
func (s *Store) Complete(id string, result any) error {
	return s.finish(id, StatusCompleted, result, "")
}

// Fail marks a task failed with err's message.
func (s *Store) Fail(id string, err error) error {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return s.finish(id, StatusFailed, nil, msg)
}

func (s *Store) finish(id string, status Status, result any, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.Status = status
	t.Result = result
	t.Error = errMsg
	t.UpdatedAt = s.now()
	logging.Tasks("Task %s %s", id, status)
	return nil
}

// Get returns a snapshot of the task.
func (s *Store) Get(id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok || s.expiredLocked(t) {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *t, nil
}

// Len returns the number of tracked tasks, expired ones included until the
// next sweep.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Run creates a task and executes fn in the background. fn receives a
// context that is cancelled when the store closes, not when the caller's
// request ends.
func (s *Store) Run(kind string, fn Func) string {
	id := s.Create(kind)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				_ = s.Fail(id, fmt.Errorf("task panicked: %v", r))
			}
		}()

		result, err := fn(s.ctx)
		if err != nil {
			logging.Get(logging.CategoryTasks).Warnw("task failed", "id", id, "kind", kind, "error", err)
			_ = s.Fail(id, err)
			return
		}
		_ = s.Complete(id, result)
	}()
	return id
}

// Close cancels running tasks and waits for them and the expiry loop.
func (s *Store) Close() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

func (s *Store) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			n := s.pruneLocked()
			s.mu.Unlock()
			if n > 0 {
				logging.TasksDebug("Expired %d tasks", n)
			}
		}
	}
}

// expiredLocked reports whether a finished task outlived the TTL. Running
// tasks never expire.
func (s *Store) expiredLocked(t *Task) bool {
	return t.Finished() && s.now().Sub(t.UpdatedAt) > s.ttl
}

func (s *Store) pruneLocked() int {
	n := 0
	for id, t := range s.tasks {
		if s.expiredLocked(t) {
			delete(s.tasks, id)
			n++
		}
	}
	return n
}

// evictOldestLocked drops the oldest finished task, or the oldest task of
// any state when none has finished.
func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest *Task
	for id, t := range s.tasks {
		if oldest == nil ||
			(t.Finished() && !oldest.Finished()) ||
			(t.Finished() == oldest.Finished() && t.CreatedAt.Before(oldest.CreatedAt)) {
			oldestID, oldest = id, t
		}
	}
	if oldest != nil {
		logging.TasksDebug("Evicting task %s (%s)", oldestID, oldest.Status)
		delete(s.tasks, oldestID)
	}
}
