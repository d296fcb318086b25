package jobtracker

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/oriys/tower/internal/domain"
)

// State is the lifecycle state of a tracked work item.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
	StateFailed    State = "failed"
)

// Record is the tracked view of a work item.
type Record struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	State      State          `json:"state"`
	Results    map[string]any `json:"results,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  string         `json:"error_kind,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Done reports whether the work item reached a terminal state.
func (r *Record) Done() bool {
	return r.State != StateRunning
}

var (
	// ErrRunning is returned by Start when the ID is already running.
	ErrRunning = errors.New("work item already running")
	// ErrFull is returned by Start when the tracker holds maxSize records.
	ErrFull = errors.New("too many tracked work items")
)

// Tracker is an in-memory work item manager. It keeps finished records
// for ttl so callers can read back results.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*Record
	ttl     time.Duration
	maxSize int // hard cap on tracked entries (0 = unlimited)

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a tracker and starts its cleanup loop.
func New(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	t := &Tracker{
		records: make(map[string]*Record),
		ttl:     ttl,
		maxSize: 10000,
		stop:    make(chan struct{}),
	}
	go t.cleanupLoop()
	return t
}

// Start records that a work item began executing. A finished record with
// the same ID is replaced; a running one is left alone and ErrRunning is
// returned.
func (t *Tracker) Start(item *domain.WorkItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.records[item.ID]
	if ok && !existing.Done() {
		return ErrRunning
	}
	if !ok && t.maxSize > 0 && len(t.records) >= t.maxSize {
		return ErrFull
	}
	t.records[item.ID] = &Record{
		ID:        item.ID,
		Name:      item.Name,
		State:     StateRunning,
		StartedAt: time.Now(),
	}
	return nil
}

// CompleteWorkItem implements workitem.Manager.
func (t *Tracker) CompleteWorkItem(id string, results map[string]any) {
	t.finish(id, func(r *Record) {
		r.State = StateCompleted
		r.Results = results
	})
}

// AbortWorkItem implements workitem.Manager.
func (t *Tracker) AbortWorkItem(id string) {
	t.finish(id, func(r *Record) {
		r.State = StateAborted
	})
}

// FailWorkItem implements workitem.FailureRecorder.
func (t *Tracker) FailWorkItem(id string, err error) {
	t.finish(id, func(r *Record) {
		r.State = StateFailed
		if err != nil {
			r.Error = err.Error()
			r.ErrorKind = string(domain.KindOf(err))
		}
	})
}

// finish applies a terminal transition. The first terminal state wins, so
// a late completion cannot overwrite an abort.
func (t *Tracker) finish(id string, apply func(*Record)) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[id]
	if !ok {
		if t.maxSize > 0 && len(t.records) >= t.maxSize {
			return
		}
		r = &Record{ID: id, State: StateRunning, StartedAt: now}
		t.records[id] = r
	}
	if r.Done() {
		return
	}
	apply(r)
	r.FinishedAt = &now
}

// Get returns a copy of the record for id, or nil if not tracked.
func (t *Tracker) Get(id string) *Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.records[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

// Remove deletes a finished record. It returns ErrRunning for a record
// still in flight and false when id is not tracked.
func (t *Tracker) Remove(id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[id]
	if !ok {
		return false, nil
	}
	if !r.Done() {
		return true, ErrRunning
	}
	delete(t.records, id)
	return true, nil
}

// Len returns the number of tracked records.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// List returns copies of all tracked records, oldest first.
func (t *Tracker) List() []*Record {
	t.mu.RLock()
	out := make([]*Record, 0, len(t.records))
	for _, r := range t.records {
		cp := *r
		out = append(out, &cp)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Close stops the cleanup loop.
func (t *Tracker) Close() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Tracker) cleanupLoop() {
	ticker := time.NewTicker(t.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweep(time.Now())
		}
	}
}

// sweep drops finished records older than ttl. Running items are kept.
func (t *Tracker) sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, r := range t.records {
		if r.FinishedAt != nil && now.Sub(*r.FinishedAt) > t.ttl {
			delete(t.records, id)
		}
	}
}
