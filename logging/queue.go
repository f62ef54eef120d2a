package logging

import "sync"

// UploadQueue buffers entries awaiting remote delivery. It is bounded:
// enqueues past the capacity are counted and dropped, never an error.
// The synchronizer is the only drainer.
type UploadQueue struct {
	mu       sync.Mutex
	entries  []LogEntry
	ids      map[string]struct{}
	max      int
	rejected uint64
}

func NewUploadQueue(max int) *UploadQueue {
	return &UploadQueue{
		ids: make(map[string]struct{}),
		max: max,
	}
}

// Enqueue appends the entry. Returns false when the queue is at capacity;
// the entry is dropped and the rejection counted.
func (q *UploadQueue) Enqueue(e LogEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.max {
		q.rejected++
		return false
	}
	q.entries = append(q.entries, e)
	q.ids[e.ID] = struct{}{}
	return true
}

// Has reports whether an entry with the given id is currently queued.
// Used by the file scanner for cheap local dedup before enqueueing;
// the remote merge remains the authoritative guard.
func (q *UploadQueue) Has(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.ids[id]
	return ok
}

// Drain atomically removes and returns all queued entries in FIFO order.
func (q *UploadQueue) Drain() []LogEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.entries
	q.entries = nil
	q.ids = make(map[string]struct{})
	return drained
}

func (q *UploadQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Rejected returns how many enqueues were dropped at capacity.
func (q *UploadQueue) Rejected() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rejected
}
