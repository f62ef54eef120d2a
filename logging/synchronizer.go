package logging

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// BatchSynchronizer periodically drains the upload queue, merges the drained
// entries into their remote day documents and commits them as one atomic
// batch. The file scanner runs on the same tick, after the drain.
//
// A cycle that fails to commit drops that cycle's drained entries: live
// entries are at-most-once per cycle, and the scanner re-derives them from
// disk on a later tick, so nothing written locally is lost for good.
type BatchSynchronizer struct {
	diag     zerolog.Logger
	queue    *UploadQueue
	scanner  *FileSyncScanner
	remote   RemoteStore
	store    *LocalLogStore
	mirrors  []FileMirror
	interval time.Duration

	inFlight atomic.Bool

	mu         sync.Mutex
	lastUpload time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewBatchSynchronizer(diag zerolog.Logger, queue *UploadQueue, scanner *FileSyncScanner, remote RemoteStore, store *LocalLogStore, mirrors []FileMirror, interval time.Duration) *BatchSynchronizer {
	return &BatchSynchronizer{
		diag:     diag.With().Str("component", "sync").Logger(),
		queue:    queue,
		scanner:  scanner,
		remote:   remote,
		store:    store,
		mirrors:  mirrors,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the periodic sync loop. The interval is fixed: bursts are
// smoothed by the queue, not by early drains.
func (b *BatchSynchronizer) Start() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.RunCycle(context.Background())
			case <-b.stop:
				return
			}
		}
	}()
	b.diag.Info().Dur("interval", b.interval).Msg("batch synchronizer started")
}

// Stop terminates the loop. It does not flush; call ForceFlush first for a
// best-effort final drain.
func (b *BatchSynchronizer) Stop() {
	close(b.stop)
	b.wg.Wait()
}

// ForceFlush runs one synchronization cycle immediately, bounded by ctx.
func (b *BatchSynchronizer) ForceFlush(ctx context.Context) {
	b.diag.Info().Msg("forcing upload cycle")
	b.RunCycle(ctx)
}

// LastUpload returns the time of the last successful batch commit.
func (b *BatchSynchronizer) LastUpload() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUpload
}

// Processing reports whether a cycle is currently in flight.
func (b *BatchSynchronizer) Processing() bool {
	return b.inFlight.Load()
}

// RunCycle drains, merges, commits and then scans. A cycle that starts while
// another is in flight is a no-op; there is no queue of pending runs.
func (b *BatchSynchronizer) RunCycle(ctx context.Context) {
	if !b.inFlight.CompareAndSwap(false, true) {
		b.diag.Info().Msg("sync already in progress, cycle skipped")
		return
	}
	defer b.inFlight.Store(false)

	committed := b.commitDrained(ctx)

	// Recover anything that only made it to disk. Entries enqueued here are
	// committed by the next cycle.
	b.scanner.Scan(time.Now())

	if committed > 0 {
		b.mu.Lock()
		b.lastUpload = time.Now()
		b.mu.Unlock()
	}
}

// commitDrained drains the queue, groups by day document, merges against the
// existing remote state and commits one batch. Returns the number of entries
// committed.
func (b *BatchSynchronizer) commitDrained(ctx context.Context) int {
	drained := b.queue.Drain()
	if len(drained) == 0 {
		return 0
	}

	groups := make(map[DayKey][]LogEntry)
	for _, entry := range drained {
		key := KeyFor(entry.Category, entry.Timestamp)
		groups[key] = append(groups[key], entry)
	}

	keys := make([]DayKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CollectionPath()+keys[i].Day < keys[j].CollectionPath()+keys[j].Day
	})

	now := time.Now()
	var writes []DocumentWrite
	committed := 0
	for _, key := range keys {
		existing, err := b.remote.GetDocument(ctx, key)
		if err != nil {
			b.diag.Error().Err(err).
				Str("path", key.CollectionPath()).
				Str("doc", key.DocumentID()).
				Msg("failed to read day document, group dropped this cycle")
			continue
		}

		var logs []LogEntry
		existingIDs := make(map[string]struct{})
		if existing != nil {
			logs = existing.Logs
			for _, e := range logs {
				existingIDs[e.ID] = struct{}{}
			}
		}

		appended := 0
		for _, entry := range groups[key] {
			if _, dup := existingIDs[entry.ID]; dup {
				continue
			}
			existingIDs[entry.ID] = struct{}{}
			logs = append(logs, entry.Sanitized())
			appended++
		}

		writes = append(writes, DocumentWrite{
			Key: key,
			Document: DayDocument{
				Category:    key.Category,
				Year:        key.Year,
				Month:       key.Month,
				Day:         key.Day,
				Logs:        logs,
				LastUpdated: now,
				TotalLogs:   len(logs),
				Source:      "logawa-bot",
			},
		})
		committed += appended
	}

	if len(writes) == 0 {
		return 0
	}
	if err := b.remote.BatchCommit(ctx, writes); err != nil {
		b.diag.Error().Err(err).
			Int("documents", len(writes)).
			Int("entries", len(drained)).
			Msg("batch commit failed, cycle entries dropped")
		return 0
	}

	b.diag.Info().
		Int("documents", len(writes)).
		Int("entries", committed).
		Msg("batch commit succeeded")

	for _, write := range writes {
		path := b.store.KeyPath(write.Key)
		for _, mirror := range b.mirrors {
			mirror.QueuePartition(path, write.Key)
		}
	}
	return committed
}
