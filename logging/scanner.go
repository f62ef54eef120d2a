package logging

import (
	"bufio"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// maxSyncCursors bounds the cursor set over long uptimes; the oldest
// cursors are evicted past this count.
const maxSyncCursors = 1000

// syncCursors remembers the last-scanned modification time per day key so
// unchanged partitions are not re-parsed every cycle.
type syncCursors struct {
	mu    sync.Mutex
	times map[DayKey]time.Time
	max   int
}

func newSyncCursors(max int) *syncCursors {
	return &syncCursors{times: make(map[DayKey]time.Time), max: max}
}

func (c *syncCursors) get(key DayKey) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.times[key]
	return t, ok
}

func (c *syncCursors) set(key DayKey, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times[key] = t
	for len(c.times) > c.max {
		var oldestKey DayKey
		var oldest time.Time
		first := true
		for k, v := range c.times {
			if first || v.Before(oldest) {
				oldestKey, oldest = k, v
				first = false
			}
		}
		delete(c.times, oldestKey)
	}
}

func (c *syncCursors) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.times)
}

// FileSyncScanner re-reads today's local partitions and enqueues entries not
// yet represented remotely. This is what makes entries written only to disk
// (e.g. before a crash) eventually consistent with the remote store: ids are
// content-derived, so a recovered line dedupes against its live twin.
type FileSyncScanner struct {
	diag     zerolog.Logger
	store    *LocalLogStore
	queue    *UploadQueue
	cursors  *syncCursors
	maxBytes int64
	maxLines int
}

func NewFileSyncScanner(diag zerolog.Logger, store *LocalLogStore, queue *UploadQueue, maxBytes int64, maxLines int) *FileSyncScanner {
	return &FileSyncScanner{
		diag:     diag.With().Str("component", "filescan").Logger(),
		store:    store,
		queue:    queue,
		cursors:  newSyncCursors(maxSyncCursors),
		maxBytes: maxBytes,
		maxLines: maxLines,
	}
}

// Scan walks today's partition of every category and returns how many
// recovered entries were enqueued.
func (s *FileSyncScanner) Scan(now time.Time) int {
	total := 0
	for _, category := range Categories() {
		total += s.scanPartition(category, now)
	}
	if total > 0 {
		s.diag.Info().Int("entries", total).Msg("recovered local entries for remote sync")
	}
	return total
}

func (s *FileSyncScanner) scanPartition(category Category, now time.Time) int {
	key := KeyFor(category, now)
	path := s.store.PartitionPath(category, now)

	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.diag.Error().Err(err).Str("path", path).Msg("failed to stat partition")
		}
		return 0
	}

	// Unchanged since the last scan: nothing new to recover.
	if last, ok := s.cursors.get(key); ok && !info.ModTime().After(last) {
		return 0
	}

	if info.Size() > s.maxBytes {
		s.diag.Warn().
			Str("path", path).
			Int64("size", info.Size()).
			Int64("max", s.maxBytes).
			Msg("partition exceeds size cap, scan skipped")
		return 0
	}

	file, err := os.Open(path)
	if err != nil {
		s.diag.Error().Err(err).Str("path", path).Msg("failed to open partition")
		return 0
	}
	defer file.Close()

	enqueued := 0
	lines := 0
	truncated := false
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines++
		if lines > s.maxLines {
			truncated = true
			break
		}
		entry, ok := ParseLine(scanner.Text(), category)
		if !ok {
			continue
		}
		if s.queue.Has(entry.ID) {
			continue
		}
		if !s.queue.Enqueue(entry) {
			s.diag.Warn().Str("path", path).Msg("upload queue full during scan, stopping")
			break
		}
		enqueued++
	}
	if err := scanner.Err(); err != nil {
		s.diag.Error().Err(err).Str("path", path).Msg("failed to read partition")
	}
	if truncated {
		s.diag.Warn().
			Str("path", path).
			Int("max_lines", s.maxLines).
			Msg("partition exceeds line cap, scan truncated")
	}

	s.cursors.set(key, info.ModTime())
	return enqueued
}
