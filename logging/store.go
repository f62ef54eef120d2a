package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// Size-based rotation per partition sink; day rollover itself happens by
	// computing a fresh partition path on every append.
	partitionMaxSizeMB  = 10
	partitionMaxBackups = 30
)

// LocalLogStore appends entries to date/type-partitioned files under its
// root directory: <dir>/<category>/<year>/<month>/<day>.log.
// Append never returns an error to the caller; I/O failures are logged and
// swallowed so that logging cannot break the event handler that triggered it.
type LocalLogStore struct {
	diag zerolog.Logger
	dir  string

	mu    sync.Mutex
	sinks map[Category]*partitionSink
}

type partitionSink struct {
	path   string
	writer *lumberjack.Logger
}

func NewLocalLogStore(diag zerolog.Logger, dir string) *LocalLogStore {
	s := &LocalLogStore{
		diag:  diag.With().Str("component", "logstore").Logger(),
		dir:   dir,
		sinks: make(map[Category]*partitionSink),
	}
	if err := s.EnsureDirectories(); err != nil {
		s.diag.Error().Err(err).Msg("failed to create log directories")
	}
	return s
}

// Dir returns the root log directory.
func (s *LocalLogStore) Dir() string { return s.dir }

// PartitionPath computes the partition file for a category at an instant.
func (s *LocalLogStore) PartitionPath(category Category, t time.Time) string {
	return s.KeyPath(KeyFor(category, t))
}

// KeyPath is the partition file addressed by a day key.
func (s *LocalLogStore) KeyPath(key DayKey) string {
	return filepath.Join(s.dir, string(key.Category), key.Year, key.Month, key.Day+".log")
}

// EnsureDirectories creates the current day's directory for every category
// so that subsequent appends cannot fail on a missing parent.
func (s *LocalLogStore) EnsureDirectories() error {
	now := time.Now()
	for _, category := range Categories() {
		dir := filepath.Dir(s.PartitionPath(category, now))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create partition directory %s: %w", dir, err)
		}
	}
	return nil
}

// Append writes the entry as one line to the category's current partition.
func (s *LocalLogStore) Append(category Category, e LogEntry) {
	path := s.PartitionPath(category, e.Timestamp)
	sink, err := s.sink(category, path)
	if err != nil {
		s.diag.Error().Err(err).Str("path", path).Msg("failed to open partition")
		return
	}
	if _, err := sink.Write([]byte(e.Line() + "\n")); err != nil {
		s.diag.Error().Err(err).Str("path", path).Msg("failed to append log line")
	}
}

// sink returns the rotating writer for the partition path, replacing the
// cached one when the day has rolled over.
func (s *LocalLogStore) sink(category Category, path string) (*lumberjack.Logger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.sinks[category]; ok && cached.path == path {
		return cached.writer, nil
	}
	if cached, ok := s.sinks[category]; ok {
		if err := cached.writer.Close(); err != nil {
			s.diag.Warn().Err(err).Str("path", cached.path).Msg("failed to close rotated partition")
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create partition directory: %w", err)
	}
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    partitionMaxSizeMB,
		MaxBackups: partitionMaxBackups,
	}
	s.sinks[category] = &partitionSink{path: path, writer: writer}
	return writer, nil
}

// WalkPartitions visits every retained partition file (rotation backups
// excluded) with its path and day key.
func (s *LocalLogStore) WalkPartitions(fn func(path string, key DayKey)) {
	for _, category := range Categories() {
		categoryDir := filepath.Join(s.dir, string(category))
		years, err := os.ReadDir(categoryDir)
		if err != nil {
			continue
		}
		for _, year := range years {
			if !year.IsDir() {
				continue
			}
			months, err := os.ReadDir(filepath.Join(categoryDir, year.Name()))
			if err != nil {
				continue
			}
			for _, month := range months {
				if !month.IsDir() {
					continue
				}
				monthDir := filepath.Join(categoryDir, year.Name(), month.Name())
				files, err := os.ReadDir(monthDir)
				if err != nil {
					continue
				}
				for _, file := range files {
					name := file.Name()
					if file.IsDir() || !strings.HasSuffix(name, ".log") || strings.Contains(name, "-") {
						continue
					}
					key := DayKey{
						Category: category,
						Year:     year.Name(),
						Month:    month.Name(),
						Day:      strings.TrimSuffix(name, ".log"),
					}
					fn(filepath.Join(monthDir, name), key)
				}
			}
		}
	}
}

// CleanupResult summarizes one retention pass.
type CleanupResult struct {
	Files int
	Bytes int64
}

// Cleanup deletes partitions strictly older than retentionDays, removes
// month/year directories left empty, and recreates the current day's
// directories so following appends succeed without manual setup.
func (s *LocalLogStore) Cleanup(retentionDays int) (CleanupResult, error) {
	var result CleanupResult
	now := time.Now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, -retentionDays)

	s.closeSinks()

	for _, category := range Categories() {
		categoryDir := filepath.Join(s.dir, string(category))
		years, err := os.ReadDir(categoryDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return result, fmt.Errorf("failed to read category directory %s: %w", categoryDir, err)
		}
		for _, year := range years {
			if !year.IsDir() {
				continue
			}
			yearDir := filepath.Join(categoryDir, year.Name())
			months, err := os.ReadDir(yearDir)
			if err != nil {
				continue
			}
			for _, month := range months {
				if !month.IsDir() {
					continue
				}
				monthDir := filepath.Join(yearDir, month.Name())
				files, err := os.ReadDir(monthDir)
				if err != nil {
					continue
				}
				for _, file := range files {
					if file.IsDir() || !strings.HasSuffix(file.Name(), ".log") {
						continue
					}
					date, ok := partitionDate(year.Name(), month.Name(), file.Name(), now.Location())
					if !ok {
						continue
					}
					if !date.Before(cutoff) {
						continue
					}
					path := filepath.Join(monthDir, file.Name())
					if info, err := file.Info(); err == nil {
						result.Bytes += info.Size()
					}
					if err := os.Remove(path); err != nil {
						s.diag.Error().Err(err).Str("path", path).Msg("failed to delete partition")
						continue
					}
					result.Files++
					s.diag.Info().Str("path", path).Msg("deleted expired partition")
				}
				removeIfEmpty(monthDir)
			}
			removeIfEmpty(yearDir)
		}
	}

	if err := s.EnsureDirectories(); err != nil {
		return result, fmt.Errorf("failed to recreate log directories: %w", err)
	}
	return result, nil
}

// Close releases all open partition sinks.
func (s *LocalLogStore) Close() {
	s.closeSinks()
}

func (s *LocalLogStore) closeSinks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for category, sink := range s.sinks {
		if err := sink.writer.Close(); err != nil {
			s.diag.Warn().Err(err).Str("path", sink.path).Msg("failed to close partition sink")
		}
		delete(s.sinks, category)
	}
}

// partitionDate derives the partition's calendar date from its directory
// names and file name. Rotation backups carry a timestamp suffix after the
// day number ("05-2025-08-28T10-00-00.000.log"); only the leading day token
// matters for retention.
func partitionDate(year, month, name string, loc *time.Location) (time.Time, bool) {
	base := strings.TrimSuffix(name, ".log")
	if i := strings.Index(base, "-"); i >= 0 {
		base = base[:i]
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(base)
	if err != nil || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc), true
}

func removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	os.Remove(dir)
}
