package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) *LocalLogStore {
	t.Helper()
	store := NewLocalLogStore(zerolog.Nop(), t.TempDir())
	t.Cleanup(store.Close)
	return store
}

func writePartition(t *testing.T, store *LocalLogStore, category Category, day time.Time, lines string) string {
	t.Helper()
	path := store.PartitionPath(category, day)
	assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	assert.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func TestLocalLogStoreAppend(t *testing.T) {
	store := newTestStore(t)
	ts := time.Now().Truncate(time.Second)
	entry := LogEntry{
		ID:        "id",
		Level:     LevelInfo,
		Message:   "member joined",
		Category:  CategoryModeration,
		Timestamp: ts,
	}

	store.Append(CategoryModeration, entry)

	path := store.PartitionPath(CategoryModeration, ts)
	content, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, entry.Line()+"\n", string(content))
}

func TestLocalLogStoreKeyPath(t *testing.T) {
	store := NewLocalLogStore(zerolog.Nop(), "logs")
	defer store.Close()

	key := DayKey{Category: CategoryMessages, Year: "2025", Month: "08", Day: "28"}
	assert.Equal(t, filepath.Join("logs", "messages", "2025", "08", "28.log"), store.KeyPath(key))
}

func TestLocalLogStoreWalkPartitions(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	writePartition(t, store, CategoryMessages, now, "x\n")
	writePartition(t, store, CategoryStatus, now, "y\n")

	// Rotation backups carry a timestamp suffix and must be skipped.
	backup := store.PartitionPath(CategoryMessages, now)
	backup = backup[:len(backup)-len(".log")] + "-2025-08-28T10-00-00.000.log"
	assert.NoError(t, os.WriteFile(backup, []byte("old\n"), 0644))

	var keys []DayKey
	store.WalkPartitions(func(path string, key DayKey) {
		keys = append(keys, key)
	})

	assert.Len(t, keys, 2)
	categories := map[Category]bool{}
	for _, k := range keys {
		categories[k.Category] = true
	}
	assert.True(t, categories[CategoryMessages])
	assert.True(t, categories[CategoryStatus])
}

func TestLocalLogStoreCleanup(t *testing.T) {
	t.Run("deletes partitions older than the retention window", func(t *testing.T) {
		store := newTestStore(t)
		now := time.Now()
		oldPath := writePartition(t, store, CategoryMessages, now.AddDate(0, 0, -10), "old\n")
		midPath := writePartition(t, store, CategoryMessages, now.AddDate(0, 0, -5), "mid\n")
		newPath := writePartition(t, store, CategoryMessages, now, "new\n")

		result, err := store.Cleanup(7)
		assert.NoError(t, err)
		assert.Equal(t, 1, result.Files)
		assert.Equal(t, int64(4), result.Bytes)

		assert.NoFileExists(t, oldPath)
		assert.FileExists(t, midPath)
		assert.FileExists(t, newPath)
	})

	t.Run("removes emptied month and year directories", func(t *testing.T) {
		store := newTestStore(t)
		now := time.Now()
		oldDay := now.AddDate(0, 0, -60)
		oldPath := writePartition(t, store, CategoryErrors, oldDay, "old\n")

		_, err := store.Cleanup(7)
		assert.NoError(t, err)

		assert.NoFileExists(t, oldPath)
		assert.NoDirExists(t, filepath.Dir(oldPath))
	})

	t.Run("appends keep working after cleanup", func(t *testing.T) {
		store := newTestStore(t)
		now := time.Now().Truncate(time.Second)
		writePartition(t, store, CategoryStatus, now.AddDate(0, 0, -30), "old\n")

		_, err := store.Cleanup(7)
		assert.NoError(t, err)

		entry := LogEntry{ID: "id", Level: LevelInfo, Message: "back", Category: CategoryStatus, Timestamp: now}
		store.Append(CategoryStatus, entry)
		assert.FileExists(t, store.PartitionPath(CategoryStatus, now))
	})
}

func TestPartitionDate(t *testing.T) {
	loc := time.Local

	t.Run("plain day file", func(t *testing.T) {
		date, ok := partitionDate("2025", "08", "28.log", loc)
		assert.True(t, ok)
		assert.Equal(t, time.Date(2025, 8, 28, 0, 0, 0, 0, loc), date)
	})

	t.Run("rotation backup keeps its day", func(t *testing.T) {
		date, ok := partitionDate("2025", "08", "05-2025-08-28T10-00-00.000.log", loc)
		assert.True(t, ok)
		assert.Equal(t, 5, date.Day())
	})

	t.Run("garbage names are rejected", func(t *testing.T) {
		_, ok := partitionDate("2025", "08", "notaday.log", loc)
		assert.False(t, ok)
		_, ok = partitionDate("2025", "13", "01.log", loc)
		assert.False(t, ok)
	})
}
