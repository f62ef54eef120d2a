package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockRemoteStore for testing
type MockRemoteStore struct {
	mock.Mock
}

func (m *MockRemoteStore) GetDocument(ctx context.Context, key DayKey) (*DayDocument, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DayDocument), args.Error(1)
}

func (m *MockRemoteStore) BatchCommit(ctx context.Context, writes []DocumentWrite) error {
	args := m.Called(ctx, writes)
	return args.Error(0)
}

func (m *MockRemoteStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockFileMirror for testing
type MockFileMirror struct {
	mock.Mock
}

func (m *MockFileMirror) QueuePartition(path string, key DayKey) {
	m.Called(path, key)
}

func newTestSynchronizer(t *testing.T, remote RemoteStore, mirrors []FileMirror) (*BatchSynchronizer, *UploadQueue) {
	t.Helper()
	store := newTestStore(t)
	queue := NewUploadQueue(100)
	scanner := NewFileSyncScanner(zerolog.Nop(), store, queue, 50*1024*1024, 100000)
	sync := NewBatchSynchronizer(zerolog.Nop(), queue, scanner, remote, store, mirrors, time.Minute)
	return sync, queue
}

func testEntry(id, message string, category Category, ts time.Time) LogEntry {
	return LogEntry{ID: id, Level: LevelInfo, Message: message, Category: category, Timestamp: ts}
}

func TestBatchSynchronizerRunCycle(t *testing.T) {
	ts := time.Date(2025, 8, 28, 10, 0, 0, 0, time.Local)

	t.Run("creates a new day document from queued entries", func(t *testing.T) {
		remote := new(MockRemoteStore)
		sync, queue := newTestSynchronizer(t, remote, nil)
		queue.Enqueue(testEntry("a", "first", CategoryMessages, ts))
		queue.Enqueue(testEntry("b", "second", CategoryMessages, ts))

		key := KeyFor(CategoryMessages, ts)
		remote.On("GetDocument", mock.Anything, key).Return(nil, nil)

		var committed []DocumentWrite
		remote.On("BatchCommit", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				committed = args.Get(1).([]DocumentWrite)
			}).Return(nil)

		sync.RunCycle(context.Background())

		remote.AssertExpectations(t)
		assert.Len(t, committed, 1)
		doc := committed[0].Document
		assert.Equal(t, CategoryMessages, doc.Category)
		assert.Equal(t, "2025", doc.Year)
		assert.Equal(t, "08", doc.Month)
		assert.Equal(t, "28", doc.Day)
		assert.Equal(t, 2, doc.TotalLogs)
		assert.Equal(t, "logawa-bot", doc.Source)
		assert.Len(t, doc.Logs, 2)
		assert.NotNil(t, doc.Logs[0].Metadata, "committed entries must be sanitized")
		assert.Equal(t, 0, queue.Len())
		assert.False(t, sync.LastUpload().IsZero())
	})

	t.Run("merges against the existing document without duplicating ids", func(t *testing.T) {
		remote := new(MockRemoteStore)
		sync, queue := newTestSynchronizer(t, remote, nil)
		queue.Enqueue(testEntry("dup", "already synced", CategoryModeration, ts))
		queue.Enqueue(testEntry("new", "fresh", CategoryModeration, ts))

		key := KeyFor(CategoryModeration, ts)
		existing := &DayDocument{
			Category:  CategoryModeration,
			Logs:      []LogEntry{testEntry("dup", "already synced", CategoryModeration, ts)},
			TotalLogs: 1,
		}
		remote.On("GetDocument", mock.Anything, key).Return(existing, nil)

		var committed []DocumentWrite
		remote.On("BatchCommit", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				committed = args.Get(1).([]DocumentWrite)
			}).Return(nil)

		sync.RunCycle(context.Background())

		assert.Len(t, committed, 1)
		doc := committed[0].Document
		assert.Equal(t, 2, doc.TotalLogs)
		ids := map[string]int{}
		for _, e := range doc.Logs {
			ids[e.ID]++
		}
		assert.Equal(t, 1, ids["dup"])
		assert.Equal(t, 1, ids["new"])
	})

	t.Run("running the same cycle twice commits nothing new", func(t *testing.T) {
		remote := new(MockRemoteStore)
		sync, queue := newTestSynchronizer(t, remote, nil)
		entry := testEntry("idem", "once", CategoryStatus, ts)
		key := KeyFor(CategoryStatus, ts)

		remote.On("GetDocument", mock.Anything, key).Return(nil, nil).Once()
		var first []DocumentWrite
		remote.On("BatchCommit", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				first = args.Get(1).([]DocumentWrite)
			}).Return(nil).Once()

		queue.Enqueue(entry)
		sync.RunCycle(context.Background())
		assert.Len(t, first[0].Document.Logs, 1)

		// The second cycle sees the first cycle's state remotely.
		doc := first[0].Document
		remote.On("GetDocument", mock.Anything, key).Return(&doc, nil).Once()
		var second []DocumentWrite
		remote.On("BatchCommit", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				second = args.Get(1).([]DocumentWrite)
			}).Return(nil).Once()

		queue.Enqueue(entry)
		sync.RunCycle(context.Background())
		assert.Len(t, second[0].Document.Logs, 1, "replayed entry must not duplicate")
	})

	t.Run("entries spanning days land in separate documents", func(t *testing.T) {
		remote := new(MockRemoteStore)
		sync, queue := newTestSynchronizer(t, remote, nil)
		queue.Enqueue(testEntry("d1", "today", CategoryMessages, ts))
		queue.Enqueue(testEntry("d2", "tomorrow", CategoryMessages, ts.AddDate(0, 0, 1)))

		remote.On("GetDocument", mock.Anything, mock.Anything).Return(nil, nil).Twice()
		var committed []DocumentWrite
		remote.On("BatchCommit", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				committed = args.Get(1).([]DocumentWrite)
			}).Return(nil)

		sync.RunCycle(context.Background())
		assert.Len(t, committed, 2)
		assert.NotEqual(t, committed[0].Key, committed[1].Key)
	})

	t.Run("commit failure drops the cycle's entries", func(t *testing.T) {
		remote := new(MockRemoteStore)
		sync, queue := newTestSynchronizer(t, remote, nil)
		queue.Enqueue(testEntry("lost", "gone this cycle", CategoryErrors, ts))

		remote.On("GetDocument", mock.Anything, mock.Anything).Return(nil, nil)
		remote.On("BatchCommit", mock.Anything, mock.Anything).Return(errors.New("unavailable"))

		sync.RunCycle(context.Background())

		assert.Equal(t, 0, queue.Len(), "failed entries are not re-queued")
		assert.True(t, sync.LastUpload().IsZero())
	})

	t.Run("read failure drops only that group", func(t *testing.T) {
		remote := new(MockRemoteStore)
		sync, queue := newTestSynchronizer(t, remote, nil)
		queue.Enqueue(testEntry("ok", "survives", CategoryMessages, ts))
		queue.Enqueue(testEntry("bad", "dropped", CategoryStatus, ts))

		remote.On("GetDocument", mock.Anything, KeyFor(CategoryMessages, ts)).Return(nil, nil)
		remote.On("GetDocument", mock.Anything, KeyFor(CategoryStatus, ts)).Return(nil, errors.New("deadline"))

		var committed []DocumentWrite
		remote.On("BatchCommit", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				committed = args.Get(1).([]DocumentWrite)
			}).Return(nil)

		sync.RunCycle(context.Background())

		assert.Len(t, committed, 1)
		assert.Equal(t, CategoryMessages, committed[0].Key.Category)
	})

	t.Run("empty queue commits nothing", func(t *testing.T) {
		remote := new(MockRemoteStore)
		sync, _ := newTestSynchronizer(t, remote, nil)

		sync.RunCycle(context.Background())

		remote.AssertNotCalled(t, "BatchCommit", mock.Anything, mock.Anything)
	})

	t.Run("mirrors are notified after a successful commit", func(t *testing.T) {
		remote := new(MockRemoteStore)
		mirror := new(MockFileMirror)
		sync, queue := newTestSynchronizer(t, remote, []FileMirror{mirror})
		queue.Enqueue(testEntry("m", "mirrored", CategoryMessages, ts))

		key := KeyFor(CategoryMessages, ts)
		remote.On("GetDocument", mock.Anything, key).Return(nil, nil)
		remote.On("BatchCommit", mock.Anything, mock.Anything).Return(nil)
		mirror.On("QueuePartition", mock.Anything, key).Return()

		sync.RunCycle(context.Background())

		mirror.AssertExpectations(t)
	})

	t.Run("mirrors are not notified when the commit fails", func(t *testing.T) {
		remote := new(MockRemoteStore)
		mirror := new(MockFileMirror)
		sync, queue := newTestSynchronizer(t, remote, []FileMirror{mirror})
		queue.Enqueue(testEntry("m", "mirrored", CategoryMessages, ts))

		remote.On("GetDocument", mock.Anything, mock.Anything).Return(nil, nil)
		remote.On("BatchCommit", mock.Anything, mock.Anything).Return(errors.New("unavailable"))

		sync.RunCycle(context.Background())

		mirror.AssertNotCalled(t, "QueuePartition", mock.Anything, mock.Anything)
	})
}

func TestBatchSynchronizerRecoversFromDisk(t *testing.T) {
	remote := new(MockRemoteStore)
	store := newTestStore(t)
	queue := NewUploadQueue(100)
	scanner := NewFileSyncScanner(zerolog.Nop(), store, queue, 50*1024*1024, 100000)
	sync := NewBatchSynchronizer(zerolog.Nop(), queue, scanner, remote, store, nil, time.Minute)

	// A line that only ever made it to disk, as after a crash before sync.
	writePartition(t, store, CategoryMessages, time.Now(),
		"[2025-08-28 09:00:00] [INFO] written before crash\n")

	// First cycle: queue is empty, the scan enqueues the recovered line.
	sync.RunCycle(context.Background())
	assert.Equal(t, 1, queue.Len())

	// Second cycle commits it.
	remote.On("GetDocument", mock.Anything, mock.Anything).Return(nil, nil)
	var committed []DocumentWrite
	remote.On("BatchCommit", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			committed = args.Get(1).([]DocumentWrite)
		}).Return(nil)

	sync.RunCycle(context.Background())
	assert.Len(t, committed, 1)
	assert.Equal(t, "written before crash", committed[0].Document.Logs[0].Message)
	assert.Equal(t, "local-sync", committed[0].Document.Logs[0].Metadata["source"])
}
