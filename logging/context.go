package logging

import "github.com/rs/zerolog"

// LoggingContext bundles the diagnostics logger with the local store and
// upload queue. It is constructed once at startup and passed by reference to
// every component that produces log entries; there is no package-level
// logger state.
type LoggingContext struct {
	Diag  zerolog.Logger
	Store *LocalLogStore
	Queue *UploadQueue
}

func NewLoggingContext(diag zerolog.Logger, store *LocalLogStore, queue *UploadQueue) *LoggingContext {
	return &LoggingContext{Diag: diag, Store: store, Queue: queue}
}

// Record persists the entry locally and queues it for remote delivery.
// It never fails the caller: a full queue or a write error degrades
// observability, not the business logic that produced the event.
func (c *LoggingContext) Record(e LogEntry) {
	if !e.Category.Valid() {
		e.Category = CategoryGeneral
	}
	c.Store.Append(e.Category, e)
	if !c.Queue.Enqueue(e) {
		c.Diag.Warn().
			Int("queue_len", c.Queue.Len()).
			Str("category", string(e.Category)).
			Msg("upload queue full, entry not queued for remote sync")
	}
}
