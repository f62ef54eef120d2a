package logging

import (
	"context"
	"fmt"
	"time"
)

// DayKey addresses one remote day document: one per category per calendar day.
type DayKey struct {
	Category Category
	Year     string
	Month    string
	Day      string
}

// KeyFor builds the day key for an instant in local time.
func KeyFor(category Category, t time.Time) DayKey {
	return DayKey{
		Category: category,
		Year:     fmt.Sprintf("%04d", t.Year()),
		Month:    fmt.Sprintf("%02d", int(t.Month())),
		Day:      fmt.Sprintf("%02d", t.Day()),
	}
}

// CollectionPath is the hierarchical collection holding the day document,
// e.g. "messages/2025/08".
func (k DayKey) CollectionPath() string {
	return fmt.Sprintf("%s/%s/%s", k.Category, k.Year, k.Month)
}

// DocumentID is the document name inside the collection (the day of month).
func (k DayKey) DocumentID() string {
	return k.Day
}

// DayDocument is the unit of remote persistence. Its logs sequence is
// deduplicated by entry id; it is created on first commit and then
// read-merge-written on every cycle, never deleted by the pipeline.
type DayDocument struct {
	Category    Category   `firestore:"logType" json:"logType"`
	Year        string     `firestore:"year" json:"year"`
	Month       string     `firestore:"month" json:"month"`
	Day         string     `firestore:"day" json:"day"`
	Logs        []LogEntry `firestore:"logs" json:"logs"`
	LastUpdated time.Time  `firestore:"lastUpdated" json:"lastUpdated"`
	TotalLogs   int        `firestore:"totalLogs" json:"totalLogs"`
	Source      string     `firestore:"source" json:"source"`
}

// DocumentWrite pairs a day key with the full document to write at it.
type DocumentWrite struct {
	Key      DayKey
	Document DayDocument
}

// RemoteStore is the document database the synchronizer commits to.
// Implementations must make BatchCommit atomic: either every write in the
// slice is applied or none is.
type RemoteStore interface {
	// GetDocument returns the existing day document, or (nil, nil) when the
	// document does not exist yet.
	GetDocument(ctx context.Context, key DayKey) (*DayDocument, error)
	// BatchCommit applies all writes as a single atomic batch.
	BatchCommit(ctx context.Context, writes []DocumentWrite) error
	// Ping probes connectivity without mutating anything.
	Ping(ctx context.Context) error
}

// FileMirror is a secondary backend that receives whole partition files
// (e.g. Google Drive, GitHub). Mirrors buffer internally; QueuePartition
// never blocks on network I/O.
type FileMirror interface {
	QueuePartition(path string, key DayKey)
}
