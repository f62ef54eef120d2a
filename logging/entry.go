package logging

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category classifies a log entry's subject area. It determines both the
// local partition directory and the remote document routing.
type Category string

const (
	CategoryMessages       Category = "messages"
	CategoryModeration     Category = "moderation"
	CategoryStatus         Category = "status"
	CategoryForbiddenWords Category = "forbiddenWords"
	CategoryErrors         Category = "errors"
	CategoryGeneral        Category = "general"
)

// Categories returns all known categories in a fixed order.
func Categories() []Category {
	return []Category{
		CategoryMessages,
		CategoryModeration,
		CategoryStatus,
		CategoryForbiddenWords,
		CategoryErrors,
		CategoryGeneral,
	}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryMessages, CategoryModeration, CategoryStatus,
		CategoryForbiddenWords, CategoryErrors, CategoryGeneral:
		return true
	}
	return false
}

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel normalizes a level token read from a log line.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// TimeLayout is the timestamp format used in partition files.
const TimeLayout = "2006-01-02 15:04:05"

// LogEntry is a single record flowing through the pipeline.
type LogEntry struct {
	ID        string         `firestore:"id" json:"id"`
	Level     Level          `firestore:"level" json:"level"`
	Message   string         `firestore:"message" json:"message"`
	Category  Category       `firestore:"logType" json:"logType"`
	Timestamp time.Time      `firestore:"timestamp" json:"timestamp"`
	Metadata  map[string]any `firestore:"metadata" json:"metadata"`
}

// NewEntry creates a live entry with a fresh unique id.
// Timestamps are truncated to second precision to match the file format.
func NewEntry(level Level, category Category, message string, metadata map[string]any) LogEntry {
	return LogEntry{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		Category:  category,
		Timestamp: time.Now().Truncate(time.Second),
		Metadata:  metadata,
	}
}

// ContentID derives a stable id from the content of a recovered log line.
// levelToken is the raw token as written in the file (e.g. "INFO"); the same
// physical line must always hash to the same id across scans.
func ContentID(timestamp, levelToken, message string, category Category) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%s_%s_%s", timestamp, levelToken, message, category)))
	return hex.EncodeToString(sum[:])
}

// Line renders the entry in the partition file format:
// [YYYY-MM-DD HH:mm:ss] [LEVEL] message, with metadata as trailing JSON.
func (e LogEntry) Line() string {
	line := fmt.Sprintf("[%s] [%s] %s",
		e.Timestamp.Format(TimeLayout), strings.ToUpper(string(e.Level)), e.Message)
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			line += " | " + string(b)
		}
	}
	return line
}

var lineRe = regexp.MustCompile(`^\[([^\]]+)\] \[([^\]]+)\] (.+)$`)

// ParseLine reconstructs an entry from a partition file line. The boolean is
// false for lines that do not match the expected shape; those are skipped by
// the scanner. The id is content-derived so that a recovered entry matches
// its previously-synced counterpart.
func ParseLine(line string, category Category) (LogEntry, bool) {
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return LogEntry{}, false
	}
	ts, err := time.ParseInLocation(TimeLayout, m[1], time.Local)
	if err != nil {
		return LogEntry{}, false
	}
	return LogEntry{
		ID:        ContentID(m[1], m[2], m[3], category),
		Level:     ParseLevel(m[2]),
		Message:   m[3],
		Category:  category,
		Timestamp: ts,
		Metadata: map[string]any{
			"logType":   string(category),
			"timestamp": m[1],
			"source":    "local-sync",
		},
	}, true
}

// noContent replaces absent values before remote persistence; the document
// store rejects null-ish leaves.
const noContent = "no content"

// Sanitize recursively replaces nil values with the "no content" sentinel.
func Sanitize(v any) any {
	switch t := v.(type) {
	case nil:
		return noContent
	case map[string]any:
		cleaned := make(map[string]any, len(t))
		for k, val := range t {
			cleaned[k] = Sanitize(val)
		}
		return cleaned
	case []any:
		cleaned := make([]any, len(t))
		for i, val := range t {
			cleaned[i] = Sanitize(val)
		}
		return cleaned
	default:
		return v
	}
}

// SanitizeMetadata sanitizes a metadata mapping, returning an empty non-nil
// map for nil input so the persisted field is always present.
func SanitizeMetadata(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return Sanitize(m).(map[string]any)
}

// Sanitized returns a copy of the entry safe for remote persistence.
func (e LogEntry) Sanitized() LogEntry {
	e.Metadata = SanitizeMetadata(e.Metadata)
	return e
}
