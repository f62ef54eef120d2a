package query

import (
	"bufio"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	"github.com/eraiza0816/logawa/logging"
)

// Index is a local, queryable view over the partition files, used for the
// weekly maintenance report. Lines are keyed by their content-derived id, so
// re-ingesting a partition is idempotent.
type Index struct {
	db *sql.DB
}

// NewIndex opens (or creates) the DuckDB database at dbPath.
func NewIndex(dbPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("データディレクトリの作成に失敗しました: %w", err)
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("DuckDBデータベースへの接続に失敗しました: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS log_lines (
		id VARCHAR NOT NULL,
		category VARCHAR NOT NULL,
		level VARCHAR NOT NULL,
		message VARCHAR,
		logged_at TIMESTAMP,
		PRIMARY KEY (id)
	);`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("log_linesテーブルの作成に失敗しました: %w", err)
	}

	return &Index{db: db}, nil
}

// IngestPartition parses a partition file and upserts its lines.
// Returns how many new lines were indexed.
func (ix *Index) IngestPartition(path string, category logging.Category) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("パーティションファイルのオープンに失敗しました: %w", err)
	}
	defer file.Close()

	insertSQL := `
	INSERT INTO log_lines (id, category, level, message, logged_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING;`

	indexed := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		entry, ok := logging.ParseLine(scanner.Text(), category)
		if !ok {
			continue
		}
		result, err := ix.db.Exec(insertSQL,
			entry.ID, string(entry.Category), string(entry.Level), entry.Message, entry.Timestamp)
		if err != nil {
			return indexed, fmt.Errorf("ログ行の挿入に失敗しました: %w", err)
		}
		if rows, err := result.RowsAffected(); err == nil && rows > 0 {
			indexed++
		}
	}
	if err := scanner.Err(); err != nil {
		return indexed, fmt.Errorf("パーティションファイルの読み込みに失敗しました: %w", err)
	}
	return indexed, nil
}

// IngestAll indexes every partition the store currently retains.
func (ix *Index) IngestAll(store *logging.LocalLogStore) (int, error) {
	total := 0
	var firstErr error
	store.WalkPartitions(func(path string, key logging.DayKey) {
		n, err := ix.IngestPartition(path, key.Category)
		total += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return total, firstErr
}

// LevelCount is one row of the activity summary.
type LevelCount struct {
	Category string
	Level    string
	Count    int
}

// Summary counts indexed lines per category and level since the given time.
func (ix *Index) Summary(since time.Time) ([]LevelCount, error) {
	rows, err := ix.db.Query(`
		SELECT category, level, COUNT(*) AS n
		FROM log_lines
		WHERE logged_at >= ?
		GROUP BY category, level
		ORDER BY category, level;`, since)
	if err != nil {
		return nil, fmt.Errorf("集計クエリの実行に失敗しました: %w", err)
	}
	defer rows.Close()

	var counts []LevelCount
	for rows.Next() {
		var c LevelCount
		if err := rows.Scan(&c.Category, &c.Level, &c.Count); err != nil {
			return nil, fmt.Errorf("集計結果の読み取りに失敗しました: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Report renders the summary as a single human-readable line for the weekly
// status entry.
func (ix *Index) Report(since time.Time) (string, error) {
	counts, err := ix.Summary(since)
	if err != nil {
		return "", err
	}
	if len(counts) == 0 {
		return "no indexed activity in the reporting window", nil
	}

	var parts []string
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s/%s=%d", c.Category, c.Level, c.Count))
	}
	return "weekly activity: " + strings.Join(parts, ", "), nil
}

// Close closes the database connection.
func (ix *Index) Close() error {
	if ix.db != nil {
		return ix.db.Close()
	}
	return nil
}
