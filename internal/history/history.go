// Package history persists completed scan reports in sqlite so past results
// can be replayed without rescanning.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/a11ygate/a11ygate/internal/logging"
	"github.com/a11ygate/a11ygate/internal/model"
)

// ErrNotFound is returned when no scan exists for a request id.
var ErrNotFound = errors.New("scan not found")

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	request_id  TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	total       INTEGER NOT NULL,
	critical    INTEGER NOT NULL,
	serious     INTEGER NOT NULL,
	moderate    INTEGER NOT NULL,
	minor       INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at  TEXT NOT NULL,
	report      BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at DESC);
`

// Summary is one row of the scan history listing.
type Summary struct {
	RequestID  string      `json:"requestId"`
	URL        string      `json:"url"`
	Stats      model.Stats `json:"stats"`
	DurationMs int64       `json:"durationMs"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Store is a sqlite-backed scan archive. Writes are serialized; sqlite does
// not tolerate concurrent writers on one connection.
type Store struct {
	db     *sql.DB
	logger logging.Logger

	writeMu sync.Mutex
}

// NewStore prepares the schema on the given database handle. The caller owns
// the handle's lifecycle.
func NewStore(db *sql.DB, logger logging.Logger) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Save archives one completed scan. The full report is kept as a JSON blob
// next to the queryable aggregate columns.
func (s *Store) Save(ctx context.Context, res *model.ScanResult) error {
	report, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scans (request_id, url, total, critical, serious, moderate, minor, duration_ms, created_at, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RequestID, res.URL,
		res.Stats.Total, res.Stats.Critical, res.Stats.Serious, res.Stats.Moderate, res.Stats.Minor,
		res.Performance.Duration, res.Timestamp.UTC().Format(time.RFC3339Nano), report,
	)
	if err != nil {
		return fmt.Errorf("inserting scan %s: %w", res.RequestID, err)
	}

	if s.logger != nil {
		s.logger.Debug("scan archived", logging.Field{Key: "request_id", Value: res.RequestID})
	}
	return nil
}

// List returns the most recent scans, newest first. limit <= 0 means 50.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, url, total, critical, serious, moderate, minor, duration_ms, created_at
		 FROM scans ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var createdAt string
		if err := rows.Scan(&sum.RequestID, &sum.URL,
			&sum.Stats.Total, &sum.Stats.Critical, &sum.Stats.Serious, &sum.Stats.Moderate, &sum.Stats.Minor,
			&sum.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			sum.CreatedAt = ts
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get loads one archived scan report by request id.
func (s *Store) Get(ctx context.Context, requestID string) (*model.ScanResult, error) {
	var report []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM scans WHERE request_id = ?`, requestID).Scan(&report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading scan %s: %w", requestID, err)
	}

	var res model.ScanResult
	if err := json.Unmarshal(report, &res); err != nil {
		return nil, fmt.Errorf("decoding report %s: %w", requestID, err)
	}
	return &res, nil
}
