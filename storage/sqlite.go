package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/feedwatch/metrics-alerting/common"
	_ "github.com/mattn/go-sqlite3"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("storage")

// ErrNoRuns signals that no run outcome was recorded yet
var ErrNoRuns = errors.New("no runs recorded")

const defaultRunsLimit = 50

// sqliteRunStore is the sqlite implementation for the run-history journal
type sqliteRunStore struct {
	db               *sql.DB
	retentionSeconds int
	cancelFunc       context.CancelFunc
	wg               sync.WaitGroup
}

// NewSQLiteRunStore creates the database, schema, and starts the retention cleaner
func NewSQLiteRunStore(dbPath string, retentionSeconds int) (*sqliteRunStore, error) {
	err := prepareDirectories(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial empty DB file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = createSchema(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &sqliteRunStore{
		db:               db,
		retentionSeconds: retentionSeconds,
		cancelFunc:       cancel,
	}

	s.startRetentionCleaner(ctx)

	return s, nil
}

func prepareDirectories(dbPath string) error {
	return os.MkdirAll(filepath.Dir(dbPath), os.ModePerm)
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		started_at  INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		evaluated   INTEGER NOT NULL,
		alerted     INTEGER NOT NULL,
		skipped     INTEGER NOT NULL,
		failed      INTEGER NOT NULL,
		error       TEXT    NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveRun appends one run outcome to the journal
func (s *sqliteRunStore) SaveRun(ctx context.Context, record common.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, duration_ms, evaluated, alerted, skipped, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.StartedAt, record.DurationMs, record.Evaluated, record.Alerted, record.Skipped, record.Failed, record.Error)
	if err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}

	return nil
}

// LatestRun returns the most recently started run outcome
func (s *sqliteRunStore) LatestRun(ctx context.Context) (*common.RunRecord, error) {
	var record common.RunRecord

	err := s.db.QueryRowContext(ctx, `
		SELECT started_at, duration_ms, evaluated, alerted, skipped, failed, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(&record.StartedAt, &record.DurationMs, &record.Evaluated,
		&record.Alerted, &record.Skipped, &record.Failed, &record.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// Runs returns up to limit run outcomes, most recent first
func (s *sqliteRunStore) Runs(ctx context.Context, limit int) ([]common.RunRecord, error) {
	if limit < 1 {
		limit = defaultRunsLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT started_at, duration_ms, evaluated, alerted, skipped, failed, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []common.RunRecord
	for rows.Next() {
		var record common.RunRecord
		err = rows.Scan(&record.StartedAt, &record.DurationMs, &record.Evaluated,
			&record.Alerted, &record.Skipped, &record.Failed, &record.Error)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func (s *sqliteRunStore) cleanRetainedRuns(ctx context.Context) error {
	nowSec := time.Now().Unix()
	cutoff := nowSec - int64(s.retentionSeconds)
	_, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff)
	return err
}

func (s *sqliteRunStore) startRetentionCleaner(ctx context.Context) {
	s.wg.Add(1)

	// max(RetentionSeconds/10, 60)
	intervalSec := s.retentionSeconds / 10
	if intervalSec < 60 {
		intervalSec = 60
	}

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)

	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Debug("running retention cleanup")

				err := s.cleanRetainedRuns(ctx)
				if err != nil {
					log.Warn("failed to cleanup retained runs", "error", err)
				}
			}
		}
	}()
}

// Close closes the database and stops background routines
func (s *sqliteRunStore) Close() error {
	s.cancelFunc()
	s.wg.Wait()
	return s.db.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *sqliteRunStore) IsInterfaceNil() bool {
	return s == nil
}
