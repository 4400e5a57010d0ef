package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

var schemas = map[string][]string{
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS triage_results (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			payload TEXT NOT NULL,
			processed_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_triage_results_processed_at ON triage_results(processed_at)`,
	},
	"mysql": {
		`CREATE TABLE IF NOT EXISTS triage_results (
			id CHAR(36) PRIMARY KEY,
			label VARCHAR(16) NOT NULL,
			confidence DOUBLE NOT NULL,
			payload MEDIUMTEXT NOT NULL,
			processed_at BIGINT NOT NULL,
			INDEX idx_triage_results_processed_at (processed_at)
		)`,
	},
}

var upserts = map[string]string{
	"sqlite3": `INSERT OR REPLACE INTO triage_results (id, label, confidence, payload, processed_at)
		VALUES (:id, :label, :confidence, :payload, :processed_at)`,
	"mysql": `INSERT INTO triage_results (id, label, confidence, payload, processed_at)
		VALUES (:id, :label, :confidence, :payload, :processed_at)
		ON DUPLICATE KEY UPDATE
			label = VALUES(label),
			confidence = VALUES(confidence),
			payload = VALUES(payload),
			processed_at = VALUES(processed_at)`,
}

// resultRow is the stored form of a TriageResult
type resultRow struct {
	ID          string  `db:"id"`
	Label       string  `db:"label"`
	Confidence  float64 `db:"confidence"`
	Payload     string  `db:"payload"`
	ProcessedAt int64   `db:"processed_at"`
}

type statsRow struct {
	Total         int             `db:"total"`
	Productive    sql.NullInt64   `db:"productive"`
	AvgConfidence sql.NullFloat64 `db:"avg_confidence"`
	LastAt        sql.NullInt64   `db:"last_at"`
}

// SQLStore persists results with sqlx on SQLite or MySQL
type SQLStore struct {
	db     *sqlx.DB
	upsert string
	logger *zap.Logger
}

// NewSQLStore connects to the database and creates the results table.
// driver is either "sqlite3" or "mysql".
func NewSQLStore(driver, dsn string, logger *zap.Logger) (*SQLStore, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s store: %w", driver, err)
	}

	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create results schema: %w", err)
		}
	}

	logger.Info("Result store ready", zap.String("driver", driver))
	return &SQLStore{db: db, upsert: upserts[driver], logger: logger}, nil
}

// Save stores a result, assigning an id when it has none
func (s *SQLStore) Save(ctx context.Context, result *core.TriageResult) (string, error) {
	if result == nil || result.Classification == nil {
		return "", errors.New("cannot save an incomplete result")
	}

	stored := *result
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	payload, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}

	row := resultRow{
		ID:          stored.ID,
		Label:       string(stored.Classification.Label),
		Confidence:  stored.Classification.Confidence,
		Payload:     string(payload),
		ProcessedAt: stored.ProcessedAt.UnixMilli(),
	}
	if _, err := s.db.NamedExecContext(ctx, s.upsert, row); err != nil {
		s.logger.Error("Failed to save result", zap.String("id", row.ID), zap.Error(err))
		return "", fmt.Errorf("failed to save result %s: %w", row.ID, err)
	}

	return stored.ID, nil
}

// Get returns a stored result, or nil when the id is unknown
func (s *SQLStore) Get(ctx context.Context, id string) (*core.TriageResult, error) {
	var row resultRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT id, label, confidence, payload, processed_at FROM triage_results WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load result %s: %w", id, err)
	}

	var result core.TriageResult
	if err := json.Unmarshal([]byte(row.Payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode result %s: %w", id, err)
	}
	return &result, nil
}

// Stats aggregates every stored result
func (s *SQLStore) Stats(ctx context.Context) (*core.ProcessingStats, error) {
	var row statsRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT
			COUNT(*) AS total,
			SUM(CASE WHEN label = ? THEN 1 ELSE 0 END) AS productive,
			AVG(confidence) AS avg_confidence,
			MAX(processed_at) AS last_at
		FROM triage_results
	`), string(core.LabelProductive))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate results: %w", err)
	}

	stats := &core.ProcessingStats{
		Total:             row.Total,
		Productive:        int(row.Productive.Int64),
		Unproductive:      row.Total - int(row.Productive.Int64),
		AverageConfidence: row.AvgConfidence.Float64,
	}
	if row.LastAt.Valid {
		last := time.UnixMilli(row.LastAt.Int64)
		stats.LastProcessedAt = &last
	}
	return stats, nil
}

// Close closes the database connection pool
func (s *SQLStore) Close() error {
	return s.db.Close()
}
