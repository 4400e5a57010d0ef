package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

// dialect holds the driver specific statements of a SQL cache
type dialect struct {
	name     string
	driver   string
	maxConns int
	schema   []string
	upsert   string
}

var sqliteDialect = dialect{
	name:     "SQLite",
	driver:   "sqlite3",
	maxConns: 1,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS triage_cache (
			fingerprint TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			last_seen INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_triage_cache_expires_at ON triage_cache(expires_at)`,
	},
	upsert: `INSERT OR REPLACE INTO triage_cache (fingerprint, payload, last_seen, expires_at)
		VALUES (?, ?, ?, ?)`,
}

var mysqlDialect = dialect{
	name:   "MySQL",
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS triage_cache (
			fingerprint CHAR(64) PRIMARY KEY,
			payload MEDIUMTEXT NOT NULL,
			last_seen BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_triage_cache_expires_at (expires_at)
		)`,
	},
	upsert: `INSERT INTO triage_cache (fingerprint, payload, last_seen, expires_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			payload = VALUES(payload),
			last_seen = VALUES(last_seen),
			expires_at = VALUES(expires_at)`,
}

// SQLCache is a SQL implementation of the CacheRepository interface backed
// by SQLite or MySQL. Timestamps are stored as unix milliseconds.
type SQLCache struct {
	db          *sql.DB
	dialect     dialect
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLCache, error) {
	return newSQLCache(sqliteDialect, dbPath, logger, cleanupFreq)
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLCache, error) {
	return newSQLCache(mysqlDialect, dsn, logger, cleanupFreq)
}

func newSQLCache(d dialect, dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLCache, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.name, err)
	}

	if d.maxConns > 0 {
		db.SetMaxOpenConns(d.maxConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", d.name, err)
	}

	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s cache schema: %w", d.name, err)
		}
	}

	cache := &SQLCache{
		db:          db,
		dialect:     d,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache, nil
}

// Get retrieves a cached entry for a fingerprint
func (c *SQLCache) Get(ctx context.Context, fingerprint string) (*core.CacheEntry, error) {
	var payload string
	var lastSeen, expiresAt int64

	err := c.db.QueryRowContext(ctx, `
		SELECT payload, last_seen, expires_at
		FROM triage_cache
		WHERE fingerprint = ? AND expires_at > ?
	`, fingerprint, time.Now().UnixMilli()).Scan(&payload, &lastSeen, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	result, err := decodeResult([]byte(payload))
	if err != nil {
		return nil, err
	}

	return &core.CacheEntry{
		Fingerprint: fingerprint,
		Result:      result,
		LastSeen:    time.UnixMilli(lastSeen),
		ExpiresAt:   time.UnixMilli(expiresAt),
	}, nil
}

// Set stores a cache entry
func (c *SQLCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	payload, err := encodeResult(entry.Result)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx, c.dialect.upsert,
		entry.Fingerprint, string(payload), entry.LastSeen.UnixMilli(), entry.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}

	return nil
}

// Delete removes a cache entry
func (c *SQLCache) Delete(ctx context.Context, fingerprint string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM triage_cache WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// Cleanup removes expired entries
func (c *SQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM triage_cache WHERE expires_at <= ?`, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries",
			zap.String("backend", c.dialect.name),
			zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *SQLCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database connection
func (c *SQLCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close cache database", zap.String("backend", c.dialect.name), zap.Error(err))
	}
}
