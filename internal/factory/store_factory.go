package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/store"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
)

// StoreFactory creates result repositories based on configuration
type StoreFactory struct {
	cfg       *config.Config
	logger    *zap.Logger
	resources *Resources
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger, resources *Resources) *StoreFactory {
	return &StoreFactory{
		cfg:       cfg,
		logger:    logger,
		resources: resources,
	}
}

// CreateResultRepository creates the result repository, or nil when
// results are not kept
func (f *StoreFactory) CreateResultRepository() (core.ResultRepository, error) {
	storeCfg, err := f.cfg.GetStore()
	if err != nil {
		return nil, err
	}

	switch storeCfg.Type {
	case "none":
		return nil, nil
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		if err := ensureDir(storeCfg.SQLitePath); err != nil {
			return nil, err
		}
		return f.sqlStore("sqlite3", storeCfg.SQLitePath)
	case "mysql":
		return f.sqlStore("mysql", storeCfg.MySQLDSN)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}

func (f *StoreFactory) sqlStore(driver, dsn string) (core.ResultRepository, error) {
	s, err := store.NewSQLStore(driver, dsn, f.logger)
	if err != nil {
		return nil, err
	}
	f.resources.Add(s.Close)
	return s, nil
}
