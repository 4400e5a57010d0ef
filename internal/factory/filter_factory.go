package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/filter"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/ports"
)

// FilterFactory creates message filters based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service ports.Triager
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service ports.Triager) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateMessageFilter creates the Postfix content filter
func (f *FilterFactory) CreateMessageFilter() (ports.MessageFilter, error) {
	serverCfg, err := f.cfg.GetServer()
	if err != nil {
		return nil, err
	}
	return filter.NewPostfixFilter(f.service, f.logger, serverCfg), nil
}
