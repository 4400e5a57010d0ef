// Package di wires the triage service and its adapters with dig.
package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/catalog"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/factory"
	"github.com/mikey/mail-triage/internal/logging"
	"github.com/mikey/mail-triage/internal/normalize"
	"github.com/mikey/mail-triage/internal/ports"
	"github.com/mikey/mail-triage/internal/templates"
	"github.com/mikey/mail-triage/internal/utils"
)

// ServiceParams are the collaborators of the triage service
type ServiceParams struct {
	dig.In

	Config   *config.Config
	Logger   *zap.Logger
	Catalogs *catalog.Catalogs
	Remote   factory.Remote
	Cache    core.CacheRepository  `name:"cache" optional:"true"`
	Store    core.ResultRepository `name:"store" optional:"true"`
	Notifier core.Notifier         `name:"notifier" optional:"true"`
}

// NewTriageService assembles the service from the configured adapters
func NewTriageService(p ServiceParams) (*core.TriageService, error) {
	triageCfg, err := p.Config.GetTriage()
	if err != nil {
		return nil, err
	}

	var options []core.ServiceOption
	if p.Remote.Classifier != nil {
		options = append(options, core.WithExternalClassifier(p.Remote.Classifier))
	}
	if p.Remote.Responder != nil {
		options = append(options, core.WithExternalResponder(p.Remote.Responder))
	}
	if p.Cache != nil {
		options = append(options, core.WithCache(p.Cache))
	}
	if p.Store != nil {
		options = append(options, core.WithRepository(p.Store))
	}
	if p.Notifier != nil {
		options = append(options, core.WithNotifier(p.Notifier))
	}

	p.Logger.Info("Triage service configured",
		zap.String("strategy", triageCfg.Strategy),
		zap.String("reply_strategy", triageCfg.ReplyStrategy),
		zap.Float64("escalation_threshold", triageCfg.EscalationThreshold),
		zap.Bool("cache", p.Cache != nil),
		zap.Bool("store", p.Store != nil))

	return core.NewTriageService(
		normalize.New(),
		p.Catalogs.Engine,
		templates.NewRenderer(p.Catalogs.Templates, p.Logger),
		p.Logger,
		triageCfg.Options(),
		options...,
	), nil
}

// provideCore registers everything below the inbound filters. It expects
// *config.Config and *zap.Logger to be provided already.
func provideCore(container *dig.Container) error {
	providers := []any{
		factory.NewResources,
		factory.NewTextProcessorFactory,
		func(f *factory.TextProcessorFactory) *utils.TextProcessor {
			return f.CreateTextProcessor()
		},
		factory.NewRedisFactory,
		factory.NewLLMFactory,
		factory.NewCacheFactory,
		factory.NewStoreFactory,
		factory.NewNotifyFactory,
		func(cfg *config.Config, logger *zap.Logger) (*catalog.Catalogs, error) {
			return catalog.Build(cfg.GetCatalogPath(), logger)
		},
		func(f *factory.LLMFactory) (factory.Remote, error) {
			return f.CreateRemote()
		},
		NewTriageService,
		func(s *core.TriageService) ports.Triager { return s },
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}

	named := []struct {
		name     string
		provider any
	}{
		{"cache", func(f *factory.CacheFactory) (core.CacheRepository, error) { return f.CreateCacheRepository() }},
		{"store", func(f *factory.StoreFactory) (core.ResultRepository, error) { return f.CreateResultRepository() }},
		{"notifier", func(f *factory.NotifyFactory) (core.Notifier, error) { return f.CreateNotifier() }},
	}
	for _, n := range named {
		if err := container.Provide(n.provider, dig.Name(n.name)); err != nil {
			return err
		}
	}
	return nil
}

// BuildContainer creates and configures a dependency injection container
// for the content filter daemon
func BuildContainer(configPath string) (*dig.Container, error) {
	container := dig.New()

	if err := container.Provide(func() (*config.Config, error) {
		return config.New(configPath)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}
	if err := provideCore(container); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) (ports.MessageFilter, error) {
		return f.CreateMessageFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
