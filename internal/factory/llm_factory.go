package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/resilience"
	"github.com/mikey/mail-triage/internal/utils"
)

// LLMClient is a provider client able to both classify and draft replies
type LLMClient interface {
	core.ExternalClassifier
	core.ExternalResponder
}

// Remote holds the guarded remote collaborators of the service. Fields are
// nil when the configured strategies never call out.
type Remote struct {
	Classifier core.ExternalClassifier
	Responder  core.ExternalResponder
}

// LLMFactory creates LLM clients
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	resources     *Resources
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor, resources *Resources) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
		resources:     resources,
	}
}

// CreateLLMClient creates a new LLM client based on the configuration
func (f *LLMFactory) CreateLLMClient() (LLMClient, error) {
	llmConfig, err := f.cfg.GetLLM()
	if err != nil {
		return nil, err
	}

	switch llmConfig.Provider {
	case "bedrock":
		return NewBedrockFactory(f.cfg, f.logger, f.textProcessor).CreateLLMClient()
	case "gemini":
		return NewGeminiFactory(f.cfg, f.logger, f.textProcessor, f.resources).CreateLLMClient()
	case "openai":
		return NewOpenAIFactory(f.cfg, f.logger, f.textProcessor).CreateLLMClient()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}

// CreateRemote builds the breaker-guarded classifier and responder needed
// by the configured strategies. Local-only setups get an empty Remote and
// never touch provider credentials.
func (f *LLMFactory) CreateRemote() (Remote, error) {
	triageCfg, err := f.cfg.GetTriage()
	if err != nil {
		return Remote{}, err
	}
	wantClassifier := triageCfg.Strategy == string(core.StrategyRemote)
	wantResponder := triageCfg.ReplyStrategy == string(core.ReplyRemote)
	if !wantClassifier && !wantResponder {
		return Remote{}, nil
	}

	escalation, err := f.cfg.GetEscalation()
	if err != nil {
		return Remote{}, err
	}
	client, err := f.CreateLLMClient()
	if err != nil {
		return Remote{}, err
	}

	provider := f.cfg.GetString("llm.provider")
	breakerCfg := func(name string) resilience.Config {
		return resilience.Config{
			Name:          provider + "-" + name,
			MaxFailures:   escalation.MaxFailures,
			Timeout:       escalation.Timeout,
			HalfOpenLimit: escalation.HalfOpenLimit,
			ResetInterval: escalation.ResetInterval,
		}
	}

	var remote Remote
	if wantClassifier {
		retry := resilience.DefaultRetryConfig()
		retry.MaxAttempts = escalation.RetryAttempts
		remote.Classifier = resilience.NewGuardedClassifier(
			client,
			resilience.NewCircuitBreaker(breakerCfg("classifier"), f.logger),
			retry,
			f.logger,
		)
	}
	if wantResponder {
		remote.Responder = resilience.NewGuardedResponder(
			client,
			resilience.NewCircuitBreaker(breakerCfg("responder"), f.logger),
			f.logger,
		)
	}

	f.logger.Info("Remote provider configured",
		zap.String("provider", provider),
		zap.Bool("classifier", wantClassifier),
		zap.Bool("responder", wantResponder))
	return remote, nil
}
