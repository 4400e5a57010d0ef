package resilience

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/core"
)

// GuardedClassifier runs an ExternalClassifier through a circuit breaker.
// Every failure is returned as a core.ExternalClassifierError.
type GuardedClassifier struct {
	inner   core.ExternalClassifier
	breaker *CircuitBreaker
	retry   RetryConfig
	logger  *zap.Logger
}

// NewGuardedClassifier wraps inner
func NewGuardedClassifier(inner core.ExternalClassifier, breaker *CircuitBreaker, retry RetryConfig, logger *zap.Logger) *GuardedClassifier {
	return &GuardedClassifier{
		inner:   inner,
		breaker: breaker,
		retry:   retry,
		logger:  logger,
	}
}

// ClassifyMessage implements core.ExternalClassifier
func (g *GuardedClassifier) ClassifyMessage(ctx context.Context, msg *core.NormalizedMessage, extra map[string]string) (*core.ClassificationResult, error) {
	var result *core.ClassificationResult
	err := WithRetry(ctx, g.logger, g.retry, func(ctx context.Context) error {
		return g.breaker.Execute(ctx, func(ctx context.Context) error {
			r, err := g.inner.ClassifyMessage(ctx, msg, extra)
			if err != nil {
				return err
			}
			if r == nil || !r.Label.Valid() || r.Confidence < 0 || r.Confidence > 1 {
				return fmt.Errorf("invalid classification %+v", r)
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, core.NewExternalClassifierError(fmt.Sprintf("classifier %s failed", g.breaker.Name()), err)
	}
	return result, nil
}

// GuardedResponder runs an ExternalResponder through a circuit breaker.
// Every failure is returned as a core.ExternalClassifierError.
type GuardedResponder struct {
	inner   core.ExternalResponder
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewGuardedResponder wraps inner
func NewGuardedResponder(inner core.ExternalResponder, breaker *CircuitBreaker, logger *zap.Logger) *GuardedResponder {
	return &GuardedResponder{
		inner:   inner,
		breaker: breaker,
		logger:  logger,
	}
}

// SuggestReply implements core.ExternalResponder
func (g *GuardedResponder) SuggestReply(ctx context.Context, raw *core.RawMessage, msg *core.NormalizedMessage, cls *core.ClassificationResult) (*core.SuggestedReply, error) {
	var reply *core.SuggestedReply
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		r, err := g.inner.SuggestReply(ctx, raw, msg, cls)
		if err != nil {
			return err
		}
		if r == nil || r.Body == "" {
			return errors.New("empty reply")
		}
		reply = r
		return nil
	})
	if err != nil {
		g.logger.Debug("Responder call failed", zap.String("breaker", g.breaker.Name()), zap.Error(err))
		return nil, core.NewExternalClassifierError(fmt.Sprintf("responder %s failed", g.breaker.Name()), err)
	}
	return reply, nil
}
