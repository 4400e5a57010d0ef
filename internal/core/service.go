package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Strategy selects how messages are classified
type Strategy string

const (
	// StrategyLocalRules classifies with the rule engine only
	StrategyLocalRules Strategy = "local_rules"
	// StrategyRemote escalates low-confidence results to an external classifier
	StrategyRemote Strategy = "remote"
)

// ReplyStrategy selects how replies are produced
type ReplyStrategy string

const (
	// ReplyTemplates renders replies from the template catalog
	ReplyTemplates ReplyStrategy = "templates"
	// ReplyRemote asks the external responder for escalated messages
	ReplyRemote ReplyStrategy = "remote"
)

// Pipeline events sent to the Notifier
const (
	EventProcessed        = "message.processed"
	EventFailed           = "message.failed"
	EventEscalationFailed = "classification.escalation_failed"
	EventResponderFailed  = "reply.responder_failed"
)

// Options configures a TriageService
type Options struct {
	Strategy            Strategy
	ReplyStrategy       ReplyStrategy
	EscalationThreshold float64
	EscalationTimeout   time.Duration
	MaxInputBytes       int
	CacheEnabled        bool
	CacheTTL            time.Duration
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		Strategy:            StrategyLocalRules,
		ReplyStrategy:       ReplyTemplates,
		EscalationThreshold: 0.8,
		EscalationTimeout:   10 * time.Second,
		MaxInputBytes:       100 * 1024,
		CacheEnabled:        true,
		CacheTTL:            24 * time.Hour,
	}
}

// ServiceOption attaches an optional collaborator to a TriageService
type ServiceOption func(*TriageService)

// WithExternalClassifier sets the classifier used on escalation
func WithExternalClassifier(c ExternalClassifier) ServiceOption {
	return func(s *TriageService) { s.external = c }
}

// WithExternalResponder sets the responder used for escalated messages
func WithExternalResponder(r ExternalResponder) ServiceOption {
	return func(s *TriageService) { s.responder = r }
}

// WithCache sets the result cache
func WithCache(c CacheRepository) ServiceOption {
	return func(s *TriageService) { s.cache = c }
}

// WithRepository sets the result repository
func WithRepository(r ResultRepository) ServiceOption {
	return func(s *TriageService) { s.repository = r }
}

// WithNotifier sets the event sink
func WithNotifier(n Notifier) ServiceOption {
	return func(s *TriageService) { s.notifier = n }
}

// TriageService is the core service: it normalizes, classifies and drafts a
// reply for each message. It is safe for concurrent use.
type TriageService struct {
	normalizer Normalizer
	classifier LocalClassifier
	replies    ReplyBuilder
	external   ExternalClassifier
	responder  ExternalResponder
	cache      CacheRepository
	repository ResultRepository
	notifier   Notifier
	logger     *zap.Logger
	opts       Options
}

// NewTriageService creates a new triage service
func NewTriageService(
	normalizer Normalizer,
	classifier LocalClassifier,
	replies ReplyBuilder,
	logger *zap.Logger,
	opts Options,
	options ...ServiceOption,
) *TriageService {
	s := &TriageService{
		normalizer: normalizer,
		classifier: classifier,
		replies:    replies,
		logger:     logger,
		opts:       opts,
	}
	for _, o := range options {
		o(s)
	}

	if s.opts.Strategy == StrategyRemote && s.external == nil {
		logger.Warn("Remote strategy configured without an external classifier, using local rules only")
	}
	return s
}

// Fingerprint is the cache key of a message
func Fingerprint(subject, body string) string {
	h := sha256.New()
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}

// Process runs one message through the pipeline. On failure it returns a
// *StageError and no result.
func (s *TriageService) Process(ctx context.Context, req *TriageRequest) (*TriageResult, error) {
	start := time.Now()
	stage := StagePending
	size := 0
	if req != nil {
		size = len(req.Body)
	}

	fail := func(err error) (*TriageResult, error) {
		s.logger.Error("Triage failed",
			zap.String("stage", string(stage)),
			zap.Int("input_size", size),
			zap.String("code", Code(err)),
			zap.Error(err))
		s.record(context.WithoutCancel(ctx), EventFailed, map[string]any{
			"stage":      string(stage),
			"input_size": size,
			"code":       Code(err),
			"error":      err.Error(),
		})
		return nil, &StageError{Stage: stage, InputSize: size, Err: err}
	}

	if err := s.validate(req); err != nil {
		return fail(err)
	}

	fingerprint := Fingerprint(req.Subject, req.Body)
	useCache := s.cache != nil && s.opts.CacheEnabled && len(req.Context) == 0
	if useCache {
		if cached := s.lookup(ctx, fingerprint, req); cached != nil {
			return cached, nil
		}
	}

	raw := &RawMessage{
		Body:           req.Body,
		Subject:        req.Subject,
		Sender:         req.Sender,
		Recipients:     req.Recipients,
		ReceivedAt:     start,
		HasAttachments: req.HasAttachments,
	}

	msg := s.normalizer.Normalize(raw.Body, raw.Subject, raw.HasAttachments)
	stage = StageNormalized

	var warnings []string
	cls := s.classifier.Classify(msg)
	escalated := false
	if s.shouldEscalate(cls) {
		remote, err := s.escalate(ctx, msg, req.Context)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("escalation failed, kept local result: %v", err))
			s.logger.Warn("Escalation failed, keeping local classification",
				zap.Float64("local_confidence", cls.Confidence),
				zap.Error(err))
			s.record(context.WithoutCancel(ctx), EventEscalationFailed, map[string]any{
				"code":             Code(err),
				"error":            err.Error(),
				"local_label":      string(cls.Label),
				"local_confidence": cls.Confidence,
			})
		} else {
			s.logger.Debug("Escalated classification",
				zap.String("local_label", string(cls.Label)),
				zap.Float64("local_confidence", cls.Confidence),
				zap.String("remote_label", string(remote.Label)),
				zap.Float64("remote_confidence", remote.Confidence))
			cls = remote
			escalated = true
		}
	}
	stage = StageClassified

	// the caller may go away once a classification exists
	ctx = context.WithoutCancel(ctx)

	reply, err := s.reply(ctx, raw, msg, cls, req.Context, escalated, &warnings)
	if err != nil {
		return fail(err)
	}

	result := &TriageResult{
		ID:             uuid.NewString(),
		Subject:        req.Subject,
		Sender:         req.Sender,
		Classification: cls,
		Reply:          reply,
		Metadata: Metadata{
			WordCount:      msg.WordCount,
			Language:       msg.Language,
			HasAttachments: msg.HasAttachments,
		},
		Priority:    cls.Priority(),
		Escalated:   escalated,
		Warnings:    warnings,
		Stage:       StageCompleted,
		ProcessedAt: time.Now(),
	}

	if s.repository != nil {
		id, err := s.repository.Save(ctx, result)
		if err != nil {
			return fail(NewPersistenceError("failed to save result", err))
		}
		if id != "" {
			result.ID = id
		}
	}
	stage = StageCompleted

	// a degraded result must not outlive the failure that produced it
	if useCache && len(warnings) == 0 {
		entry := &CacheEntry{
			Fingerprint: fingerprint,
			Result:      result,
			LastSeen:    time.Now(),
			ExpiresAt:   time.Now().Add(s.opts.CacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	s.logger.Info("Message triaged",
		zap.String("id", result.ID),
		zap.String("label", string(cls.Label)),
		zap.Float64("confidence", cls.Confidence),
		zap.String("priority", string(result.Priority)),
		zap.String("model", cls.ModelUsed),
		zap.Bool("escalated", escalated),
		zap.Duration("duration", time.Since(start)))

	s.record(ctx, EventProcessed, map[string]any{
		"id":          result.ID,
		"label":       string(cls.Label),
		"confidence":  cls.Confidence,
		"priority":    string(result.Priority),
		"escalated":   escalated,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return result, nil
}

func (s *TriageService) validate(req *TriageRequest) error {
	if req == nil || strings.TrimSpace(req.Body) == "" {
		return NewValidationError("message body is empty", nil)
	}
	if s.opts.MaxInputBytes > 0 && len(req.Body) > s.opts.MaxInputBytes {
		return NewValidationError(fmt.Sprintf("message body is %d bytes, limit is %d", len(req.Body), s.opts.MaxInputBytes), nil)
	}
	if !utf8.ValidString(req.Body) || !utf8.ValidString(req.Subject) {
		return NewUnsupportedInputError("message is not valid UTF-8", nil)
	}
	return nil
}

// lookup returns a copy of a cached result, or nil on a miss
func (s *TriageService) lookup(ctx context.Context, fingerprint string, req *TriageRequest) *TriageResult {
	entry, err := s.cache.Get(ctx, fingerprint)
	if errors.Is(err, ErrCacheMiss) {
		return nil
	}
	if err != nil {
		s.logger.Warn("Cache lookup failed", zap.Error(err))
		return nil
	}
	if entry == nil || entry.Result == nil {
		return nil
	}

	s.logger.Debug("Cache hit", zap.String("fingerprint", fingerprint))
	result := *entry.Result
	result.Metadata.HasAttachments = req.HasAttachments
	return &result
}

func (s *TriageService) shouldEscalate(cls *ClassificationResult) bool {
	return s.opts.Strategy == StrategyRemote &&
		s.external != nil &&
		cls.Confidence < s.opts.EscalationThreshold
}

func (s *TriageService) escalate(ctx context.Context, msg *NormalizedMessage, extra map[string]string) (*ClassificationResult, error) {
	if s.opts.EscalationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.EscalationTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.external.ClassifyMessage(ctx, msg, extra)
	if err != nil {
		return nil, NewExternalClassifierError("external classification failed", err)
	}
	if result == nil || !result.Label.Valid() || result.Confidence < 0 || result.Confidence > 1 {
		return nil, NewExternalClassifierError(fmt.Sprintf("external classifier returned an invalid result %+v", result), nil)
	}
	if result.ProcessingTime == 0 {
		result.ProcessingTime = time.Since(start)
	}
	return result, nil
}

func (s *TriageService) reply(
	ctx context.Context,
	raw *RawMessage,
	msg *NormalizedMessage,
	cls *ClassificationResult,
	extra map[string]string,
	escalated bool,
	warnings *[]string,
) (*SuggestedReply, error) {
	if escalated && s.opts.ReplyStrategy == ReplyRemote && s.responder != nil {
		tctx := ctx
		if s.opts.EscalationTimeout > 0 {
			var cancel context.CancelFunc
			tctx, cancel = context.WithTimeout(ctx, s.opts.EscalationTimeout)
			defer cancel()
		}

		reply, err := s.responder.SuggestReply(tctx, raw, msg, cls)
		if err == nil && reply != nil && reply.Body != "" {
			return reply, nil
		}
		if err == nil {
			err = errors.New("responder returned an empty reply")
		}
		*warnings = append(*warnings, fmt.Sprintf("responder failed, used template reply: %v", err))
		s.logger.Warn("External responder failed, falling back to templates", zap.Error(err))
		s.record(ctx, EventResponderFailed, map[string]any{"error": err.Error()})
	}

	return s.replies.BuildReply(raw, msg, cls, extra)
}

// record sends an event to the notifier; failures are only logged
func (s *TriageService) record(ctx context.Context, event string, fields map[string]any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Record(ctx, event, fields); err != nil {
		s.logger.Warn("Failed to record event", zap.String("event", event), zap.Error(err))
	}
}

// BatchItem is the outcome of one message in a batch
type BatchItem struct {
	Result *TriageResult
	Err    error
}

// ProcessBatch runs up to concurrency messages at a time. Per-message
// failures are reported in the returned items; the error is only set when
// ctx ends before every message was started.
func (s *TriageService) ProcessBatch(ctx context.Context, reqs []*TriageRequest, concurrency int) ([]BatchItem, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	items := make([]BatchItem, len(reqs))
	started := make([]bool, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, req := range reqs {
		i, req := i, req
		if gctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			res, err := s.Process(gctx, req)
			items[i] = BatchItem{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var batchErr error
	for i := range items {
		if !started[i] {
			items[i].Err = ctx.Err()
			batchErr = ctx.Err()
		}
	}
	return items, batchErr
}

// Get returns a stored result by id, or nil when it does not exist
func (s *TriageService) Get(ctx context.Context, id string) (*TriageResult, error) {
	if s.repository == nil {
		return nil, NewPersistenceError("no result repository configured", nil)
	}
	result, err := s.repository.Get(ctx, id)
	if err != nil {
		return nil, NewPersistenceError(fmt.Sprintf("failed to load result %s", id), err)
	}
	return result, nil
}

// Stats aggregates every stored result
func (s *TriageService) Stats(ctx context.Context) (*ProcessingStats, error) {
	if s.repository == nil {
		return nil, NewPersistenceError("no result repository configured", nil)
	}
	stats, err := s.repository.Stats(ctx)
	if err != nil {
		return nil, NewPersistenceError("failed to compute stats", err)
	}
	return stats, nil
}

// RulesSummary describes the local rule catalog
func (s *TriageService) RulesSummary() RuleSummary {
	return s.classifier.Summary()
}
