package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mikey/mail-triage/internal/core"
)

var validate = validator.New()

// TriageConfig represents the pipeline settings
type TriageConfig struct {
	Strategy            string        `validate:"oneof=local_rules remote"`
	ReplyStrategy       string        `validate:"oneof=templates remote"`
	EscalationThreshold float64       `validate:"min=0,max=1"`
	EscalationTimeout   time.Duration `validate:"gt=0"`
	MaxInputBytes       int           `validate:"gt=0"`
	BatchConcurrency    int           `validate:"gt=0"`
	CacheEnabled        bool
	CacheTTL            time.Duration `validate:"required_if=CacheEnabled true,gte=0"`
}

// Options converts the settings into service options
func (t TriageConfig) Options() core.Options {
	return core.Options{
		Strategy:            core.Strategy(t.Strategy),
		ReplyStrategy:       core.ReplyStrategy(t.ReplyStrategy),
		EscalationThreshold: t.EscalationThreshold,
		EscalationTimeout:   t.EscalationTimeout,
		MaxInputBytes:       t.MaxInputBytes,
		CacheEnabled:        t.CacheEnabled,
		CacheTTL:            t.CacheTTL,
	}
}

// EscalationConfig represents the circuit breaker and retry settings of
// remote calls
type EscalationConfig struct {
	Timeout       time.Duration `validate:"gt=0"`
	MaxFailures   int           `validate:"min=1"`
	HalfOpenLimit int           `validate:"min=1"`
	ResetInterval time.Duration `validate:"gt=0"`
	RetryAttempts int           `validate:"min=1"`
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string `validate:"oneof=openai gemini bedrock"`
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// CacheConfig represents the result cache settings
type CacheConfig struct {
	Enabled          bool
	Type             string `validate:"oneof=memory sqlite mysql redis"`
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// StoreConfig represents the result repository settings
type StoreConfig struct {
	Type       string `validate:"oneof=none memory sqlite mysql"`
	SQLitePath string
	MySQLDSN   string
}

// NotifyConfig represents the event sink settings
type NotifyConfig struct {
	Sinks  []string `validate:"dive,oneof=log redis"`
	Stream string
	MaxLen int64 `validate:"gte=0"`
}

// ServerConfig represents the Postfix content filter settings
type ServerConfig struct {
	ListenAddress    string `validate:"required"`
	LabelHeader      string `validate:"required"`
	ConfidenceHeader string `validate:"required"`
	ReasonHeader     string `validate:"required"`
	PriorityHeader   string `validate:"required"`
	ModifySubject    bool
	SubjectPrefix    string
	PostfixEnabled   bool
	PostfixAddress   string
	PostfixPort      int `validate:"min=0,max=65535"`
	BypassDomains    []string
}

func check(section string, v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid %s configuration: %w", section, err)
	}
	return nil
}

// GetTriage returns the validated pipeline configuration
func (c *Config) GetTriage() (TriageConfig, error) {
	timeout, err := c.GetDuration("escalation.timeout")
	if err != nil {
		return TriageConfig{}, err
	}
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return TriageConfig{}, err
	}

	t := TriageConfig{
		Strategy:            c.GetString("triage.strategy"),
		ReplyStrategy:       c.GetString("triage.reply_strategy"),
		EscalationThreshold: c.GetFloat64("triage.escalation_threshold"),
		EscalationTimeout:   timeout,
		MaxInputBytes:       c.GetInt("triage.max_input_bytes"),
		BatchConcurrency:    c.GetInt("triage.batch_concurrency"),
		CacheEnabled:        c.GetBool("cache.enabled"),
		CacheTTL:            ttl,
	}
	return t, check("triage", t)
}

// GetEscalation returns the validated circuit breaker configuration
func (c *Config) GetEscalation() (EscalationConfig, error) {
	timeout, err := c.GetDuration("escalation.timeout")
	if err != nil {
		return EscalationConfig{}, err
	}
	reset, err := c.GetDuration("escalation.reset_interval")
	if err != nil {
		return EscalationConfig{}, err
	}

	e := EscalationConfig{
		Timeout:       timeout,
		MaxFailures:   c.GetInt("escalation.max_failures"),
		HalfOpenLimit: c.GetInt("escalation.half_open_limit"),
		ResetInterval: reset,
		RetryAttempts: c.GetInt("escalation.retry_attempts"),
	}
	return e, check("escalation", e)
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() (LLMConfig, error) {
	l := LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
	return l, check("llm", l)
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetCache returns the validated cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}

	cc := CacheConfig{
		Enabled:          c.GetBool("cache.enabled"),
		Type:             c.GetString("cache.type"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
	}
	return cc, check("cache", cc)
}

// GetStore returns the validated result store configuration
func (c *Config) GetStore() (StoreConfig, error) {
	s := StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
	return s, check("store", s)
}

// GetNotify returns the validated notification configuration
func (c *Config) GetNotify() (NotifyConfig, error) {
	n := NotifyConfig{
		Sinks:  c.GetStringSlice("notify.sinks"),
		Stream: c.GetString("notify.stream"),
		MaxLen: int64(c.GetInt("notify.max_len")),
	}
	return n, check("notify", n)
}

// GetServer returns the validated content filter configuration
func (c *Config) GetServer() (ServerConfig, error) {
	s := ServerConfig{
		ListenAddress:    c.GetString("server.listen_address"),
		LabelHeader:      c.GetString("server.headers.label"),
		ConfidenceHeader: c.GetString("server.headers.confidence"),
		ReasonHeader:     c.GetString("server.headers.reason"),
		PriorityHeader:   c.GetString("server.headers.priority"),
		ModifySubject:    c.GetBool("server.modify_subject"),
		SubjectPrefix:    c.GetString("server.subject_prefix"),
		PostfixEnabled:   c.GetBool("server.postfix.enabled"),
		PostfixAddress:   c.GetString("server.postfix.address"),
		PostfixPort:      c.GetInt("server.postfix.port"),
		BypassDomains:    c.GetStringSlice("server.bypass_domains"),
	}
	return s, check("server", s)
}

// GetRedisURL returns the Redis connection URL
func (c *Config) GetRedisURL() string {
	return c.GetString("redis.url")
}

// GetCatalogPath returns the optional rule/template catalog file
func (c *Config) GetCatalogPath() string {
	return c.GetString("catalog.path")
}
