// Package config defines Legion's on-disk configuration: Provider Adapter
// credentials, Medium credentials, the Collective's participant roster,
// and the ambient runtime/observability knobs. Structurally it mirrors
// the teacher's internal/config package — one struct per concern, loaded
// through the same $include-resolving YAML loader — trimmed to the
// concerns SPEC_FULL.md actually names (no database migrations, plugin
// marketplace, skills, MCP, or onboarding wizard).
package config

import "time"

// Config is the root configuration document.
type Config struct {
	Providers     ProvidersConfig     `yaml:"providers"`
	Mediums       MediumsConfig       `yaml:"mediums"`
	Collective    CollectiveConfig    `yaml:"collective"`
	Runtime       RuntimeConfig       `yaml:"runtime"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ProvidersConfig carries one entry per Provider Adapter Legion can
// construct. DefaultProvider names the entry an agent Participant's
// ModelRef resolves against when its Provider field is empty.
type ProvidersConfig struct {
	DefaultProvider string                   `yaml:"default_provider"`
	Anthropic       *AnthropicProviderConfig `yaml:"anthropic,omitempty"`
	OpenAI          *OpenAIProviderConfig    `yaml:"openai,omitempty"`
	Bedrock         *BedrockProviderConfig   `yaml:"bedrock,omitempty"`
	Google          *GoogleProviderConfig    `yaml:"google,omitempty"`
}

// AnthropicProviderConfig configures the Anthropic Provider Adapter.
type AnthropicProviderConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_minute"`
}

// OpenAIProviderConfig configures the OpenAI Provider Adapter.
type OpenAIProviderConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_minute"`
}

// BedrockProviderConfig configures the AWS Bedrock Provider Adapter.
type BedrockProviderConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	DefaultModel    string `yaml:"default_model"`
	RateLimitPerMin int    `yaml:"rate_limit_per_minute"`
}

// GoogleProviderConfig configures the Gemini Provider Adapter.
type GoogleProviderConfig struct {
	APIKey          string `yaml:"api_key"`
	DefaultModel    string `yaml:"default_model"`
	RateLimitPerMin int    `yaml:"rate_limit_per_minute"`
}

// MediumsConfig carries one entry per Medium a VariantUser Participant can
// be registered against, keyed by the Participant.Medium value that
// selects it.
type MediumsConfig struct {
	Slack    *SlackMediumConfig    `yaml:"slack,omitempty"`
	Discord  *DiscordMediumConfig  `yaml:"discord,omitempty"`
	Telegram *TelegramMediumConfig `yaml:"telegram,omitempty"`
}

// SlackMediumConfig configures a Slack-backed Medium.
type SlackMediumConfig struct {
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"`
	Channel  string `yaml:"channel"`
}

// DiscordMediumConfig configures a Discord-backed Medium.
type DiscordMediumConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// TelegramMediumConfig configures a Telegram-backed Medium.
type TelegramMediumConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// CollectiveConfig locates the Collective's participant roster. Exactly
// one of Participants (inline) or ParticipantsFile (a path, itself
// eligible for $include resolution by the loader) should be set.
type CollectiveConfig struct {
	Participants     []ParticipantConfig `yaml:"participants,omitempty"`
	ParticipantsFile string              `yaml:"participants_file,omitempty"`
}

// ParticipantConfig is the on-disk shape of a collective.Participant.
// It is decoded generically (map[string]interface{}) by the loader and
// re-marshalled through collective.Registry.Save's validation, so this
// type exists only to document the expected shape, not to decode it
// directly — see loader.go's LoadParticipants.
type ParticipantConfig = map[string]interface{}

// RuntimeConfig carries the process-wide Agent Runtime and Communicator
// defaults, overridable per participant via collective.RuntimeLimits.
type RuntimeConfig struct {
	DefaultMaxIterations int           `yaml:"default_max_iterations"`
	DefaultMaxDepth      int           `yaml:"default_max_depth"`
	DispatchTimeout      time.Duration `yaml:"dispatch_timeout"`
	// ApprovalTTL bounds how long a suspended tool call waits for an
	// approval decision before the Suspension Bridge auto-rejects it.
	// Zero disables the bound.
	ApprovalTTL time.Duration `yaml:"approval_ttl"`
}

// ObservabilityConfig controls the three ambient pillars: logging,
// metrics, and tracing.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures the slog-based Logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig controls whether the Prometheus metrics endpoint is
// served, and on what address.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Endpoint       string  `yaml:"endpoint"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Environment    string  `yaml:"environment"`
	SamplingRate   float64 `yaml:"sampling_rate"`
	Insecure       bool    `yaml:"insecure"`
}

// Defaults returns a Config with every zero-value numeric/string knob
// filled in, mirroring the teacher's pattern of applying defaults after
// decode rather than scattering them through yaml struct tags.
func Defaults() Config {
	return Config{
		Runtime: RuntimeConfig{
			DefaultMaxIterations: 50,
			DefaultMaxDepth:      10,
			DispatchTimeout:      5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "json"},
			Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
			Tracing: TracingConfig{
				ServiceName: "legion",
				Environment: "production",
			},
		},
	}
}

// applyDefaults fills zero-value fields in cfg from Defaults(), leaving
// explicit values (including explicit zeros for bools, which yaml.v3
// cannot distinguish from unset — the same limitation the teacher's
// config accepts) untouched.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Runtime.DefaultMaxIterations == 0 {
		cfg.Runtime.DefaultMaxIterations = d.Runtime.DefaultMaxIterations
	}
	if cfg.Runtime.DefaultMaxDepth == 0 {
		cfg.Runtime.DefaultMaxDepth = d.Runtime.DefaultMaxDepth
	}
	if cfg.Runtime.DispatchTimeout == 0 {
		cfg.Runtime.DispatchTimeout = d.Runtime.DispatchTimeout
	}
	if cfg.Observability.Logging.Level == "" {
		cfg.Observability.Logging.Level = d.Observability.Logging.Level
	}
	if cfg.Observability.Logging.Format == "" {
		cfg.Observability.Logging.Format = d.Observability.Logging.Format
	}
	if cfg.Observability.Tracing.ServiceName == "" {
		cfg.Observability.Tracing.ServiceName = d.Observability.Tracing.ServiceName
	}
	if cfg.Observability.Tracing.Environment == "" {
		cfg.Observability.Tracing.Environment = d.Observability.Tracing.Environment
	}
}
