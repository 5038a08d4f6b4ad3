package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/legionai/legion/internal/agentruntime"
	"github.com/legionai/legion/internal/collective"
	"github.com/legionai/legion/internal/communicator"
	"github.com/legionai/legion/internal/config"
	"github.com/legionai/legion/internal/eventbus"
	"github.com/legionai/legion/internal/medium"
	"github.com/legionai/legion/internal/observability"
	"github.com/legionai/legion/internal/providers"
	"github.com/legionai/legion/internal/ratelimit"
	"github.com/legionai/legion/internal/session"
	"github.com/legionai/legion/internal/tools"
)

// app bundles every pillar wired together for one process: the Collective
// Registry, Tool Registry, Agent Runtime, Communicator, and the
// observability trio watching the shared Event Bus. It is the runtime
// analogue of the teacher's gateway.Gateway.
type app struct {
	cfg         *config.Config
	bus         *eventbus.Bus
	logger      *observability.Logger
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	tracerStop  func(context.Context) error
	recorder    *observability.EventRecorder
	collective  *collective.Registry
	toolreg     *tools.Registry
	session     *session.Session
	runtime     *agentruntime.Runtime
	comm        *communicator.Communicator
	providerMap map[string]providers.Provider
}

// providerResolver adapts app's static provider map to
// agentruntime.ProviderResolver.
type providerResolver struct {
	cfg       *config.Config
	providers map[string]providers.Provider
}

func (r providerResolver) Provider(ref *collective.ModelRef) (providers.Provider, error) {
	name := r.cfg.Providers.DefaultProvider
	if ref != nil && ref.Provider != "" {
		name = ref.Provider
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("legion: no provider adapter configured for %q", name)
	}
	return p, nil
}

// buildApp loads configPath, constructs every pillar, and registers the
// Collective's roster. It does not start any Medium's network connection;
// callers needing a live serve loop call (*app).startMediums separately.
func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("legion: load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:     cfg.Observability.Logging.Level,
		Format:    cfg.Observability.Logging.Format,
		AddSource: cfg.Observability.Logging.AddSource,
	})

	metrics := observability.NewMetrics()

	tracer, tracerStop := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Observability.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Observability.Tracing.Environment,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
		EnableInsecure: cfg.Observability.Tracing.Insecure,
	})

	store := observability.NewMemoryEventStore(10_000)
	recorder := observability.NewEventRecorder(store, logger)

	bus := eventbus.New()
	wireObservability(bus, metrics, recorder)

	collectiveReg := collective.NewRegistry(collective.WithEventPublisher(bus))
	participants, err := config.LoadParticipants(cfg, filepath.Dir(configPath))
	if err != nil {
		return nil, fmt.Errorf("legion: load participants: %w", err)
	}
	for _, p := range participants {
		if err := collectiveReg.Save(p); err != nil {
			return nil, fmt.Errorf("legion: register participant %q: %w", p.ID, err)
		}
	}

	toolReg := tools.NewRegistry()

	providerMap, err := buildProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rt := agentruntime.New(agentruntime.Config{
		Providers:      providerResolver{cfg: cfg, providers: providerMap},
		ToolRegistry:   toolReg,
		CollectiveReg:  collectiveReg,
		DefaultMaxIter: cfg.Runtime.DefaultMaxIterations,
		Events:         bus,
	})

	sess := session.New()

	comm := communicator.New(communicator.Config{
		Collective:  collectiveReg,
		Session:     sess,
		Runtime:     rt,
		Events:      bus,
		MaxDepth:    cfg.Runtime.DefaultMaxDepth,
		ApprovalTTL: cfg.Runtime.ApprovalTTL,
	})

	if err := toolReg.Register(communicator.NewCommunicateTool(comm)); err != nil {
		return nil, fmt.Errorf("legion: register communicate tool: %w", err)
	}
	if err := toolReg.Register(communicator.NewResolveApprovalTool(comm)); err != nil {
		return nil, fmt.Errorf("legion: register resolve_approval tool: %w", err)
	}

	a := &app{
		cfg:         cfg,
		bus:         bus,
		logger:      logger,
		metrics:     metrics,
		tracer:      tracer,
		tracerStop:  tracerStop,
		recorder:    recorder,
		collective:  collectiveReg,
		toolreg:     toolReg,
		session:     sess,
		runtime:     rt,
		comm:        comm,
		providerMap: providerMap,
	}
	return a, nil
}

// buildProviders constructs one Provider Adapter per entry present in
// cfg.Providers, keyed by the name a collective.ModelRef.Provider names.
func buildProviders(ctx context.Context, cfg *config.Config) (map[string]providers.Provider, error) {
	out := make(map[string]providers.Provider)

	if pc := cfg.Providers.Anthropic; pc != nil {
		p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Limiter: rateLimiter(pc.RateLimitPerMin),
		})
		if err != nil {
			return nil, fmt.Errorf("legion: anthropic provider: %w", err)
		}
		out["anthropic"] = p
	}
	if pc := cfg.Providers.OpenAI; pc != nil {
		p, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Limiter: rateLimiter(pc.RateLimitPerMin),
		})
		if err != nil {
			return nil, fmt.Errorf("legion: openai provider: %w", err)
		}
		out["openai"] = p
	}
	if pc := cfg.Providers.Bedrock; pc != nil {
		p, err := providers.NewBedrockProvider(ctx, providers.BedrockConfig{
			Region:          pc.Region,
			AccessKeyID:     pc.AccessKeyID,
			SecretAccessKey: pc.SecretAccessKey,
			SessionToken:    pc.SessionToken,
			DefaultModel:    pc.DefaultModel,
			Limiter:         rateLimiter(pc.RateLimitPerMin),
		})
		if err != nil {
			return nil, fmt.Errorf("legion: bedrock provider: %w", err)
		}
		out["bedrock"] = p
	}
	if pc := cfg.Providers.Google; pc != nil {
		p, err := providers.NewGoogleProvider(ctx, providers.GoogleConfig{
			APIKey:       pc.APIKey,
			DefaultModel: pc.DefaultModel,
			Limiter:      rateLimiter(pc.RateLimitPerMin),
		})
		if err != nil {
			return nil, fmt.Errorf("legion: google provider: %w", err)
		}
		out["google"] = p
	}
	return out, nil
}

func rateLimiter(perMinute int) *ratelimit.Bucket {
	if perMinute <= 0 {
		return nil
	}
	return ratelimit.NewBucket(ratelimit.Config{
		RequestsPerSecond: float64(perMinute) / 60.0,
		BurstSize:         perMinute,
		Enabled:           true,
	})
}

// startMediums constructs and registers every configured Medium against
// its matching VariantUser participant (matched by Participant.Medium),
// starting whichever adapters require an explicit listen loop.
func (a *app) startMediums(ctx context.Context) error {
	for _, p := range a.collective.List(collective.Filter{Variant: collective.VariantUser, ActiveOnly: true}) {
		switch p.Medium {
		case "slack":
			mc := a.cfg.Mediums.Slack
			if mc == nil {
				continue
			}
			m := medium.NewSlack(medium.SlackConfig{BotToken: mc.BotToken, AppToken: mc.AppToken, Channel: mc.Channel})
			if err := m.Start(ctx); err != nil {
				return fmt.Errorf("legion: start slack medium: %w", err)
			}
			a.comm.RegisterMedium(p.ID, m)
		case "discord":
			mc := a.cfg.Mediums.Discord
			if mc == nil {
				continue
			}
			m, err := medium.NewDiscord(medium.DiscordConfig{Token: mc.Token, ChannelID: mc.ChannelID})
			if err != nil {
				return fmt.Errorf("legion: start discord medium: %w", err)
			}
			a.comm.RegisterMedium(p.ID, m)
		case "telegram":
			mc := a.cfg.Mediums.Telegram
			if mc == nil {
				continue
			}
			m, err := medium.NewTelegram(ctx, medium.TelegramConfig{Token: mc.Token, ChatID: mc.ChatID})
			if err != nil {
				return fmt.Errorf("legion: start telegram medium: %w", err)
			}
			a.comm.RegisterMedium(p.ID, m)
		}
	}
	return nil
}

func (a *app) shutdown(ctx context.Context) {
	if a.tracerStop != nil {
		_ = a.tracerStop(ctx)
	}
	_ = a.logger.Sync()
}
