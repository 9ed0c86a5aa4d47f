// Package invoker executes one analysis task against an upstream text
// generation provider. It owns provider routing, request composition,
// per-call client construction, retries, and admission through the
// concurrency gate. Upstream failures are absorbed into the returned
// result and never propagate as errors.
package invoker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/finsight-ai/finsight/internal/gate"
	"github.com/finsight-ai/finsight/internal/llm/provider"
	"github.com/finsight-ai/finsight/internal/observability"
)

// Config tunes invocation behavior. Zero values fall back to defaults.
type Config struct {
	// DefaultModel is used when a task does not name its own model.
	DefaultModel string
	// Temperature is passed through to the provider.
	Temperature float32
	// MaxRetries is the number of extra attempts after a retryable
	// failure (default 2).
	MaxRetries int
	// RetryBackoff is the fixed delay between attempts (default 2s).
	RetryBackoff time.Duration
	// RequestsPerSecond bounds the request rate per provider
	// (default 2, burst 4).
	RequestsPerSecond float64
	// Burst is the rate limiter burst size.
	Burst int
}

const (
	defaultModel       = "deepseek-chat"
	defaultMaxRetries  = 2
	defaultBackoff     = 2 * time.Second
	defaultRate        = 2.0
	defaultBurst       = 4
	defaultTemperature = 0.7
)

// Result is the normalized outcome of one invocation.
type Result struct {
	AgentID  string
	Success  bool
	Output   string
	Tokens   int
	Error    string
	Provider string
	Model    string
	Duration time.Duration
}

// Invoker runs tasks against upstream providers.
type Invoker struct {
	gate *gate.Gate
	cfg  Config

	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	// newProvider is swapped in tests to inject a mock.
	newProvider func(tag string, opts provider.Options) (provider.Provider, error)
}

// New builds an Invoker sharing the given gate.
func New(g *gate.Gate, cfg Config) *Invoker {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = defaultBackoff
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = defaultRate
	}
	if cfg.Burst == 0 {
		cfg.Burst = defaultBurst
	}
	return &Invoker{
		gate:        g,
		cfg:         cfg,
		limiters:    make(map[string]*rate.Limiter),
		newProvider: provider.New,
	}
}

// Invoke runs one task and returns its normalized outcome. The gate is
// held only for the duration of the upstream call chain and is released
// on every exit path.
func (inv *Invoker) Invoke(ctx context.Context, task TaskDescriptor, subject string, priorOutputs map[string]string, directive string) Result {
	start := time.Now()

	model := task.Model
	if model == "" {
		model = inv.cfg.DefaultModel
	}
	tag := provider.Resolve(model)

	res := Result{
		AgentID:  task.AgentID,
		Provider: tag,
		Model:    model,
	}

	ctx, span := observability.StartSpan(ctx, "invoker.invoke",
		trace.WithAttributes(
			attribute.String("agent.id", task.AgentID),
			attribute.String("llm.model", model),
			attribute.String("llm.provider", tag),
		))
	defer span.End()

	waitStart := time.Now()
	if err := inv.gate.Acquire(ctx); err != nil {
		res.Error = "admission cancelled: " + err.Error()
		res.Duration = time.Since(start)
		observability.RecordAgentInvocation(task.AgentID, tag, "cancelled", res.Duration)
		return res
	}
	observability.RecordGateWait(time.Since(waitStart))
	observability.SetGateInFlight(inv.gate.InFlight())
	defer func() {
		inv.gate.Release()
		observability.SetGateInFlight(inv.gate.InFlight())
	}()

	client := newHTTPClient()
	defer closeHTTPClient(client)

	p, err := inv.newProvider(tag, provider.Options{HTTPClient: client})
	if err != nil {
		res.Error = "provider setup: " + err.Error()
		res.Duration = time.Since(start)
		observability.RecordAgentInvocation(task.AgentID, tag, "error", res.Duration)
		return res
	}

	req := provider.CompletionRequest{
		Model:       model,
		Temperature: float64(inv.cfg.Temperature),
		Messages: []provider.Message{
			{Role: "system", Content: composeSystem(task)},
			{Role: "user", Content: composeUser(task, subject, priorOutputs, directive)},
		},
	}

	resp, err := inv.callWithRetry(ctx, p, tag, req)
	res.Duration = time.Since(start)

	if err != nil {
		res.Error = err.Error()
		observability.RecordAgentInvocation(task.AgentID, tag, "error", res.Duration)
		span.RecordError(err)
		log.Warn().
			Str("agent", task.AgentID).
			Str("provider", tag).
			Err(err).
			Msg("agent invocation failed")
		return res
	}

	res.Success = true
	res.Output = resp.Content
	res.Tokens = resp.Usage.TotalTokens
	observability.RecordAgentInvocation(task.AgentID, tag, "ok", res.Duration)
	observability.RecordAgentTokens(task.AgentID, tag, res.Tokens)
	log.Debug().
		Str("agent", task.AgentID).
		Str("provider", tag).
		Int("tokens", res.Tokens).
		Dur("duration", res.Duration).
		Msg("agent invocation complete")
	return res
}

// callWithRetry issues the request, retrying retryable provider failures
// with a fixed backoff before giving up.
func (inv *Invoker) callWithRetry(ctx context.Context, p provider.Provider, tag string, req provider.CompletionRequest) (*provider.CompletionResponse, error) {
	if err := inv.limiter(tag).Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	attempts := inv.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			log.Debug().
				Str("provider", tag).
				Int("attempt", attempt+1).
				Msg("retrying provider call")
			if err := sleepCtx(ctx, inv.cfg.RetryBackoff); err != nil {
				return nil, lastErr
			}
		}

		resp, err := p.CreateCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !provider.IsRetryable(err) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// limiter returns the rate limiter for a provider, creating it on first
// use.
func (inv *Invoker) limiter(tag string) *rate.Limiter {
	inv.mu.RLock()
	l, ok := inv.limiters[tag]
	inv.mu.RUnlock()
	if ok {
		return l
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	if l, ok := inv.limiters[tag]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Limit(inv.cfg.RequestsPerSecond), inv.cfg.Burst)
	inv.limiters[tag] = l
	return l
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SetProviderFactory overrides how providers are constructed. Intended
// for tests.
func (inv *Invoker) SetProviderFactory(f func(tag string, opts provider.Options) (provider.Provider, error)) {
	inv.newProvider = f
}
