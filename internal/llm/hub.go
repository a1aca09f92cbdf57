package llm

// #region imports
import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// #endregion

// #region config

// HubConfig holds fallback and circuit-breaker parameters.
type HubConfig struct {
	FailureThreshold int           // consecutive failures before a circuit opens
	Cooldown         time.Duration // how long an open circuit skips its provider
	AttemptDelay     time.Duration // constant pause after a failed provider attempt
	WarmupHealthcheck bool         // probe each provider before its first generate
}

// DefaultHubConfig returns the defaults used when no config file overrides them.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		FailureThreshold:  3,
		Cooldown:          120 * time.Second,
		AttemptDelay:      200 * time.Millisecond,
		WarmupHealthcheck: true,
	}
}

// #endregion

// #region errors

// ExhaustedError is returned by Call when every eligible provider failed.
// It carries the last underlying failure for diagnostics.
type ExhaustedError struct {
	Last error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return "llm: fallback exhausted: no eligible provider"
	}
	return fmt.Sprintf("llm: fallback exhausted: %v", e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// #endregion

// #region circuit

// circuit is per-provider breaker state. Owned exclusively by the Hub and
// guarded by its mutex.
type circuit struct {
	failures int
	open     bool
	openedAt time.Time
	checked  bool // warmup healthcheck already performed
}

// #endregion

// #region hub

// Hub routes generation calls across providers in priority order with
// fallback and per-provider circuit breaking. Safe for concurrent use from
// multiple in-flight runs.
type Hub struct {
	providers []Provider // configured priority order
	cfg       HubConfig

	mu    sync.Mutex
	state map[string]*circuit

	now   func() time.Time
	sleep func(time.Duration)
}

// NewHub creates a hub over providers, tried in the given order.
func NewHub(providers []Provider, cfg HubConfig) *Hub {
	return &Hub{
		providers: providers,
		cfg:       cfg,
		state:     make(map[string]*circuit),
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// #endregion

// #region call

// Call tries each provider in order until one returns non-empty text.
// The hub never retries a provider within one call; depth retries (same
// provider, adjusted parameters) belong to the caller. Returns the text and
// the name of the provider that produced it.
func (h *Hub) Call(ctx context.Context, msgs []Message, temperature float64, maxTokens int) (string, string, error) {
	var lastErr error

	for _, p := range h.providers {
		name := p.Name()
		skip, trial := h.admit(name)
		if skip {
			continue
		}

		if h.cfg.WarmupHealthcheck && h.firstUse(name) {
			if !p.Healthcheck(ctx) {
				log.Printf("[HUB] healthcheck failed for %s, opening circuit", name)
				lastErr = fmt.Errorf("provider %s: healthcheck failed", name)
				h.tripCircuit(name)
				continue
			}
		}

		out, err := p.Generate(ctx, msgs, temperature, maxTokens)
		if err == nil && out == "" {
			err = fmt.Errorf("provider %s: empty output", name)
		}
		if err != nil {
			lastErr = err
			h.recordFailure(name)
			if trial {
				log.Printf("[HUB] half-open trial failed for %s: %v", name, err)
			} else {
				log.Printf("[HUB] provider %s failed: %v", name, err)
			}
			h.sleep(h.cfg.AttemptDelay)
			continue
		}

		h.recordSuccess(name)
		return out, name, nil
	}

	return "", "", &ExhaustedError{Last: lastErr}
}

// #endregion

// #region state-transitions

// admit decides whether a provider may be called right now. trial is true
// when the circuit was open and the cooldown elapsed (half-open: exactly one
// trial call is allowed).
func (h *Hub) admit(name string) (skip, trial bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.circuitFor(name)
	if !c.open {
		return false, false
	}
	if h.now().Sub(c.openedAt) < h.cfg.Cooldown {
		return true, false
	}
	// Half-open: exactly one trial call per elapsed cooldown. Refreshing
	// openedAt here keeps concurrent callers out until the trial resolves.
	c.openedAt = h.now()
	return false, true
}

// firstUse reports whether this is the provider's first admission in the
// hub's lifetime, marking it as checked.
func (h *Hub) firstUse(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.circuitFor(name)
	if c.checked {
		return false
	}
	c.checked = true
	return true
}

func (h *Hub) recordFailure(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.circuitFor(name)
	c.failures++
	if c.open || c.failures >= h.cfg.FailureThreshold {
		c.open = true
		c.openedAt = h.now()
	}
}

// tripCircuit opens a provider's circuit immediately, bypassing the failure
// counter. A provider whose warmup healthcheck fails is known unhealthy and
// must not receive generate calls until the cooldown elapses.
func (h *Hub) tripCircuit(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.circuitFor(name)
	c.failures = h.cfg.FailureThreshold
	c.open = true
	c.openedAt = h.now()
}

func (h *Hub) recordSuccess(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.circuitFor(name)
	c.failures = 0
	c.open = false
	c.openedAt = time.Time{}
}

// circuitFor returns the breaker state for a provider, creating it on first
// use. Callers must hold h.mu.
func (h *Hub) circuitFor(name string) *circuit {
	c, ok := h.state[name]
	if !ok {
		c = &circuit{}
		h.state[name] = c
	}
	return c
}

// #endregion
