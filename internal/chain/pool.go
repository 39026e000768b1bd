package chain

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/wnt/memescore/internal/metrics"
	"golang.org/x/time/rate"
)

// Pool manages EVM JSON-RPC endpoints with round-robin selection, per-endpoint
// rate limiting, health tracking and cooldowns
type Pool struct {
	endpoints []*Endpoint
	current   int
	mutex     sync.Mutex
	logger    zerolog.Logger
	dial      func(ctx context.Context, url string) (ReceiptClient, error)
}

// Endpoint is a single RPC endpoint with its own rate limiter
type Endpoint struct {
	URL           string
	client        ReceiptClient
	limiter       *rate.Limiter
	healthy       bool
	cooldownUntil time.Time
	mutex         sync.RWMutex
}

// PoolOption configures a Pool
type PoolOption func(*Pool)

// WithDialer replaces the ethclient dialer, mainly for tests
func WithDialer(dial func(ctx context.Context, url string) (ReceiptClient, error)) PoolOption {
	return func(p *Pool) {
		p.dial = dial
	}
}

// WithEndpointRate sets the per-endpoint request rate and burst
func WithEndpointRate(perSecond float64, burst int) PoolOption {
	return func(p *Pool) {
		for _, e := range p.endpoints {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func dialEthclient(ctx context.Context, url string) (ReceiptClient, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewPool creates a pool over the given endpoint URLs
func NewPool(urls []string, logger zerolog.Logger, opts ...PoolOption) (*Pool, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}

	endpoints := make([]*Endpoint, len(urls))
	for i, url := range urls {
		endpoints[i] = &Endpoint{
			URL:     url,
			limiter: rate.NewLimiter(rate.Limit(5.0), 10),
			healthy: true,
		}
		metrics.SetRPCEndpointHealth(url, true)
	}

	p := &Pool{
		endpoints: endpoints,
		current:   rand.Intn(len(endpoints)),
		logger:    logger.With().Str("component", "rpc_pool").Logger(),
		dial:      dialEthclient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// GetClient returns the next usable endpoint's client. Unhealthy, cooling
// down and rate-limited endpoints are skipped; if none is usable the call
// waits on the first candidate's limiter.
func (p *Pool) GetClient(ctx context.Context) (ReceiptClient, string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	startIndex := p.current
	for attempts := 0; attempts < len(p.endpoints); attempts++ {
		endpoint := p.endpoints[p.current]
		p.current = (p.current + 1) % len(p.endpoints)

		if !endpoint.usable() {
			p.logger.Debug().Str("endpoint", endpoint.URL).Msg("Endpoint unhealthy or in cooldown, skipping")
			continue
		}

		if endpoint.limiter.Allow() {
			client, err := p.clientFor(ctx, endpoint)
			return client, endpoint.URL, err
		}

		p.logger.Debug().Str("endpoint", endpoint.URL).Msg("Endpoint rate limited, trying next")
	}

	endpoint := p.endpoints[startIndex]
	p.logger.Debug().Str("endpoint", endpoint.URL).Msg("All endpoints busy, waiting for availability")

	if err := endpoint.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	client, err := p.clientFor(ctx, endpoint)
	return client, endpoint.URL, err
}

func (p *Pool) clientFor(ctx context.Context, endpoint *Endpoint) (ReceiptClient, error) {
	endpoint.mutex.Lock()
	defer endpoint.mutex.Unlock()

	if endpoint.client != nil {
		return endpoint.client, nil
	}
	client, err := p.dial(ctx, endpoint.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint.URL, err)
	}
	endpoint.client = client
	return client, nil
}

func (e *Endpoint) usable() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.healthy && !time.Now().Before(e.cooldownUntil)
}

func (p *Pool) find(url string) *Endpoint {
	for _, endpoint := range p.endpoints {
		if endpoint.URL == url {
			return endpoint
		}
	}
	return nil
}

// MarkUnhealthy marks an endpoint as unhealthy
func (p *Pool) MarkUnhealthy(url string) {
	endpoint := p.find(url)
	if endpoint == nil {
		return
	}
	endpoint.mutex.Lock()
	endpoint.healthy = false
	endpoint.mutex.Unlock()

	metrics.SetRPCEndpointHealth(url, false)
	p.logger.Warn().Str("endpoint", url).Msg("Marked endpoint as unhealthy")
}

// MarkHealthy marks an endpoint as healthy and clears its cooldown
func (p *Pool) MarkHealthy(url string) {
	endpoint := p.find(url)
	if endpoint == nil {
		return
	}
	endpoint.mutex.Lock()
	wasHealthy := endpoint.healthy
	endpoint.healthy = true
	endpoint.cooldownUntil = time.Time{}
	endpoint.mutex.Unlock()

	metrics.SetRPCEndpointHealth(url, true)
	if !wasHealthy {
		p.logger.Info().Str("endpoint", url).Msg("Marked endpoint as healthy")
	}
}

// SetCooldown puts an endpoint in cooldown for the specified duration
func (p *Pool) SetCooldown(url string, duration time.Duration) {
	endpoint := p.find(url)
	if endpoint == nil {
		return
	}
	endpoint.mutex.Lock()
	endpoint.cooldownUntil = time.Now().Add(duration)
	endpoint.mutex.Unlock()

	p.logger.Warn().Str("endpoint", url).Dur("duration", duration).Msg("Set endpoint cooldown")
}

// HealthyEndpointCount returns the number of endpoints that are healthy and not cooling down
func (p *Pool) HealthyEndpointCount() int {
	count := 0
	for _, endpoint := range p.endpoints {
		if endpoint.usable() {
			count++
		}
	}
	return count
}

// EndpointStatus describes one endpoint for the health endpoint
type EndpointStatus struct {
	URL        string `json:"url"`
	Healthy    bool   `json:"healthy"`
	InCooldown bool   `json:"in_cooldown"`
}

// Stats returns per-endpoint status
func (p *Pool) Stats() []EndpointStatus {
	out := make([]EndpointStatus, 0, len(p.endpoints))
	for _, endpoint := range p.endpoints {
		endpoint.mutex.RLock()
		out = append(out, EndpointStatus{
			URL:        endpoint.URL,
			Healthy:    endpoint.healthy,
			InCooldown: time.Now().Before(endpoint.cooldownUntil),
		})
		endpoint.mutex.RUnlock()
	}
	return out
}
