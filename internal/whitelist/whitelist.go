// Package whitelist is the port to the token sale contract. The engine and the
// allotment flow talk to Client; adapters live in subpackages.
package whitelist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"presale/internal/kyc/metrics"
	"presale/pkg/platform/circuit"
	"presale/pkg/requestcontext"
)

// Client performs the sale contract operations. Transaction-submitting calls
// return the on-chain transaction identifier.
type Client interface {
	AddToWhitelist(ctx context.Context, addr string) (string, error)
	CheckBalance(ctx context.Context, addr string) (*big.Int, error)
	CheckProRata(ctx context.Context, addr string) (*big.Int, error)
	SetTokenAllotment(ctx context.Context, addr string) (string, error)
}

// ErrCircuitOpen is returned without calling the contract while the breaker
// is open.
var ErrCircuitOpen = errors.New("whitelist circuit open")

// ErrInvalidAddress is returned for strings that are not 20-byte hex
// addresses. It is a caller error and never counts against the breaker.
var ErrInvalidAddress = errors.New("invalid address")

// ValidAddress reports whether addr is a hex-encoded 20-byte address.
func ValidAddress(addr string) bool {
	return common.IsHexAddress(addr)
}

// ErrNotConfigured is returned by Unavailable.
var ErrNotConfigured = errors.New("whitelist client not configured")

// Unavailable answers every call with ErrNotConfigured. It stands in when no
// RPC endpoint is configured so that callbacks still fail into the error log
// instead of the process refusing to start.
type Unavailable struct{}

func (Unavailable) AddToWhitelist(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

func (Unavailable) CheckBalance(context.Context, string) (*big.Int, error) {
	return nil, ErrNotConfigured
}

func (Unavailable) CheckProRata(context.Context, string) (*big.Int, error) {
	return nil, ErrNotConfigured
}

func (Unavailable) SetTokenAllotment(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

const (
	opAddToWhitelist    = "add_to_whitelist"
	opCheckBalance      = "check_balance"
	opCheckProRata      = "check_pro_rata"
	opSetTokenAllotment = "set_token_allotment"
)

const defaultCooldown = 30 * time.Second

// Guarded bounds every call with a timeout and fails fast once the breaker
// has seen too many consecutive failures. While open, calls are let through
// as probes once per cooldown; enough successful probes close the breaker.
type Guarded struct {
	next     Client
	timeout  time.Duration
	breaker  *circuit.Breaker
	cooldown time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	lastProbe time.Time
}

// GuardOption configures a Guarded client.
type GuardOption func(*Guarded)

func WithBreaker(b *circuit.Breaker) GuardOption {
	return func(g *Guarded) { g.breaker = b }
}

func WithMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guarded) { g.metrics = m }
}

// WithCooldown sets how long an open breaker rejects calls before probing.
func WithCooldown(d time.Duration) GuardOption {
	return func(g *Guarded) { g.cooldown = d }
}

// WithClock overrides the time source used for the cooldown.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guarded) { g.now = now }
}

// NewGuarded wraps next. A zero timeout leaves deadlines to the caller.
func NewGuarded(next Client, timeout time.Duration, logger *slog.Logger, opts ...GuardOption) *Guarded {
	g := &Guarded{
		next:     next,
		timeout:  timeout,
		breaker:  circuit.New("whitelist"),
		cooldown: defaultCooldown,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guarded) AddToWhitelist(ctx context.Context, addr string) (string, error) {
	return guard(ctx, g, opAddToWhitelist, addr, func(ctx context.Context) (string, error) {
		return g.next.AddToWhitelist(ctx, addr)
	})
}

func (g *Guarded) CheckBalance(ctx context.Context, addr string) (*big.Int, error) {
	return guard(ctx, g, opCheckBalance, addr, func(ctx context.Context) (*big.Int, error) {
		return g.next.CheckBalance(ctx, addr)
	})
}

func (g *Guarded) CheckProRata(ctx context.Context, addr string) (*big.Int, error) {
	return guard(ctx, g, opCheckProRata, addr, func(ctx context.Context) (*big.Int, error) {
		return g.next.CheckProRata(ctx, addr)
	})
}

func (g *Guarded) SetTokenAllotment(ctx context.Context, addr string) (string, error) {
	return guard(ctx, g, opSetTokenAllotment, addr, func(ctx context.Context) (string, error) {
		return g.next.SetTokenAllotment(ctx, addr)
	})
}

func guard[T any](ctx context.Context, g *Guarded, op, addr string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	if !ValidAddress(addr) {
		return zero, fmt.Errorf("%s: %w: %q", op, ErrInvalidAddress, addr)
	}
	if !g.allow() {
		return zero, fmt.Errorf("%s: %w", op, ErrCircuitOpen)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := call(ctx)
	g.metrics.ObserveWhitelistLatency(op, time.Since(start))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		if errors.Is(err, ErrInvalidAddress) {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.markProbe()
			g.logger.WarnContext(ctx, "whitelist circuit opened",
				"request_id", requestcontext.RequestID(ctx),
				"operation", op,
			)
		}
		return zero, fmt.Errorf("%s: %w", op, err)
	}

	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "whitelist circuit closed",
			"request_id", requestcontext.RequestID(ctx),
			"operation", op,
		)
	}
	return result, nil
}

// allow reports whether a call may reach the contract. While the breaker is
// open one call per cooldown passes as a probe.
func (g *Guarded) allow() bool {
	if !g.breaker.IsOpen() {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if now.Sub(g.lastProbe) < g.cooldown {
		return false
	}
	g.lastProbe = now
	return true
}

func (g *Guarded) markProbe() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastProbe = g.now()
}
