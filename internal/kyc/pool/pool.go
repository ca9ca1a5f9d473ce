// Package pool manages the pre-generated blockchain addresses handed to
// non-US VIP investors. The first address ever loaded is the reserved
// sentinel: it marks "no on-chain action needed" and is never assigned.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"presale/internal/audit"
	"presale/internal/kyc"
	"presale/internal/kyc/metrics"
	dErrors "presale/pkg/domain-errors"
	"presale/pkg/platform/sentinel"
	"presale/pkg/requestcontext"
)

// Record is one pool address as stored.
type Record struct {
	ID      int64
	Address kyc.Address
	Used    bool
}

// Stats summarises pool capacity.
type Stats struct {
	Total     int
	Available int
}

// Store persists pool records. Implementations must make AssignNext atomic:
// two concurrent calls never return the same address.
type Store interface {
	// Reserved returns the first inserted address, sentinel.ErrNotFound when empty.
	Reserved(ctx context.Context) (kyc.Address, error)
	// AssignNext marks the first unused non-reserved record used and returns
	// it, sentinel.ErrExhausted when none remain.
	AssignNext(ctx context.Context) (kyc.Address, error)
	// Append stores the batch in order; the first address is stored used.
	Append(ctx context.Context, addresses []kyc.Address) error
	Records(ctx context.Context) ([]Record, error)
	Stats(ctx context.Context) (Stats, error)
}

// Service wraps a Store with validation, error translation and bookkeeping.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor audit.Publisher
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditor(p audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

// New builds a pool service.
func New(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, logger: logger, auditor: audit.Discard{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reserved returns the sentinel address.
func (s *Service) Reserved(ctx context.Context) (kyc.Address, error) {
	addr, err := s.store.Reserved(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", kyc.ErrPoolNotLoaded
		}
		return "", fmt.Errorf("%w: load reserved address: %w", kyc.ErrPersistence, err)
	}
	return addr, nil
}

// AssignNext consumes the next available pool address.
func (s *Service) AssignNext(ctx context.Context) (kyc.Address, error) {
	addr, err := s.store.AssignNext(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrExhausted) {
			s.logger.WarnContext(ctx, "address pool exhausted",
				"request_id", requestcontext.RequestID(ctx),
			)
			s.refreshGauge(ctx)
			return "", kyc.ErrPoolExhausted
		}
		return "", fmt.Errorf("%w: assign pool address: %w", kyc.ErrPersistence, err)
	}
	s.refreshGauge(ctx)
	return addr, nil
}

// BulkLoad appends an ordered batch. The first address of the batch is stored
// as used so a reserved slot is never handed out.
func (s *Service) BulkLoad(ctx context.Context, addresses []kyc.Address) error {
	if len(addresses) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one address is required")
	}
	cleaned := make([]kyc.Address, len(addresses))
	for i, a := range addresses {
		trimmed := strings.TrimSpace(string(a))
		if trimmed == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("address %d is empty", i))
		}
		cleaned[i] = kyc.Address(trimmed)
	}

	if err := s.store.Append(ctx, cleaned); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pool addresses")
	}

	s.logger.InfoContext(ctx, "pool addresses loaded",
		"request_id", requestcontext.RequestID(ctx),
		"count", len(cleaned),
		"actor", requestcontext.AdminUser(ctx),
	)
	if err := s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionPoolLoaded,
		Timestamp: requestcontext.Now(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.AdminUser(ctx),
		Attributes: map[string]string{
			"count": fmt.Sprint(len(cleaned)),
		},
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit pool audit event", "error", err)
	}
	s.refreshGauge(ctx)
	return nil
}

// Stats reports pool capacity.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pool stats")
	}
	return st, nil
}

func (s *Service) refreshGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if st, err := s.store.Stats(ctx); err == nil {
		s.metrics.SetPoolAvailable(st.Available)
	}
}
