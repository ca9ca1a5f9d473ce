// Package decision turns a verified KYC payload into a recipient address, an
// optional whitelist transaction and a ledger row.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"presale/internal/audit"
	"presale/internal/kyc"
	"presale/internal/kyc/claim"
	"presale/internal/kyc/decision/ports"
	"presale/internal/kyc/metrics"
	"presale/pkg/platform/sentinel"
	"presale/pkg/requestcontext"
)

// Result is the outcome of processing one callback.
type Result struct {
	TransactionID string
	Route         Route
	Address       kyc.Address
	TxHash        string
	// Duplicate is set when the transaction was already recorded; nothing was
	// changed by this call.
	Duplicate bool
}

// Service processes verified callbacks.
type Service struct {
	pool      ports.PoolPort
	ledger    ports.LedgerPort
	whitelist ports.WhitelistPort
	claimer   claim.Claimer
	auditor   audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditor(p audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithClaimer(c claim.Claimer) Option {
	return func(s *Service) { s.claimer = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// New builds the decision service. Without WithClaimer, claims are held in
// process for two minutes.
func New(pool ports.PoolPort, ledger ports.LedgerPort, whitelist ports.WhitelistPort, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		pool:      pool,
		ledger:    ledger,
		whitelist: whitelist,
		claimer:   claim.NewMemory(2 * time.Minute),
		auditor:   audit.Discard{},
		logger:    logger,
		tracer:    otel.Tracer("presale/kyc/decision"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process resolves the recipient for payload, whitelists it when required and
// records the participant. On failure nothing is recorded; a pool address
// consumed before the failure stays used.
func (s *Service) Process(ctx context.Context, payload *kyc.Payload, sourceAddr string) (*Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "kyc.process", trace.WithAttributes(
		attribute.String("kyc.transaction_id", payload.TransactionID),
		attribute.String("kyc.outcome", string(payload.Outcome)),
		attribute.String("kyc.submitter_kind", payload.SubmitterKind().String()),
	))
	defer span.End()

	result, err := s.process(ctx, payload, sourceAddr)
	s.metrics.ObserveProcessLatency(time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, kyc.FailureKind(err))
		s.reportFailure(ctx, payload, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("kyc.route", result.Route.String()),
		attribute.Bool("kyc.duplicate", result.Duplicate),
	)
	if result.Duplicate {
		s.reportDuplicate(ctx, payload)
	} else {
		s.reportProcessed(ctx, payload, result)
	}
	return result, nil
}

func (s *Service) process(ctx context.Context, payload *kyc.Payload, sourceAddr string) (*Result, error) {
	release, err := s.claimer.Acquire(ctx, payload.TransactionID)
	if err != nil {
		if errors.Is(err, claim.ErrHeld) {
			return nil, kyc.ErrInFlight
		}
		return nil, fmt.Errorf("%w: %w", kyc.ErrClaim, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release callback claim; redeliveries wait for the lease to expire",
				"request_id", requestcontext.RequestID(ctx),
				"transaction_id", payload.TransactionID,
				"error", err,
			)
		}
	}()

	existing, err := s.ledger.FindByTransactionID(ctx, payload.TransactionID)
	switch {
	case err == nil:
		return &Result{
			TransactionID: existing.TransactionID,
			Route:         Resolve(payload.SubmitterKind(), payload.Form.Country),
			Address:       existing.Address,
			TxHash:        existing.TxHash,
			Duplicate:     true,
		}, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, fmt.Errorf("%w: lookup transaction: %w", kyc.ErrPersistence, err)
	}

	route := Resolve(payload.SubmitterKind(), payload.Form.Country)
	recipient, reserved, err := s.recipient(ctx, route, payload)
	if err != nil {
		return nil, err
	}

	txHash := kyc.NoTransaction
	if RequiresWhitelist(payload.Outcome, recipient, reserved) {
		wctx, span := s.tracer.Start(ctx, "kyc.whitelist")
		txHash, err = s.whitelist.AddToWhitelist(wctx, string(recipient))
		if err != nil {
			span.RecordError(err)
			span.End()
			return nil, fmt.Errorf("%w: %w", kyc.ErrWhitelistClient, err)
		}
		span.End()
	}

	rec := &kyc.ParticipantRecord{
		TransactionID: payload.TransactionID,
		CreatedAt:     requestcontext.Now(ctx),
		SourceAddr:    sourceAddr,
		Outcome:       payload.Outcome,
		Address:       recipient,
		SubmitterID:   payload.Form.SubmitterID,
		Email:         payload.Form.Email,
		AddrCountry:   payload.Form.Country,
		DocCountry:    payload.Form.DocCountry,
		TxHash:        txHash,
	}
	if err := s.ledger.Record(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %w", kyc.ErrPersistence, err)
	}

	return &Result{
		TransactionID: payload.TransactionID,
		Route:         route,
		Address:       recipient,
		TxHash:        txHash,
	}, nil
}

// recipient resolves the address for route along with the reserved sentinel
// used for the whitelist rule. A general submitter is processed even when the
// pool has not been loaded; nothing is reserved in that case.
func (s *Service) recipient(ctx context.Context, route Route, payload *kyc.Payload) (recipient, reserved kyc.Address, err error) {
	switch route {
	case RouteReserved:
		reserved, err = s.pool.Reserved(ctx)
		if err != nil {
			return "", "", err
		}
		return reserved, reserved, nil

	case RoutePooled:
		reserved, err = s.pool.Reserved(ctx)
		if err != nil {
			return "", "", err
		}
		recipient, err = s.pool.AssignNext(ctx)
		if err != nil {
			return "", "", err
		}
		return recipient, reserved, nil

	case RouteUserSupplied:
		reserved, err = s.pool.Reserved(ctx)
		if err != nil && !errors.Is(err, kyc.ErrPoolNotLoaded) {
			return "", "", err
		}
		return payload.Form.UserAddress, reserved, nil

	default:
		return "", "", fmt.Errorf("no address route for submitter kind %s", payload.SubmitterKind())
	}
}

func (s *Service) reportProcessed(ctx context.Context, payload *kyc.Payload, result *Result) {
	s.metrics.IncrementProcessed(string(payload.Outcome), result.Route.String())
	s.logger.InfoContext(ctx, "kyc callback processed",
		"request_id", requestcontext.RequestID(ctx),
		"transaction_id", payload.TransactionID,
		"outcome", payload.Outcome,
		"route", result.Route.String(),
		"address", result.Address,
		"tx_hash", result.TxHash,
	)
	s.emit(ctx, audit.Event{
		Action:        audit.ActionCallbackProcessed,
		TransactionID: payload.TransactionID,
		Outcome:       string(payload.Outcome),
		Address:       string(result.Address),
		TxHash:        result.TxHash,
		Attributes:    map[string]string{"route": result.Route.String()},
	})
}

func (s *Service) reportDuplicate(ctx context.Context, payload *kyc.Payload) {
	s.metrics.IncrementDuplicate()
	s.logger.InfoContext(ctx, "kyc callback already recorded",
		"request_id", requestcontext.RequestID(ctx),
		"transaction_id", payload.TransactionID,
	)
	s.emit(ctx, audit.Event{
		Action:        audit.ActionCallbackDuplicate,
		TransactionID: payload.TransactionID,
		Outcome:       string(payload.Outcome),
	})
}

func (s *Service) reportFailure(ctx context.Context, payload *kyc.Payload, err error) {
	kind := kyc.FailureKind(err)
	s.metrics.IncrementFailed(kind)
	s.logger.ErrorContext(ctx, "kyc callback failed",
		"request_id", requestcontext.RequestID(ctx),
		"transaction_id", payload.TransactionID,
		"kind", kind,
		"error", err,
	)
	s.emit(ctx, audit.Event{
		Action:        audit.ActionCallbackFailed,
		TransactionID: payload.TransactionID,
		Outcome:       string(payload.Outcome),
		Reason:        kind,
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"request_id", event.RequestID,
			"action", event.Action,
			"error", err,
		)
	}
}
