// Package allotment registers token holders for their pro-rata sale
// allotment. A holder is eligible once their balance reaches the configured
// minimum; an allotment transaction is only sent when the contract reports a
// non-zero share.
package allotment

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"presale/internal/audit"
	dErrors "presale/pkg/domain-errors"
	"presale/pkg/requestcontext"
)

// Client is the subset of the sale contract the registration flow uses.
type Client interface {
	CheckBalance(ctx context.Context, addr string) (*big.Int, error)
	CheckProRata(ctx context.Context, addr string) (*big.Int, error)
	SetTokenAllotment(ctx context.Context, addr string) (string, error)
}

// Result describes one registration attempt.
type Result struct {
	Eligible bool
	// TxHash is empty when no allotment transaction was sent.
	TxHash string
	TxURL  string
}

// Service runs the registration flow.
type Service struct {
	client        Client
	minBalance    *big.Int
	explorerTxURL string
	auditor       audit.Publisher
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithAuditor(p audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

// New parses minBalance as a base-10 integer.
func New(client Client, minBalance, explorerTxURL string, logger *slog.Logger, opts ...Option) (*Service, error) {
	minimum, ok := new(big.Int).SetString(strings.TrimSpace(minBalance), 10)
	if !ok {
		return nil, fmt.Errorf("invalid minimum balance %q", minBalance)
	}
	s := &Service{
		client:        client,
		minBalance:    minimum,
		explorerTxURL: explorerTxURL,
		auditor:       audit.Discard{},
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register checks addr's balance and, when eligible with a non-zero share,
// sets its token allotment.
func (s *Service) Register(ctx context.Context, addr string) (*Result, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid address input")
	}

	balance, err := s.client.CheckBalance(ctx, addr)
	if err != nil {
		return nil, s.clientFailure(ctx, "check balance", addr, err)
	}
	if balance.Cmp(s.minBalance) < 0 {
		return &Result{Eligible: false}, nil
	}

	share, err := s.client.CheckProRata(ctx, addr)
	if err != nil {
		return nil, s.clientFailure(ctx, "check pro rata", addr, err)
	}
	if share.Sign() <= 0 {
		return &Result{Eligible: true}, nil
	}

	txHash, err := s.client.SetTokenAllotment(ctx, addr)
	if err != nil {
		return nil, s.clientFailure(ctx, "set token allotment", addr, err)
	}

	s.logger.InfoContext(ctx, "token allotment set",
		"request_id", requestcontext.RequestID(ctx),
		"address", addr,
		"tx_hash", txHash,
	)
	if err := s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionAllotmentSet,
		Timestamp: requestcontext.Now(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Address:   addr,
		TxHash:    txHash,
		Attributes: map[string]string{
			"balance":  balance.String(),
			"pro_rata": share.String(),
		},
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit allotment audit event", "error", err)
	}

	return &Result{
		Eligible: true,
		TxHash:   txHash,
		TxURL:    s.explorerTxURL + txHash,
	}, nil
}

func (s *Service) clientFailure(ctx context.Context, op, addr string, err error) error {
	s.logger.WarnContext(ctx, "token allotment registration failed",
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"address", addr,
		"error", err,
	)
	return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid address input")
}
