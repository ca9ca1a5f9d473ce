package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"presale/internal/kyc"
	"presale/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists participant rows in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, rec *kyc.ParticipantRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (
			tid, created_at, ip_addr, kyc_result, eth_addr,
			user_id, email, addr_country, doc_country, tx_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		rec.TransactionID,
		rec.CreatedAt,
		rec.SourceAddr,
		string(rec.Outcome),
		string(rec.Address),
		rec.SubmitterID,
		nullString(rec.Email),
		rec.AddrCountry,
		rec.DocCountry,
		rec.TxHash,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByTransactionID(ctx context.Context, transactionID string) (*kyc.ParticipantRecord, error) {
	row := s.db.QueryRowContext(ctx, selectParticipant+` WHERE tid = $1`, transactionID)
	return scanParticipant(row)
}

func (s *PostgresStore) FindBySubmitter(ctx context.Context, submitterID string) (*kyc.ParticipantRecord, error) {
	row := s.db.QueryRowContext(ctx, selectParticipant+` WHERE user_id = $1 ORDER BY id DESC LIMIT 1`, submitterID)
	return scanParticipant(row)
}

const selectParticipant = `
	SELECT tid, created_at, ip_addr, kyc_result, eth_addr,
	       user_id, email, addr_country, doc_country, tx_hash
	FROM participants`

func scanParticipant(row *sql.Row) (*kyc.ParticipantRecord, error) {
	var (
		rec     kyc.ParticipantRecord
		outcome string
		addr    string
		email   sql.NullString
	)
	err := row.Scan(
		&rec.TransactionID,
		&rec.CreatedAt,
		&rec.SourceAddr,
		&outcome,
		&addr,
		&rec.SubmitterID,
		&email,
		&rec.AddrCountry,
		&rec.DocCountry,
		&rec.TxHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan participant: %w", err)
	}
	rec.Outcome = kyc.Outcome(outcome)
	rec.Address = kyc.Address(addr)
	rec.Email = email.String
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
