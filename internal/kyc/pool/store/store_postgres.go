package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"presale/internal/kyc"
	"presale/internal/kyc/pool"
	"presale/internal/platform/postgres"
	"presale/pkg/platform/sentinel"
)

// PostgresStore persists pool addresses in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed pool store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Reserved(ctx context.Context) (kyc.Address, error) {
	var addr string
	err := s.db.QueryRowContext(ctx,
		`SELECT address FROM pool_addresses ORDER BY id LIMIT 1`,
	).Scan(&addr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("select reserved address: %w", err)
	}
	return kyc.Address(addr), nil
}

// maxAssignAttempts bounds retries when every remaining row is momentarily
// locked by concurrent assigners.
const maxAssignAttempts = 20

// AssignNext flips one row with a single conditional update. SKIP LOCKED lets
// concurrent callers move past a row another transaction is claiming, and the
// outer used = FALSE guard keeps a row from being returned twice.
func (s *PostgresStore) AssignNext(ctx context.Context) (kyc.Address, error) {
	for attempt := 0; attempt < maxAssignAttempts; attempt++ {
		var addr string
		err := s.db.QueryRowContext(ctx, `
			UPDATE pool_addresses
			SET used = TRUE
			WHERE id = (
				SELECT id FROM pool_addresses
				WHERE used = FALSE
				  AND id > (SELECT MIN(id) FROM pool_addresses)
				ORDER BY id
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			AND used = FALSE
			RETURNING address
		`).Scan(&addr)
		if err == nil {
			return kyc.Address(addr), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("assign pool address: %w", err)
		}

		// No row was claimable. Only report exhaustion when nothing unused
		// remains; otherwise the rows were locked by in-flight assigners.
		st, err := s.Stats(ctx)
		if err != nil {
			return "", err
		}
		if st.Available == 0 {
			return "", sentinel.ErrExhausted
		}
	}
	return "", fmt.Errorf("assign pool address: %w", sentinel.ErrUnavailable)
}

func (s *PostgresStore) Append(ctx context.Context, addresses []kyc.Address) error {
	return postgres.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO pool_addresses (address, used) VALUES ($1, $2)`)
		if err != nil {
			return fmt.Errorf("prepare pool insert: %w", err)
		}
		defer stmt.Close()

		for i, addr := range addresses {
			if _, err := stmt.ExecContext(ctx, string(addr), i == 0); err != nil {
				return fmt.Errorf("insert pool address %d: %w", i, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) Records(ctx context.Context) ([]pool.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, address, used FROM pool_addresses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list pool addresses: %w", err)
	}
	defer rows.Close()

	var records []pool.Record
	for rows.Next() {
		var r pool.Record
		var addr string
		if err := rows.Scan(&r.ID, &addr, &r.Used); err != nil {
			return nil, fmt.Errorf("scan pool address: %w", err)
		}
		r.Address = kyc.Address(addr)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool addresses: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (pool.Stats, error) {
	var st pool.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE used = FALSE AND id > (SELECT MIN(id) FROM pool_addresses))
		FROM pool_addresses
	`).Scan(&st.Total, &st.Available)
	if err != nil {
		return pool.Stats{}, fmt.Errorf("pool stats: %w", err)
	}
	return st, nil
}
