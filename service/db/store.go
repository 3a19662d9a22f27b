package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a receipt does not exist.
var ErrNotFound = errors.New("receipt not found")

// schema is applied by EnsureSchema. Statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS receipts (
    signature            TEXT PRIMARY KEY,
    kind                 TEXT NOT NULL,
    payer                TEXT NOT NULL,
    recipient            TEXT NOT NULL,
    gross_lamports       BIGINT NOT NULL,
    net_lamports         BIGINT NOT NULL,
    commission_lamports  BIGINT NOT NULL,
    note                 TEXT,
    request_id           TEXT,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS receipts_created_at_idx ON receipts (created_at DESC);
`

// Store provides database operations for the service.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Receipt is a confirmed payment or payment request as stored in Postgres.
type Receipt struct {
	Signature          string
	Kind               string
	Payer              string
	Recipient          string
	GrossLamports      int64
	NetLamports        int64
	CommissionLamports int64
	Note               *string
	RequestID          *string
	CreatedAt          time.Time
}

// CreateReceiptParams contains the parameters for recording a receipt.
type CreateReceiptParams struct {
	Signature          string
	Kind               string
	Payer              string
	Recipient          string
	GrossLamports      int64
	NetLamports        int64
	CommissionLamports int64
	Note               *string
	RequestID          *string
	CreatedAt          time.Time
}

// EnsureSchema creates the receipts table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const createReceipt = `
INSERT INTO receipts (
    signature, kind, payer, recipient,
    gross_lamports, net_lamports, commission_lamports,
    note, request_id, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING signature, kind, payer, recipient, gross_lamports, net_lamports,
    commission_lamports, note, request_id, created_at`

// CreateReceipt inserts a new receipt.
func (s *Store) CreateReceipt(ctx context.Context, params CreateReceiptParams) (*Receipt, error) {
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row := s.pool.QueryRow(ctx, createReceipt,
		params.Signature,
		params.Kind,
		params.Payer,
		params.Recipient,
		params.GrossLamports,
		params.NetLamports,
		params.CommissionLamports,
		pgtextFromStringPtr(params.Note),
		pgtextFromStringPtr(params.RequestID),
		pgtype.Timestamptz{Time: createdAt, Valid: true},
	)
	r, err := scanReceipt(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create receipt: %w", err)
	}
	return r, nil
}

const getReceipt = `
SELECT signature, kind, payer, recipient, gross_lamports, net_lamports,
    commission_lamports, note, request_id, created_at
FROM receipts WHERE signature = $1`

// GetReceipt retrieves a receipt by transaction signature.
func (s *Store) GetReceipt(ctx context.Context, signature string) (*Receipt, error) {
	r, err := scanReceipt(s.pool.QueryRow(ctx, getReceipt, signature))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return r, nil
}

const listReceipts = `
SELECT signature, kind, payer, recipient, gross_lamports, net_lamports,
    commission_lamports, note, request_id, created_at
FROM receipts ORDER BY created_at DESC LIMIT $1`

// ListReceipts returns the most recent receipts, newest first.
func (s *Store) ListReceipts(ctx context.Context, limit int32) ([]*Receipt, error) {
	rows, err := s.pool.Query(ctx, listReceipts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]*Receipt, 0)
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	return receipts, nil
}

// Helper functions for converting between pgtype and Go types

func scanReceipt(row pgx.Row) (*Receipt, error) {
	var (
		r         Receipt
		note      pgtype.Text
		requestID pgtype.Text
		createdAt pgtype.Timestamptz
	)
	err := row.Scan(
		&r.Signature,
		&r.Kind,
		&r.Payer,
		&r.Recipient,
		&r.GrossLamports,
		&r.NetLamports,
		&r.CommissionLamports,
		&note,
		&requestID,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	r.Note = stringPtrFromPgtext(note)
	r.RequestID = stringPtrFromPgtext(requestID)
	r.CreatedAt = createdAt.Time
	return &r, nil
}

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}
