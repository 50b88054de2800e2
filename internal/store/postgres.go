package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/paygate/internal/domain"
)

// PostgresStore implements IntentRepository and SessionRepository on a pgx pool.
type PostgresStore struct {
	Db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{Db: pool}, nil
}

func (s *PostgresStore) Close() {
	s.Db.Close()
}

// InsertIntent writes a new payment intent row.
func (s *PostgresStore) InsertIntent(ctx context.Context, in *domain.PaymentIntent) error {
	_, err := s.Db.Exec(ctx,
		`INSERT INTO payment_intents (id, merchant_id, amount, currency, card_last_four, holder_name, status, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		in.ID, in.MerchantID, in.Amount.String(), in.Currency, in.CardLastFour, in.HolderName,
		string(in.Status), in.CreatedAt, in.CompletedAt,
	)
	return err
}

// FindIntent retrieves an intent by ID, optionally restricted to a set of statuses.
func (s *PostgresStore) FindIntent(ctx context.Context, id string, statuses ...domain.IntentStatus) (*domain.PaymentIntent, error) {
	var filter []string
	for _, st := range statuses {
		filter = append(filter, string(st))
	}

	var (
		in     domain.PaymentIntent
		amount string
		status string
	)
	err := s.Db.QueryRow(ctx,
		`SELECT id, merchant_id, amount::text, currency, card_last_four, holder_name, status, created_at, completed_at
		 FROM payment_intents
		 WHERE id = $1 AND ($2::text[] IS NULL OR status = ANY($2::text[]))`,
		id, filter,
	).Scan(&in.ID, &in.MerchantID, &amount, &in.Currency, &in.CardLastFour, &in.HolderName, &status, &in.CreatedAt, &in.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	in.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", amount, err)
	}
	in.Status = domain.IntentStatus(status)
	return &in, nil
}

// UpdateIntentStatus sets status (and completed_at when given). Zero rows affected is not an error.
func (s *PostgresStore) UpdateIntentStatus(ctx context.Context, id string, status domain.IntentStatus, completedAt *time.Time) error {
	_, err := s.Db.Exec(ctx,
		"UPDATE payment_intents SET status = $2, completed_at = COALESCE($3, completed_at) WHERE id = $1",
		id, string(status), completedAt,
	)
	return err
}

func (s *PostgresStore) InsertAudit(ctx context.Context, e *domain.AuditEntry) error {
	_, err := s.Db.Exec(ctx,
		"INSERT INTO audit_logs (id, payment_intent_id, action, created_at) VALUES ($1, $2, $3, $4)",
		e.ID, e.IntentID, e.Action, e.CreatedAt,
	)
	return err
}

func (s *PostgresStore) InsertSession(ctx context.Context, cs *domain.CodeSession) error {
	_, err := s.Db.Exec(ctx,
		`INSERT INTO code_sessions (id, payment_intent_id, code, created_at, expires_at, verified, failed, verified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cs.ID, cs.IntentID, cs.Code, cs.CreatedAt, cs.ExpiresAt, cs.Verified, cs.Failed, cs.VerifiedAt,
	)
	return err
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*domain.CodeSession, error) {
	var cs domain.CodeSession
	err := s.Db.QueryRow(ctx,
		`SELECT id, payment_intent_id, code, created_at, expires_at, verified, failed, verified_at
		 FROM code_sessions WHERE id = $1`,
		id,
	).Scan(&cs.ID, &cs.IntentID, &cs.Code, &cs.CreatedAt, &cs.ExpiresAt, &cs.Verified, &cs.Failed, &cs.VerifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cs, nil
}

// ConsumeSession relies on the verified = FALSE predicate so only one concurrent caller matches the row.
func (s *PostgresStore) ConsumeSession(ctx context.Context, id string, failed bool, at time.Time) (bool, error) {
	tag, err := s.Db.Exec(ctx,
		"UPDATE code_sessions SET verified = TRUE, failed = $2, verified_at = $3 WHERE id = $1 AND verified = FALSE",
		id, failed, at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
