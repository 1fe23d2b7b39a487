package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/qbportal/internal/platform/db"
)

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PostgresStore implements Store on the qbo_credentials table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	cipher *Cipher
}

// NewPostgresStore constructs a PostgresStore. cipher may be nil.
func NewPostgresStore(pool *pgxpool.Pool, cipher *Cipher) *PostgresStore {
	return &PostgresStore{pool: pool, cipher: cipher}
}

const selectCredential = `
SELECT user_id, access_token, refresh_token, realm_id, expires_at, refresh_expires_at, connected, updated_at
FROM qbo_credentials`

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, userID string) (Credential, error) {
	return s.get(ctx, s.pool, selectCredential+` WHERE user_id = $1`, userID)
}

// Save locks the user's row, applies patch and upserts the result.
func (s *PostgresStore) Save(ctx context.Context, userID string, patch Patch) (Credential, error) {
	var saved Credential
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.get(ctx, tx, selectCredential+` WHERE user_id = $1 FOR UPDATE`, userID)
		switch {
		case errors.Is(err, ErrNotFound):
			current = Credential{UserID: userID}
		case err != nil:
			return err
		}

		next := patch.Apply(current)
		access, err := s.cipher.Seal(next.AccessToken, userID)
		if err != nil {
			return err
		}
		refresh, err := s.cipher.Seal(next.RefreshToken, userID)
		if err != nil {
			return err
		}

		var updatedAt time.Time
		err = tx.QueryRow(ctx, `
INSERT INTO qbo_credentials (user_id, access_token, refresh_token, realm_id, expires_at, refresh_expires_at, connected)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id) DO UPDATE SET
    access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    realm_id = EXCLUDED.realm_id,
    expires_at = EXCLUDED.expires_at,
    refresh_expires_at = EXCLUDED.refresh_expires_at,
    connected = EXCLUDED.connected,
    updated_at = NOW()
RETURNING updated_at`,
			userID, access, refresh, next.RealmID,
			timestamptz(next.ExpiresAt), timestamptz(next.RefreshExpiresAt), next.Connected,
		).Scan(&updatedAt)
		if err != nil {
			return fmt.Errorf("credentials: upsert: %w", err)
		}
		next.UpdatedAt = updatedAt.UTC()
		saved = next
		return nil
	})
	if err != nil {
		return Credential{}, err
	}
	return saved, nil
}

// ListRefreshExpiring implements Store.
func (s *PostgresStore) ListRefreshExpiring(ctx context.Context, before time.Time) ([]Credential, error) {
	rows, err := s.pool.Query(ctx, selectCredential+`
WHERE connected AND refresh_expires_at IS NOT NULL AND refresh_expires_at < $1
ORDER BY refresh_expires_at`, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("credentials: list expiring: %w", err)
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		cred, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

func (s *PostgresStore) get(ctx context.Context, q dbtx, query, userID string) (Credential, error) {
	cred, err := s.scan(q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	return cred, err
}

func (s *PostgresStore) scan(row pgx.Row) (Credential, error) {
	var (
		cred             Credential
		expiresAt        pgtype.Timestamptz
		refreshExpiresAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&cred.UserID,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.RealmID,
		&expiresAt,
		&refreshExpiresAt,
		&cred.Connected,
		&cred.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, err
		}
		return Credential{}, fmt.Errorf("credentials: scan: %w", err)
	}
	if expiresAt.Valid {
		cred.ExpiresAt = expiresAt.Time.UTC()
	}
	if refreshExpiresAt.Valid {
		cred.RefreshExpiresAt = refreshExpiresAt.Time.UTC()
	}
	cred.UpdatedAt = cred.UpdatedAt.UTC()

	var err error
	if cred.AccessToken, err = s.cipher.Open(cred.AccessToken, cred.UserID); err != nil {
		return Credential{}, err
	}
	if cred.RefreshToken, err = s.cipher.Open(cred.RefreshToken, cred.UserID); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t.UTC(), Valid: !t.IsZero()}
}

var _ Store = (*PostgresStore)(nil)
