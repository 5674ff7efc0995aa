package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradevault/tradevault-server/src/models"
)

const credentialColumns = "id, owner_id, broker_type, encrypted_api_key, encrypted_api_secret, is_active, created_at, updated_at"

// PgCredentialRepository is the PostgreSQL-backed credential store.
// Isolation is enforced twice: every statement carries an explicit owner
// predicate, and every transaction binds app.owner_id so the table's row
// security policy refuses rows for any other owner regardless of the
// query shape.
type PgCredentialRepository struct {
	pool *pgxpool.Pool
}

// NewPgCredentialRepository creates a credential repository on a pool
func NewPgCredentialRepository(pool *pgxpool.Pool) *PgCredentialRepository {
	return &PgCredentialRepository{pool: pool}
}

// withOwner runs fn inside a transaction with the requesting principal bound
// to the session before any query executes. set_config(..., true) is
// transaction-local, so concurrent requests on pooled connections never see
// each other's principal.
func (r *PgCredentialRepository) withOwner(ctx context.Context, ownerID uuid.UUID, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT set_config('app.owner_id', $1, true)", ownerID.String()); err != nil {
		return fmt.Errorf("failed to bind owner to transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Insert persists a new credential and returns it with store-assigned fields
func (r *PgCredentialRepository) Insert(ctx context.Context, cred *models.BrokerCredential) (*models.BrokerCredential, error) {
	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}

	var created models.BrokerCredential
	err := r.withOwner(ctx, cred.OwnerID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO broker_credentials (id, owner_id, broker_type, encrypted_api_key, encrypted_api_secret, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+credentialColumns,
			cred.ID, cred.OwnerID, cred.BrokerType, cred.EncryptedAPIKey, cred.EncryptedAPISecret, cred.IsActive,
		).Scan(
			&created.ID, &created.OwnerID, &created.BrokerType,
			&created.EncryptedAPIKey, &created.EncryptedAPISecret,
			&created.IsActive, &created.CreatedAt, &created.UpdatedAt,
		)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to insert credential: %w", err)
	}

	return &created, nil
}

// GetByID returns the credential only when it belongs to ownerID; any other
// outcome is ErrNotFound
func (r *PgCredentialRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.BrokerCredential, error) {
	var cred models.BrokerCredential
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			"SELECT "+credentialColumns+" FROM broker_credentials WHERE id = $1 AND owner_id = $2",
			id, ownerID,
		).Scan(
			&cred.ID, &cred.OwnerID, &cred.BrokerType,
			&cred.EncryptedAPIKey, &cred.EncryptedAPISecret,
			&cred.IsActive, &cred.CreatedAt, &cred.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &cred, nil
}

// ListByOwner returns all of the owner's credentials, newest first
func (r *PgCredentialRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.BrokerCredential, error) {
	var creds []models.BrokerCredential
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			"SELECT "+credentialColumns+" FROM broker_credentials WHERE owner_id = $1 ORDER BY created_at DESC",
			ownerID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var cred models.BrokerCredential
			if err := rows.Scan(
				&cred.ID, &cred.OwnerID, &cred.BrokerType,
				&cred.EncryptedAPIKey, &cred.EncryptedAPISecret,
				&cred.IsActive, &cred.CreatedAt, &cred.UpdatedAt,
			); err != nil {
				return err
			}
			creds = append(creds, cred)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	return creds, nil
}

// Update applies a partial update in a single statement, so no reader can
// observe a half-updated record. Unsupplied fields stay untouched.
func (r *PgCredentialRepository) Update(ctx context.Context, ownerID, id uuid.UUID, upd CredentialUpdate) (*models.BrokerCredential, error) {
	var updated models.BrokerCredential
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			UPDATE broker_credentials
			SET encrypted_api_key    = COALESCE($3, encrypted_api_key),
			    encrypted_api_secret = COALESCE($4, encrypted_api_secret),
			    is_active            = COALESCE($5, is_active),
			    updated_at           = NOW()
			WHERE id = $1 AND owner_id = $2
			RETURNING `+credentialColumns,
			id, ownerID, upd.EncryptedAPIKey, upd.EncryptedAPISecret, upd.IsActive,
		).Scan(
			&updated.ID, &updated.OwnerID, &updated.BrokerType,
			&updated.EncryptedAPIKey, &updated.EncryptedAPISecret,
			&updated.IsActive, &updated.CreatedAt, &updated.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			// Reactivating alongside an existing active credential of the
			// same broker type
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to update credential: %w", err)
	}

	return &updated, nil
}

// Delete hard-deletes the credential; a missing or non-owned id is ErrNotFound
func (r *PgCredentialRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx,
			"DELETE FROM broker_credentials WHERE id = $1 AND owner_id = $2",
			id, ownerID,
		)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL 23505
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Ensure PgCredentialRepository implements the interface
var _ CredentialRepository = (*PgCredentialRepository)(nil)
