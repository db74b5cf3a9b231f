package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallbiznis/canvas-auth/internal/domain"
)

// Compile-time interface assertion.
var _ TokenRepository = (*PostgresTokenRepo)(nil)

// PostgresTokenRepo implements TokenRepository on a pgx pool.
type PostgresTokenRepo struct {
	db   *pgxpool.Pool
	node *snowflake.Node
}

func NewPostgresTokenRepo(pool *pgxpool.Pool, node *snowflake.Node) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: pool, node: node}
}

const findTokenSQL = `SELECT id, owner_id, access_token, refresh_token, expires_at, created_at, updated_at
FROM canvas_tokens WHERE owner_id = $1`

func (r *PostgresTokenRepo) Find(ctx context.Context, ownerID string) (domain.CanvasToken, error) {
	var token domain.CanvasToken
	row := r.db.QueryRow(ctx, findTokenSQL, ownerID)
	if err := row.Scan(
		&token.ID,
		&token.OwnerID,
		&token.AccessToken,
		&token.RefreshToken,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CanvasToken{}, ErrTokenNotFound
		}
		return domain.CanvasToken{}, fmt.Errorf("find token: %w", err)
	}
	return token, nil
}

const insertTokenSQL = `INSERT INTO canvas_tokens (id, owner_id, access_token, refresh_token, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
RETURNING id, owner_id, access_token, refresh_token, expires_at, created_at, updated_at`

func (r *PostgresTokenRepo) Create(ctx context.Context, token domain.CanvasToken) (domain.CanvasToken, error) {
	now := time.Now().UTC()
	row := r.db.QueryRow(ctx, insertTokenSQL,
		r.node.Generate().Int64(),
		token.OwnerID,
		token.AccessToken,
		token.RefreshToken,
		token.ExpiresAt,
		now,
	)

	var inserted domain.CanvasToken
	if err := row.Scan(
		&inserted.ID,
		&inserted.OwnerID,
		&inserted.AccessToken,
		&inserted.RefreshToken,
		&inserted.ExpiresAt,
		&inserted.CreatedAt,
		&inserted.UpdatedAt,
	); err != nil {
		return domain.CanvasToken{}, fmt.Errorf("create token: %w", err)
	}
	return inserted, nil
}

const updateTokenSQL = `UPDATE canvas_tokens
SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = $5
WHERE owner_id = $1`

// Save overwrites the mutable fields of an existing row. The write is a
// plain last-writer-wins update; concurrent refreshes are not serialized.
func (r *PostgresTokenRepo) Save(ctx context.Context, token domain.CanvasToken) error {
	tag, err := r.db.Exec(ctx, updateTokenSQL,
		token.OwnerID,
		token.AccessToken,
		token.RefreshToken,
		token.ExpiresAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

const deleteTokenSQL = `DELETE FROM canvas_tokens WHERE owner_id = $1`

func (r *PostgresTokenRepo) Delete(ctx context.Context, ownerID string) error {
	if _, err := r.db.Exec(ctx, deleteTokenSQL, ownerID); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
