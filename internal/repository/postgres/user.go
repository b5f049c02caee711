package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/pushgate/internal/domain"
	"github.com/utafrali/pushgate/pkg/database"
	apperrors "github.com/utafrali/pushgate/pkg/errors"
)

const userColumns = `id, username, two_fa_secret, refresh_token, created_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// FindOrCreate inserts username or, on conflict, touches the existing row so
// RETURNING yields it. xmax is zero only for a freshly inserted tuple.
func (r *UserRepository) FindOrCreate(ctx context.Context, username string) (_ *domain.User, _ bool, err error) {
	query := `
		INSERT INTO users (username)
		VALUES ($1)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING ` + userColumns + `, (xmax = 0) AS created`

	ctx, end := database.TraceQuery(ctx, "FindOrCreateUser", query)
	defer func() { end(err) }()

	var (
		u       domain.User
		created bool
	)
	err = r.db.QueryRow(ctx, query, username).Scan(
		&u.ID,
		&u.Username,
		&u.TwoFactorSecret,
		&u.RefreshToken,
		&u.CreatedAt,
		&created,
	)
	if err != nil {
		return nil, false, fmt.Errorf("upsert user: %w", err)
	}
	return &u, created, nil
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanUser(ctx, "GetUserByUsername", query, username)
}

// GetByRefreshToken retrieves the user holding tokenHash.
func (r *UserRepository) GetByRefreshToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE refresh_token = $1`
	return r.scanUser(ctx, "GetUserByRefreshToken", query, tokenHash)
}

// CommitSecret writes secret only while the user has none.
func (r *UserRepository) CommitSecret(ctx context.Context, userID int64, secret string) (_ bool, err error) {
	query := `UPDATE users SET two_fa_secret = $1 WHERE id = $2 AND two_fa_secret IS NULL`

	ctx, end := database.TraceQuery(ctx, "CommitTwoFactorSecret", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, secret, userID)
	if err != nil {
		return false, fmt.Errorf("commit 2fa secret: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// SetRefreshToken replaces the stored refresh token digest.
func (r *UserRepository) SetRefreshToken(ctx context.Context, userID int64, tokenHash string) (err error) {
	query := `UPDATE users SET refresh_token = $1 WHERE id = $2`

	ctx, end := database.TraceQuery(ctx, "SetRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, tokenHash, userID)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("User not found")
	}
	return nil
}

// ClearRefreshToken nulls the refresh token on every row holding tokenHash.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, tokenHash string) (_ int64, err error) {
	query := `UPDATE users SET refresh_token = NULL WHERE refresh_token = $1`

	ctx, end := database.TraceQuery(ctx, "ClearRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, tokenHash)
	if err != nil {
		return 0, fmt.Errorf("clear refresh token: %w", err)
	}
	return ct.RowsAffected(), nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, operation, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var u domain.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Username,
		&u.TwoFactorSecret,
		&u.RefreshToken,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
