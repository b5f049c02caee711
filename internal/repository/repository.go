package repository

import (
	"context"

	"github.com/utafrali/pushgate/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
// Refresh tokens are passed and matched as digests, never in clear.
type UserRepository interface {
	// FindOrCreate returns the user with username, inserting it first when it
	// does not exist. created reports whether this call inserted the row.
	FindOrCreate(ctx context.Context, username string) (user *domain.User, created bool, err error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// CommitSecret stores the TOTP secret unless the user already has one.
	// It reports whether the secret was written.
	CommitSecret(ctx context.Context, userID int64, secret string) (bool, error)

	// SetRefreshToken replaces the user's refresh token digest.
	SetRefreshToken(ctx context.Context, userID int64, tokenHash string) error

	// GetByRefreshToken retrieves the user currently holding tokenHash.
	GetByRefreshToken(ctx context.Context, tokenHash string) (*domain.User, error)

	// ClearRefreshToken removes tokenHash from every row holding it and
	// returns the number of rows changed.
	ClearRefreshToken(ctx context.Context, tokenHash string) (int64, error)
}

// SubscriptionRepository defines the interface for push subscription persistence.
type SubscriptionRepository interface {
	// Upsert stores the subscription keyed by its endpoint. An endpoint
	// already registered is transferred to sub.UserID.
	Upsert(ctx context.Context, sub *domain.Subscription) error

	// ListByUser returns every subscription owned by userID.
	ListByUser(ctx context.Context, userID int64) ([]domain.Subscription, error)

	// DeleteByEndpoint removes the subscription for endpoint, if any.
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}
