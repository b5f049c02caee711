package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/utafrali/pushgate/internal/domain"
	"github.com/utafrali/pushgate/pkg/database"
	apperrors "github.com/utafrali/pushgate/pkg/errors"
)

// SubscriptionRepository implements repository.SubscriptionRepository using PostgreSQL.
type SubscriptionRepository struct {
	db database.DBTX
}

// NewSubscriptionRepository creates a new PostgreSQL-backed subscription repository.
func NewSubscriptionRepository(db database.DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Upsert stores sub keyed by its endpoint. On conflict the row moves to the
// new owner and its creation time is reset.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) (err error) {
	query := `
		INSERT INTO subscriptions (user_id, sub_data)
		VALUES ($1, $2)
		ON CONFLICT ((sub_data->>'endpoint'))
		DO UPDATE SET user_id = EXCLUDED.user_id, sub_data = EXCLUDED.sub_data, created_at = NOW()
		RETURNING id, created_at`

	ctx, end := database.TraceQuery(ctx, "UpsertSubscription", query)
	defer func() { end(err) }()

	data, err := json.Marshal(sub.Descriptor)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}

	err = r.db.QueryRow(ctx, query, sub.UserID, data).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.NotFound("User not found")
		}
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// ListByUser returns the user's subscriptions, oldest first.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID int64) (_ []domain.Subscription, err error) {
	query := `
		SELECT id, user_id, sub_data, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY id`

	ctx, end := database.TraceQuery(ctx, "ListSubscriptionsByUser", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var (
			s    domain.Subscription
			data []byte
		)
		if err := rows.Scan(&s.ID, &s.UserID, &data, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if err := json.Unmarshal(data, &s.Descriptor); err != nil {
			return nil, fmt.Errorf("decode subscription %d: %w", s.ID, err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

// DeleteByEndpoint removes the subscription registered for endpoint.
func (r *SubscriptionRepository) DeleteByEndpoint(ctx context.Context, endpoint string) (err error) {
	query := `DELETE FROM subscriptions WHERE sub_data->>'endpoint' = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteSubscriptionByEndpoint", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, endpoint); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}
