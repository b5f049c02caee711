package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/utafrali/pushgate/internal/domain"
	pkgkafka "github.com/utafrali/pushgate/pkg/kafka"
	"github.com/utafrali/pushgate/pkg/logger"
)

// Kafka topics for pushgate events.
const (
	TopicUserCreated            = "pushgate.user.created"
	TopicUserTwoFactorEnrolled  = "pushgate.user.2fa_enrolled"
	TopicUserLoggedOut          = "pushgate.user.logged_out"
	TopicNotificationDispatched = "pushgate.notification.dispatched"
)

const (
	AggregateTypeUser = "user"
	SourcePushgate    = "pushgate"
)

// UserData is the payload of user lifecycle events.
type UserData struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// NotificationDispatchedData is the payload of notification.dispatched.
type NotificationDispatchedData struct {
	UserID     int64 `json:"user_id"`
	Recipients int   `json:"recipients"`
	Delivered  int   `json:"delivered"`
	Failed     int   `json:"failed"`
	Pruned     int   `json:"pruned"`
	Delayed    bool  `json:"delayed"`
}

// Producer publishes pushgate events to Kafka. A Producer without a Kafka
// producer drops events, which is how publishing is disabled.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer. kafka may be nil.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishUserCreated publishes user.created.
func (p *Producer) PublishUserCreated(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserCreated, u.ID, UserData{ID: u.ID, Username: u.Username})
}

// PublishTwoFactorEnrolled publishes user.2fa_enrolled.
func (p *Producer) PublishTwoFactorEnrolled(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserTwoFactorEnrolled, u.ID, UserData{ID: u.ID, Username: u.Username})
}

// PublishUserLoggedOut publishes user.logged_out.
func (p *Producer) PublishUserLoggedOut(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserLoggedOut, u.ID, UserData{ID: u.ID, Username: u.Username})
}

// PublishNotificationDispatched publishes notification.dispatched.
func (p *Producer) PublishNotificationDispatched(ctx context.Context, userID int64, res domain.DispatchResult, delayed bool) error {
	return p.publish(ctx, TopicNotificationDispatched, userID, NotificationDispatchedData{
		UserID:     userID,
		Recipients: res.Recipients,
		Delivered:  res.Delivered,
		Failed:     res.Failed,
		Pruned:     res.Pruned,
		Delayed:    delayed,
	})
}

func (p *Producer) publish(ctx context.Context, topic string, userID int64, data any) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	evt, err := pkgkafka.NewEvent(topic, strconv.FormatInt(userID, 10), AggregateTypeUser, SourcePushgate, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
