package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/pushgate/internal/domain"
	"github.com/utafrali/pushgate/internal/event"
	"github.com/utafrali/pushgate/internal/push"
	"github.com/utafrali/pushgate/internal/repository"
	"github.com/utafrali/pushgate/internal/scheduler"
	apperrors "github.com/utafrali/pushgate/pkg/errors"
	"github.com/utafrali/pushgate/pkg/validator"
)

// JobDelayedNotification is the scheduler job kind for delayed sends.
const JobDelayedNotification = "notification.delayed"

// Scheduler defers work. Implemented by the scheduler queues.
type Scheduler interface {
	Schedule(ctx context.Context, kind string, payload any, delay time.Duration) (*scheduler.Handle, error)
}

// DelayedNotification is the payload of a delayed send job.
type DelayedNotification struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Body     string `json:"body"`
}

// NotificationService registers push subscriptions and fans notifications
// out to every device a user owns.
type NotificationService struct {
	subs      repository.SubscriptionRepository
	sender    push.Sender
	scheduler Scheduler
	producer  *event.Producer
	logger    *slog.Logger
}

// NewNotificationService creates a new notification service. The scheduler
// may be set later with UseScheduler when it needs the service as its handler.
func NewNotificationService(
	subs repository.SubscriptionRepository,
	sender push.Sender,
	sched Scheduler,
	producer *event.Producer,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		subs:      subs,
		sender:    sender,
		scheduler: sched,
		producer:  producer,
		logger:    logger,
	}
}

// UseScheduler sets the queue for delayed sends.
func (s *NotificationService) UseScheduler(sched Scheduler) {
	s.scheduler = sched
}

// Subscribe registers d for userID. An endpoint registered by another user
// changes owner.
func (s *NotificationService) Subscribe(ctx context.Context, userID int64, d domain.Descriptor) error {
	if err := validator.Validate(d); err != nil {
		return apperrors.InvalidInput("Invalid subscription: " + err.Error())
	}

	sub := &domain.Subscription{UserID: userID, Descriptor: d}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	s.logger.InfoContext(ctx, "subscription stored",
		slog.Int64("user_id", userID),
		slog.Int64("subscription_id", sub.ID),
	)
	return nil
}

// Dispatch sends the greeting notification to every device of userID and
// waits for all deliveries. Failed deliveries are logged and counted; they
// never fail the dispatch. Subscriptions the push service reports as gone
// are deleted.
func (s *NotificationService) Dispatch(ctx context.Context, userID int64, username, body string) (domain.DispatchResult, error) {
	return s.dispatch(ctx, userID, username, body, false)
}

func (s *NotificationService) dispatch(ctx context.Context, userID int64, username, body string, delayed bool) (domain.DispatchResult, error) {
	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return domain.DispatchResult{}, fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return domain.DispatchResult{}, nil
	}

	payload, err := json.Marshal(domain.NewPayload(username, body))
	if err != nil {
		return domain.DispatchResult{}, fmt.Errorf("marshal payload: %w", err)
	}

	errs := make([]error, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.sender.Send(ctx, sub.Descriptor, payload)
		}()
	}
	wg.Wait()

	res := domain.DispatchResult{Recipients: len(subs)}
	for i, err := range errs {
		if err == nil {
			res.Delivered++
			continue
		}
		res.Failed++
		s.logger.WarnContext(ctx, "push delivery failed",
			slog.Int64("user_id", userID),
			slog.Int64("subscription_id", subs[i].ID),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, apperrors.ErrGone) {
			if err := s.subs.DeleteByEndpoint(ctx, subs[i].Descriptor.Endpoint); err != nil {
				s.logger.ErrorContext(ctx, "failed to prune subscription",
					slog.Int64("subscription_id", subs[i].ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			res.Pruned++
		}
	}

	s.logger.InfoContext(ctx, "notifications dispatched",
		slog.Int64("user_id", userID),
		slog.Int("recipients", res.Recipients),
		slog.Int("delivered", res.Delivered),
		slog.Int("failed", res.Failed),
		slog.Int("pruned", res.Pruned),
		slog.Bool("delayed", delayed),
	)
	if err := s.producer.PublishNotificationDispatched(ctx, userID, res, delayed); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish notification.dispatched event",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return res, nil
}

// ScheduleDelayed queues a Dispatch to run after delayMs milliseconds and
// returns at once. A delay that is not positive or exceeds domain.MaxDelayMs
// becomes domain.DefaultDelayMs. The effective delay is returned with the job
// handle.
func (s *NotificationService) ScheduleDelayed(ctx context.Context, userID int64, username, body string, delayMs int64) (*scheduler.Handle, int64, error) {
	if delayMs <= 0 || delayMs > domain.MaxDelayMs {
		delayMs = domain.DefaultDelayMs
	}
	if s.scheduler == nil {
		return nil, 0, apperrors.Internal("delayed delivery is not configured", nil)
	}

	h, err := s.scheduler.Schedule(ctx, JobDelayedNotification, DelayedNotification{
		UserID:   userID,
		Username: username,
		Body:     body,
	}, time.Duration(delayMs)*time.Millisecond)
	if err != nil {
		return nil, 0, fmt.Errorf("schedule notification: %w", err)
	}

	s.logger.InfoContext(ctx, "notification scheduled",
		slog.Int64("user_id", userID),
		slog.String("job_id", h.ID),
		slog.Int64("delay_ms", delayMs),
	)
	return h, delayMs, nil
}

// HandleJob runs a job scheduled by ScheduleDelayed. It is the handler the
// scheduler queues are built with.
func (s *NotificationService) HandleJob(ctx context.Context, job scheduler.Job) error {
	if job.Kind != JobDelayedNotification {
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}

	var n DelayedNotification
	if err := json.Unmarshal(job.Payload, &n); err != nil {
		return fmt.Errorf("decode delayed notification: %w", err)
	}

	res, err := s.dispatch(ctx, n.UserID, n.Username, n.Body, true)
	if err != nil {
		return err
	}
	if !res.HasSubscriptions() {
		s.logger.InfoContext(ctx, "delayed notification skipped: no subscriptions",
			slog.Int64("user_id", n.UserID),
			slog.String("job_id", job.ID),
		)
	}
	return nil
}
