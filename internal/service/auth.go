package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/pushgate/internal/auth"
	"github.com/utafrali/pushgate/internal/domain"
	"github.com/utafrali/pushgate/internal/event"
	"github.com/utafrali/pushgate/internal/repository"
	"github.com/utafrali/pushgate/internal/totp"
	apperrors "github.com/utafrali/pushgate/pkg/errors"
)

// AuthService implements the username + TOTP login flow and the refresh
// token session that follows it.
type AuthService struct {
	users    repository.UserRepository
	tokens   *auth.JWTManager
	otp      *totp.Authenticator
	producer *event.Producer
	logger   *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.JWTManager,
	otp *totp.Authenticator,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		otp:      otp,
		producer: producer,
		logger:   logger,
	}
}

// VerifyInput holds the parameters of the second login step.
type VerifyInput struct {
	Username   string
	Token      string
	TempSecret string
}

// Login finds or creates the user and tells the caller which second step
// follows. Users without a secret get fresh enrollment material on every
// call; it is never stored.
func (s *AuthService) Login(ctx context.Context, username string) (*domain.LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.InvalidInput("Username is required")
	}

	user, created, err := s.users.FindOrCreate(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find or create user: %w", err)
	}
	if created {
		s.logger.InfoContext(ctx, "user created", slog.Int64("user_id", user.ID))
		if err := s.producer.PublishUserCreated(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.created event",
				slog.Int64("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if user.HasSecret() {
		return &domain.LoginResult{Status: domain.LoginVerifyNeeded, Created: created}, nil
	}

	enrollment, err := s.otp.Generate(user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate enrollment: %w", err)
	}
	return &domain.LoginResult{Status: domain.LoginSetupNeeded, Enrollment: enrollment, Created: created}, nil
}

// Verify2FA checks the TOTP code against the stored secret, or against the
// caller's temporary secret for a user still enrolling. On success the
// secret is committed (first time only) and a new token pair is issued; the
// refresh token replaces whatever the user held before.
func (s *AuthService) Verify2FA(ctx context.Context, in VerifyInput) (domain.TokenPair, error) {
	username := strings.TrimSpace(in.Username)
	code := strings.TrimSpace(in.Token)
	if username == "" || code == "" {
		return domain.TokenPair{}, apperrors.InvalidInput("Username and token are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.TokenPair{}, apperrors.NotFound("User not found")
		}
		return domain.TokenPair{}, fmt.Errorf("get user: %w", err)
	}

	enrolling := !user.HasSecret()
	var secret string
	switch {
	case !enrolling:
		secret = *user.TwoFactorSecret
	case in.TempSecret != "":
		secret = in.TempSecret
	default:
		return domain.TokenPair{}, apperrors.InvalidInput("Invalid auth logic")
	}

	if !s.otp.Validate(code, secret) {
		s.logger.InfoContext(ctx, "invalid totp code", slog.Int64("user_id", user.ID), slog.Bool("enrolling", enrolling))
		return domain.TokenPair{}, apperrors.InvalidInput("Invalid code")
	}

	if enrolling {
		committed, err := s.users.CommitSecret(ctx, user.ID, secret)
		if err != nil {
			return domain.TokenPair{}, fmt.Errorf("commit secret: %w", err)
		}
		if !committed {
			return domain.TokenPair{}, apperrors.Conflict("Two-factor authentication is already set up")
		}
		user.TwoFactorSecret = &secret
		s.logger.InfoContext(ctx, "2fa enrolled", slog.Int64("user_id", user.ID))
		if err := s.producer.PublishTwoFactorEnrolled(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.2fa_enrolled event",
				slog.Int64("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, auth.HashToken(pair.RefreshToken)); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.Int64("user_id", user.ID))
	return pair, nil
}

// Refresh exchanges a stored, valid refresh token for a new access token.
// The refresh token itself is left in place.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", apperrors.Unauthorized("Refresh token missing")
	}

	user, err := s.users.GetByRefreshToken(ctx, auth.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.Forbidden("Invalid refresh token")
		}
		return "", fmt.Errorf("get user by refresh token: %w", err)
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil || claims.UserID != user.ID {
		return "", apperrors.Forbidden("Invalid refresh token")
	}

	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}

	s.logger.DebugContext(ctx, "access token refreshed", slog.Int64("user_id", user.ID))
	return access, nil
}

// Logout forgets refreshToken. Unknown or empty tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	hash := auth.HashToken(refreshToken)

	user, err := s.users.GetByRefreshToken(ctx, hash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get user by refresh token: %w", err)
	}

	if _, err := s.users.ClearRefreshToken(ctx, hash); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged out", slog.Int64("user_id", user.ID))
	if err := s.producer.PublishUserLoggedOut(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.logged_out event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// RefreshTTLSeconds is the refresh cookie lifetime.
func (s *AuthService) RefreshTTLSeconds() int {
	return int(s.tokens.RefreshExpiry().Seconds())
}
