package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ngalkin/session_auth/internal/events"
	"github.com/ngalkin/session_auth/internal/models"
	"github.com/ngalkin/session_auth/internal/repo"
	pkg_hash "github.com/ngalkin/session_auth/pkg/hash"
	"github.com/ngalkin/session_auth/pkg/logging"
	"github.com/ngalkin/session_auth/pkg/tokens"
)

// AuthService sequences the session lifecycle over the codec, the refresh
// manager and the credential store. The HTTP layer above it is a thin
// adapter mapping results to status codes.
type AuthService struct {
	Repo    *repo.GormRepo
	Access  *tokens.Codec
	Refresh *RefreshManager
	Events  *events.Publisher
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	RefreshExp   time.Time
	User         *models.User
}

func (s *AuthService) Register(ctx context.Context, username, password, name, role string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", username)

	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if role == "" {
		role = tokens.RoleUser
	}
	if !tokens.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	existing, err := s.Repo.FindUserByUsername(ctx, username)
	if err != nil {
		l.Error("register_failed", "reason", "store_error", "error", err)
		return nil, fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		l.Warn("register_rejected", "reason", "username_taken")
		return nil, ErrUsernameTaken
	}

	pwHash, err := pkg_hash.HashPassword(password)
	if err != nil {
		l.Error("register_failed", "reason", "hash_error", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		PasswordHash: pwHash,
		Name:         name,
		Role:         role,
	}
	if err := s.Repo.CreateUser(ctx, &user); err != nil {
		l.Error("register_failed", "reason", "store_error", "error", err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.Events.Publish(ctx, events.TypeUserRegistered, user.ID, user.Username, "")
	l.Info("register_ok", "user_id", user.ID)
	return &user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	user, err := s.Repo.FindUserByUsername(ctx, username)
	if err != nil {
		l.Error("login_failed", "reason", "store_error", "error", err)
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !pkg_hash.CheckPassword(user.PasswordHash, password) {
		s.Events.Publish(ctx, events.TypeLoginRejected, 0, username, "invalid credentials")
		l.Warn("login_rejected", "reason", "invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	accessToken, _, err := s.Access.Issue(strconv.FormatUint(uint64(user.ID), 10), user.Role)
	if err != nil {
		l.Error("login_failed", "reason", "access_issue_error", "error", err)
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, refreshExp, err := s.Refresh.Create(ctx, user)
	if err != nil {
		l.Error("login_failed", "reason", "refresh_create_error", "error", err)
		return nil, err
	}

	s.Events.Publish(ctx, events.TypeLoginSucceeded, user.ID, user.Username, "")
	l.Info("login_ok", "user_id", user.ID)
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		RefreshExp:   refreshExp,
		User:         user,
	}, nil
}

// RefreshAccess mints a new access token for the session the refresh
// token proves. The refresh token itself is left untouched: it stays
// valid until its own expiry or an explicit logout.
func (s *AuthService) RefreshAccess(ctx context.Context, refreshToken string) (string, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if refreshToken == "" {
		return "", ErrMissingToken
	}

	claims, err := s.Refresh.Validate(ctx, refreshToken)
	if err != nil {
		s.Events.Publish(ctx, events.TypeRefreshRejected, 0, "", err.Error())
		l.Warn("refresh_rejected", "reason", err.Error())
		return "", err
	}

	accessToken, _, err := s.Access.Issue(claims.Subject, claims.Role)
	if err != nil {
		l.Error("refresh_failed", "reason", "access_issue_error", "error", err)
		return "", fmt.Errorf("issue access token: %w", err)
	}

	l.Info("refresh_ok", "user_id", claims.Subject)
	return accessToken, nil
}

// Logout revokes the presented refresh token. It is idempotent and never
// fails over a missing or unknown token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if refreshToken == "" {
		return nil
	}
	if err := s.Refresh.Revoke(ctx, refreshToken); err != nil {
		l.Error("logout_failed", "reason", "store_error", "error", err)
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	s.Events.Publish(ctx, events.TypeTokenRevoked, 0, "", "")
	l.Info("logout_ok")
	return nil
}

// CurrentUser resolves the session's user record from the refresh token.
func (s *AuthService) CurrentUser(ctx context.Context, refreshToken string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.current_user")

	if refreshToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := s.Refresh.Validate(ctx, refreshToken)
	if err != nil {
		l.Warn("lookup_rejected", "reason", err.Error())
		return nil, err
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject %q", tokens.ErrInvalidToken, claims.Subject)
	}

	user, err := s.Repo.FindUserByID(ctx, uint(id))
	if err != nil {
		l.Error("lookup_failed", "reason", "store_error", "error", err)
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		l.Warn("lookup_rejected", "reason", "user_gone", "user_id", id)
		return nil, ErrUserNotFound
	}
	return user, nil
}
