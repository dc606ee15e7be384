// Package service holds the business logic layer, sitting between the HTTP
// handlers and the repositories. Handlers parse requests and write responses;
// services enforce the rules.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/subdivision/pot-server/internal/apperror"
	"github.com/subdivision/pot-server/internal/auth"
	"github.com/subdivision/pot-server/internal/model"
	"github.com/subdivision/pot-server/internal/repository"
)

const minPasswordLength = 8

// AuthService handles signup, login, and the GitHub OAuth callback. Both
// identity paths (email/password and GitHub) end the same way: a user row
// and a signed JWT the handler turns into an HttpOnly cookie.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Signup registers a new email/password account. Email and nickname must be
// unused; the password is bcrypt-hashed before it ever reaches the store.
func (s *AuthService) Signup(ctx context.Context, email, nickname, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	nickname = strings.TrimSpace(nickname)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "must be a valid email address")
	}
	if nickname == "" {
		return nil, apperror.ValidationFailed("nickname", "must not be blank")
	}
	if len(password) < minPasswordLength {
		return nil, apperror.ValidationFailed("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "could not be hashed")
	}

	user := &model.User{
		Email:        email,
		Nickname:     nickname,
		PasswordHash: hash,
	}
	// The store's unique indexes are the source of truth for duplicates; a
	// pre-check here would still race.
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("nickname", user.Nickname),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Login authenticates an email/password account. Lookup failures and wrong
// passwords both come back as the same Unauthorized error so a caller can't
// probe which emails exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: fetching user by email: %w", err)
	}
	if user.PasswordHash == "" {
		// GitHub-only account — no password to check.
		return nil, apperror.Unauthorized("invalid email or password")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// NicknameAvailable reports whether no account currently uses the nickname.
func (s *AuthService) NicknameAvailable(ctx context.Context, nickname string) (bool, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return false, apperror.ValidationFailed("nickname", "must not be blank")
	}

	_, err := s.users.GetUserByNickname(ctx, nickname)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return true, nil
	}
	return false, fmt.Errorf("service/auth: checking nickname: %w", err)
}

// EmailAvailable reports whether no account currently uses the email.
func (s *AuthService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return false, apperror.ValidationFailed("email", "must be a valid email address")
	}

	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return true, nil
	}
	return false, fmt.Errorf("service/auth: checking email: %w", err)
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback. After the handler
// exchanges the code for a GitHubUser profile, this upserts the user (GitHub
// IDs are stable, so first login inserts and later logins refresh email and
// avatar) and issues the JWT. Cookies stay the handler's job.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Nickname:  ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}
	if err := s.users.UpsertGitHub(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("nickname", user.Nickname),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID. The /api/me
// handler calls this after the middleware validates the JWT.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// ValidateToken validates a JWT string and returns the userID it encodes.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}
