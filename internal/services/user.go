package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/todoapi/apiserver/internal/auth"
	"github.com/todoapi/apiserver/internal/logging"
	"github.com/todoapi/apiserver/internal/store"
	"github.com/todoapi/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
	Reject(plaintext string) bool
}

type TokenIssuer interface {
	Issue(username string, userID int, role types.Role, ttl time.Duration) (string, error)
}

// RegisterInput is the account data accepted at sign-up.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,max=64"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Password  string `json:"password" validate:"required,min=6,maxbytes=72"`
	Role      string `json:"role" validate:"omitempty,oneof=user admin"`
}

type changePasswordInput struct {
	NewPassword string `json:"new_password" validate:"required,min=6,maxbytes=72"`
}

// UserService encapsulates registration, login and account use-cases.
type UserService struct {
	repo     UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	tokenTTL time.Duration
	events   EventPublisher
	log      logging.Logger
}

func NewUserService(
	repo UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	tokenTTL time.Duration,
	events EventPublisher,
	log logging.Logger,
) *UserService {
	return &UserService{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		events:   events,
		log:      log,
	}
}

// TokenTTL is the lifetime of tokens returned by Login.
func (s *UserService) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Register stores a new active user with a hashed password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if err := validateStruct(in); err != nil {
		return types.User{}, err
	}

	role, err := types.ParseRole(in.Role)
	if err != nil {
		return types.User{}, newValidationError("role", err.Error())
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		IsActive:     true,
		PasswordHash: hashed,
	})
	if err != nil {
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	s.events.Publish(ctx, newEvent(types.EventUserRegistered, user.ID, user.ID, user))
	return user, nil
}

// Login checks the credentials and issues an access token. Unknown users,
// inactive users and wrong passwords all yield auth.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", auth.ErrInvalidCredentials
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.hasher.Reject(password)
			return "", auth.ErrInvalidCredentials
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) || !user.IsActive {
		s.log.Info(ctx, "login rejected", "user_id", user.ID)
		return "", auth.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.Username, user.ID, user.Role, s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Me returns the account behind claims. A token whose user no longer exists
// is treated as unauthorized.
func (s *UserService) Me(ctx context.Context, claims auth.Claims) (types.User, error) {
	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, auth.ErrUnauthorized
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the caller's password after re-checking the
// current one.
func (s *UserService) ChangePassword(ctx context.Context, claims auth.Claims, current, next string) error {
	if err := validateStruct(changePasswordInput{NewPassword: next}); err != nil {
		return err
	}

	user, err := s.Me(ctx, claims)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return auth.ErrInvalidCredentials
	}

	hashed, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.log.Info(ctx, "password changed", "user_id", user.ID)
	s.events.Publish(ctx, newEvent(types.EventPasswordChanged, user.ID, user.ID, nil))
	return nil
}

// ListUsers returns every account. Admin only.
func (s *UserService) ListUsers(ctx context.Context, claims auth.Claims) ([]types.User, error) {
	if !claims.IsAdmin() {
		return nil, auth.ErrUnauthorized
	}
	return s.repo.List(ctx)
}
