// Package credential registers users, verifies passwords and issues signed
// session tokens.
package credential

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"consultancy_auth/internal/domain"
	"consultancy_auth/internal/events"
	"consultancy_auth/internal/utils"

	"github.com/sirupsen/logrus"
)

var (
	// ErrUserExists is returned when the email is already registered
	ErrUserExists = errors.New("User already exists")
	// ErrInvalidCredentials covers both unknown email and wrong password
	ErrInvalidCredentials = errors.New("Invalid credentials")
)

// RegisterInput is the validated registration payload
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Phone    string
}

// AuthResult is what register and login hand back to the caller
type AuthResult struct {
	Token string            `json:"token"`
	User  domain.PublicUser `json:"user"`
}

// Service implements registration and login
type Service struct {
	repo      Repository
	signer    utils.Signer
	publisher events.Publisher
}

// NewService builds a Service. A nil publisher disables events.
func NewService(repo Repository, signer utils.Signer, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{repo: repo, signer: signer, publisher: publisher}
}

// Register creates a user and issues a token for it
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := domain.NormalizeEmail(in.Email)
	_, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrUserExists
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	role := in.Role
	if role == "" {
		role = domain.RoleStudent
	}
	user := &domain.User{
		Name:     in.Name,
		Email:    email,
		Password: in.Password, // Hashed by the pre-save hook
		Role:     role,
		Phone:    in.Phone,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.UserRegistered, user)
	return res, nil
}

// Login verifies the password and issues a token
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repo.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.UserLoggedIn, user)
	return res, nil
}

// Profile loads the public projection of a user
func (s *Service) Profile(ctx context.Context, id string) (domain.PublicUser, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.PublicUser{}, err
	}
	return user.Public(), nil
}

// UserPage is one page of the admin user listing
type UserPage struct {
	Users      []domain.PublicUser `json:"users"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	Total      int64               `json:"total"`
	TotalPages int                 `json:"total_pages"`
}

// ListUsers returns a page of users. Pages start at 1; a page whose offset
// does not fit in an int fails with ErrPageOutOfRange.
func (s *Service) ListUsers(ctx context.Context, page, pageSize int) (*UserPage, error) {
	if page < 1 || pageSize < 1 || page-1 > math.MaxInt/pageSize {
		return nil, ErrPageOutOfRange
	}
	users, total, err := s.repo.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PublicUser, len(users))
	for i := range users {
		out[i] = users[i].Public()
	}
	return &UserPage{
		Users:      out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (int(total) + pageSize - 1) / pageSize,
	}, nil
}

// HasRole reports whether the stored user currently holds role
func (s *Service) HasRole(ctx context.Context, id, role string) (bool, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user.Role == role, nil
}

func (s *Service) issue(user *domain.User) (*AuthResult, error) {
	token, err := s.signer.Sign(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResult{Token: token, User: user.Public()}, nil
}

func (s *Service) emit(ctx context.Context, kind string, user *domain.User) {
	ev := events.AuthEvent{
		Type:       kind,
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logrus.WithFields(logrus.Fields{
			"event":   kind,
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("Failed to publish auth event")
	}
}
