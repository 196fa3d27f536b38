package service

import (
	"context"
	"fmt"
	"time"

	"console/internal/model"
	"console/internal/repository"
	"console/pkg/pagination"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is the lifetime of an access token.
const TokenTTL = 24 * time.Hour

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	RoleID      string    `json:"role_id,omitempty"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

// CodeSource returns the effective permission codes of a role.
type CodeSource interface {
	Codes(ctx context.Context, roleID string) ([]string, error)
}

// UserService defines the interface for business logic related to User
type UserService interface {
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	Me(ctx context.Context, userID string) (*UserResponse, error)
	ListUsers(ctx context.Context, params pagination.Params) ([]UserResponse, int64, error)
}

type userService struct {
	repo   repository.UserRepository
	codes  CodeSource
	secret []byte
	now    func() time.Time
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, codes CodeSource, secret []byte) UserService {
	return &userService{repo: repo, codes: codes, secret: secret, now: time.Now}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) UserResponse {
	res := UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.RoleName(),
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if user.RoleID != nil {
		res.RoleID = user.RoleID.String()
	}
	return res
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.RoleName(),
		"exp":  s.now().Add(TokenTTL).Unix(),
	}
	if user.RoleID != nil {
		claims["role_id"] = user.RoleID.String()
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &TokenResponse{Token: tokenString}, nil
}

// Me returns the user with the effective permission codes of its role.
func (s *userService) Me(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, mapRepoErr(err))
	}

	res := mapToResponse(user)
	res.Permissions = []string{}
	if user.RoleID != nil && s.codes != nil {
		codes, err := s.codes.Codes(ctx, user.RoleID.String())
		if err != nil {
			return nil, fmt.Errorf("failed to load permissions: %w", err)
		}
		res.Permissions = codes
	}
	return &res, nil
}

func (s *userService) ListUsers(ctx context.Context, params pagination.Params) ([]UserResponse, int64, error) {
	users, total, err := s.repo.List(ctx, params.Offset, params.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, mapToResponse(&users[i]))
	}
	return responses, total, nil
}
