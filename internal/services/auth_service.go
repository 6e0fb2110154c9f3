package services

import (
	"context"
	"errors"
	"strings"

	"github.com/joshua-takyi/eventbook/internal/helpers"
	"github.com/joshua-takyi/eventbook/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required" validate:"required,min=3,max=32"`
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthService struct {
	userRepo    models.UserRepo
	tokens      *helpers.TokenManager
	adminEmails map[string]struct{}
}

func NewAuthService(userRepo models.UserRepo, tokens *helpers.TokenManager, adminEmails []string) *AuthService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		if email = normalizeEmail(email); email != "" {
			admins[email] = struct{}{}
		}
	}
	return &AuthService{
		userRepo:    userRepo,
		tokens:      tokens,
		adminEmails: admins,
	}
}

func (as *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)
	if err := models.Validate.Struct(req); err != nil {
		return nil, helpers.Validation("invalid registration data", err)
	}

	hash, err := helpers.HashPassword(req.Password)
	if err != nil {
		return nil, helpers.Internal("failed to register user", err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if _, ok := as.adminEmails[req.Email]; ok {
		user.Role = models.RoleAdmin
	}

	if err := as.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicateUser) {
			return nil, helpers.Conflict("user already exists")
		}
		return nil, helpers.Internal("failed to register user", err)
	}

	return as.issue(user)
}

func (as *AuthService) Login(ctx context.Context, req LoginRequest) (*models.AuthResponse, error) {
	user, err := as.userRepo.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, helpers.Unauthenticated("Invalid credentials", "invalid_credentials")
		}
		return nil, helpers.Internal("failed to log in", err)
	}

	if err := helpers.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, helpers.ErrPasswordMismatch) {
			return nil, helpers.Unauthenticated("Invalid credentials", "invalid_credentials")
		}
		return nil, helpers.Internal("failed to log in", err)
	}

	return as.issue(user)
}

func (as *AuthService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := as.userRepo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, helpers.NotFound("user not found")
		}
		return nil, helpers.Internal("failed to get user", err)
	}
	return user, nil
}

func (as *AuthService) issue(user *models.User) (*models.AuthResponse, error) {
	token, err := as.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, helpers.Internal("failed to issue token", err)
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
