package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/api/auth"
	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/store"
)

// AuthHandler serves the account endpoints: registration, login, token
// refresh and the identity probe.
type AuthHandler struct {
	store    *store.GORMStore
	tokens   *auth.Service
	validate *validator.Validate
}

// NewAuthHandler builds the handler with its own request validator.
func NewAuthHandler(s *store.GORMStore, tokens *auth.Service) *AuthHandler {
	return &AuthHandler{
		store:    s,
		tokens:   tokens,
		validate: validator.New(),
	}
}

// RegisterRequest is the request body for POST /api/v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the request body for POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse is the public shape of an account. The password hash never
// leaves the store layer.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userToResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

// Register handles POST /api/v1/auth/register.
// Anyone may open an account; everyone starts with the user role, and
// operator accounts come from the user CLI instead.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if err := h.validate.Struct(&req); err != nil {
		UnprocessableEntity(w, "Email must be valid and password at least 8 characters")
		return
	}

	hash, err := store.HashPassword(req.Password)
	if err != nil {
		logger.ErrorCtx(r.Context(), "password hashing failed", logger.Err(err))
		InternalServerError(w, "Failed to create user")
		return
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         string(models.RoleUser),
	}

	if _, err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			Conflict(w, "Email already registered")
			return
		}
		logger.ErrorCtx(r.Context(), "user registration failed", logger.Email(req.Email), logger.Err(err))
		InternalServerError(w, "Failed to create user")
		return
	}

	WriteJSONCreated(w, userToResponse(user))
}

// Login handles POST /api/v1/auth/login.
// Trades credentials for a token pair. An unknown email and a wrong
// password answer with the same 401.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Email == "" || req.Password == "" {
		BadRequest(w, "Email and password are required")
		return
	}

	user, err := h.store.ValidateCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) || errors.Is(err, models.ErrUserNotFound) {
			Unauthorized(w, "Invalid email or password")
			return
		}
		logger.ErrorCtx(r.Context(), "credential check failed", logger.Err(err))
		InternalServerError(w, "Authentication failed")
		return
	}

	tokenPair, err := h.tokens.GenerateTokenPair(user)
	if err != nil {
		logger.ErrorCtx(r.Context(), "token mint failed", logger.UserID(user.ID), logger.Err(err))
		InternalServerError(w, "Failed to generate token")
		return
	}

	// Best effort; a failed stamp must not block the login.
	if err := h.store.UpdateLastLogin(r.Context(), user.ID, time.Now()); err != nil {
		logger.WarnCtx(r.Context(), "failed to update last login time", logger.UserID(user.ID), logger.Err(err))
	}

	WriteJSONOK(w, tokenPair)
}

// Refresh handles POST /api/v1/auth/refresh.
// Mints a new pair from a refresh token. The account is re-read first so a
// deleted user cannot keep refreshing forever.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		BadRequest(w, "Refresh token is required")
		return
	}

	claims, err := h.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			Unauthorized(w, "Refresh token has expired")
			return
		}
		Unauthorized(w, "Invalid refresh token")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			Unauthorized(w, "User not found")
			return
		}
		logger.ErrorCtx(r.Context(), "user lookup failed", logger.UserID(claims.UserID), logger.Err(err))
		InternalServerError(w, "Failed to fetch user")
		return
	}

	tokenPair, err := h.tokens.GenerateTokenPair(user)
	if err != nil {
		logger.ErrorCtx(r.Context(), "token mint failed", logger.UserID(user.ID), logger.Err(err))
		InternalServerError(w, "Failed to generate token")
		return
	}

	WriteJSONOK(w, tokenPair)
}

// Me handles GET /api/v1/auth/me.
// Echoes the account behind the presented access token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(w, r)
	if claims == nil {
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			Unauthorized(w, "User not found")
			return
		}
		logger.ErrorCtx(r.Context(), "user lookup failed", logger.UserID(claims.UserID), logger.Err(err))
		InternalServerError(w, "Failed to fetch user")
		return
	}

	WriteJSONOK(w, userToResponse(user))
}
