package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agentops/internal/api/dto"
	"github.com/spec-kit/agentops/internal/auth"
	"github.com/spec-kit/agentops/internal/config"
	apperrors "github.com/spec-kit/agentops/pkg/util"
)

// AuthHandler issues operator access tokens.
type AuthHandler struct {
	cfg    config.AuthConfig
	tokens *auth.TokenManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(cfg config.AuthConfig, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{cfg: cfg, tokens: tokens}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.OperatorID == "" || req.Password == "" {
		return apperrors.NewValidationError("operator_id and password required", nil)
	}
	if h.cfg.OperatorPasswordHash == "" {
		return apperrors.NewUnauthorized("operator credentials not configured")
	}
	if req.OperatorID != h.cfg.OperatorID {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(h.cfg.OperatorPasswordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(req.OperatorID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{AccessToken: token, ExpiresAt: expiresAt}})
}
