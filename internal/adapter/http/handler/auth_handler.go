package handler

import (
	"mobile-money-gateway/internal/adapter/http/dto"
	"mobile-money-gateway/internal/adapter/http/middleware"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles registration, credentials and session endpoints.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	view, err := h.authSvc.Register(c.Request.Context(), ports.RegisterRequest{
		Phone:     req.Phone,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.CredentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authSvc.Login(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tokenResponse(result))
}

// VerifyCode handles POST /api/v1/auth/verify-code. The returned token only
// allows setting a custom secret code.
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req dto.CredentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authSvc.VerifyInitialCode(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tokenResponse(result))
}

// SetSecretCode handles POST /api/v1/auth/secret-code.
func (h *AuthHandler) SetSecretCode(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req dto.SetSecretCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.SetCustomSecretCode(c.Request.Context(), ports.SetSecretCodeRequest{
		AccountID:   id,
		Scope:       c.GetString(middleware.CtxScope),
		NewCode:     req.NewCode,
		ConfirmCode: req.ConfirmCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tokenResponse(result))
}

// UpdateSecretCode handles PUT /api/v1/auth/secret-code. Every session of the
// account is revoked, including the caller's.
func (h *AuthHandler) UpdateSecretCode(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req dto.UpdateSecretCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authSvc.UpdateSecretCode(c.Request.Context(), id, req.NewCode); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Secret code updated. Please log in again."})
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	if err := h.authSvc.Logout(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Logged out"})
}

// Me handles GET /api/v1/me.
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	view, err := h.authSvc.GetProfile(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

func tokenResponse(r *ports.LoginResult) dto.TokenResponse {
	return dto.TokenResponse{
		Token:     r.Token,
		Scope:     r.Scope,
		ExpiresAt: r.ExpiresAt,
		Account:   r.Account,
	}
}
