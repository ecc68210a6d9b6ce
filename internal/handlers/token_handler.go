package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

// TokenHandler serves the platform connection endpoints.
type TokenHandler struct {
	tokens   interfaces.TokenService
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewTokenHandler creates the connection endpoint handler.
func NewTokenHandler(tokens interfaces.TokenService, logger arbor.ILogger) *TokenHandler {
	return &TokenHandler{
		tokens:   tokens,
		validate: validator.New(),
		logger:   logger,
	}
}

// connectRequest is the POST /api/connections body, carrying the
// outcome of an externally performed OAuth handshake.
type connectRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	Platform     string `json:"platform" validate:"required"`
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// ConnectHandler stores a new platform connection.
func (h *TokenHandler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	token := &models.TokenResponse{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	}
	if req.ExpiresIn > 0 {
		expiry := time.Now().UTC().Add(time.Duration(req.ExpiresIn) * time.Second)
		token.ExpiresAt = &expiry
	}

	if err := h.tokens.Connect(r.Context(), req.UserID, platform, token); err != nil {
		h.logger.Error().Err(err).Str("platform", req.Platform).Msg("Failed to store connection")
		WriteError(w, http.StatusInternalServerError, "failed to store connection")
		return
	}

	WriteSuccess(w, "platform connected")
}

// ConnectionsStatusHandler serves GET /api/connections/{userId}.
func (h *TokenHandler) ConnectionsStatusHandler(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	statuses, err := h.tokens.GetConnectionsStatus(r.Context(), userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to read connections")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":     userID,
		"connections": statuses,
	})
}

// DisconnectHandler serves DELETE /api/connections/{userId}/{platform}.
func (h *TokenHandler) DisconnectHandler(w http.ResponseWriter, r *http.Request, userID, platformName string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	platform, err := models.ParsePlatform(platformName)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.tokens.DisconnectPlatform(r.Context(), userID, platform); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to disconnect platform")
		return
	}

	WriteSuccess(w, "platform disconnected")
}

// CleanupHandler serves POST /api/tokens/cleanup, triggering the stale
// credential sweep on demand.
func (h *TokenHandler) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	result, err := h.tokens.CleanupExpiredTokens(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "token cleanup failed")
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
