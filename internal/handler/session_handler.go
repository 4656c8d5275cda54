package handler

import (
	"net/http"

	"github.com/bitlabs/talentstream-proctor/internal/middleware"
	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/bitlabs/talentstream-proctor/internal/response"
	"github.com/bitlabs/talentstream-proctor/internal/service"
	"github.com/bitlabs/talentstream-proctor/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SessionHandler serves the per-applicant client flags (zohoUserId, tour
// progress) that the SPA used to keep in sessionStorage.
type SessionHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// ListValues godoc
// GET /api/v1/session
func (h *SessionHandler) ListValues(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	values, err := h.sessionService.All(c.Request.Context(), claims.ApplicantID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if values == nil {
		values = map[string]string{}
	}

	response.Success(c, http.StatusOK, gin.H{"values": values})
}

// GetValue godoc
// GET /api/v1/session/:key
func (h *SessionHandler) GetValue(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	key := c.Param("key")
	value, err := h.sessionService.Get(c.Request.Context(), claims.ApplicantID, key)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"key": key, "value": value})
}

// PutValue godoc
// PUT /api/v1/session/:key
func (h *SessionHandler) PutValue(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SessionValueRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	key := c.Param("key")
	if err := h.sessionService.Put(c.Request.Context(), claims.ApplicantID, key, req.Value); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"key": key, "value": req.Value})
}

// DeleteValue godoc
// DELETE /api/v1/session/:key
func (h *SessionHandler) DeleteValue(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.sessionService.Delete(c.Request.Context(), claims.ApplicantID, c.Param("key")); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
