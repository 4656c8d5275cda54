package handler

import (
	"net/http"
	"strconv"

	"github.com/bitlabs/talentstream-proctor/internal/middleware"
	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/bitlabs/talentstream-proctor/internal/response"
	"github.com/bitlabs/talentstream-proctor/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HistoryHandler lists persisted outcomes of the calling applicant.
type HistoryHandler struct {
	historyService *service.HistoryService
	log            zerolog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(historyService *service.HistoryService, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
		log:            log.With().Str("component", "history_handler").Logger(),
	}
}

// ListHistory godoc
// GET /api/v1/attempts/history?page=1&per_page=20
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	result, err := h.historyService.List(c.Request.Context(), claims.ApplicantID, page, perPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	outcomes := result.Outcomes
	if outcomes == nil {
		outcomes = []model.Outcome{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"outcomes": outcomes},
		response.NewPagination(result.Page, result.PerPage, result.Total))
}

// GetHistoryDetail godoc
// GET /api/v1/attempts/history/:attempt_id
func (h *HistoryHandler) GetHistoryDetail(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	detail, err := h.historyService.Detail(c.Request.Context(), claims.ApplicantID, id)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, detail)
}
