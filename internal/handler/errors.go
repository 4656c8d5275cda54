package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/bitlabs/talentstream-proctor/internal/attempt"
	"github.com/bitlabs/talentstream-proctor/internal/response"
	"github.com/bitlabs/talentstream-proctor/internal/service"
	"github.com/bitlabs/talentstream-proctor/internal/upstream"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// classify maps a domain error onto an HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound):
		return http.StatusNotFound, response.ErrAttemptNotFound
	case errors.Is(err, service.ErrAttemptForbidden):
		return http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, service.ErrTestNotFound):
		return http.StatusNotFound, response.ErrTestNotFound
	case errors.Is(err, service.ErrTestEmpty), errors.Is(err, attempt.ErrNoQuestions):
		return http.StatusUnprocessableEntity, response.ErrNoQuestions
	case errors.Is(err, service.ErrSessionKeyMissing):
		return http.StatusNotFound, response.ErrSessionKeyMissing
	case errors.Is(err, service.ErrInvalidSessionKey):
		return http.StatusBadRequest, response.ErrValidation

	case errors.Is(err, attempt.ErrNotActive):
		return http.StatusConflict, response.ErrAttemptNotActive
	case errors.Is(err, attempt.ErrIllegalTransition):
		return http.StatusConflict, response.ErrAttemptFinished
	case errors.Is(err, attempt.ErrViolationPending), errors.Is(err, attempt.ErrNoViolation):
		return http.StatusConflict, response.ErrViolationPending
	case errors.Is(err, attempt.ErrAutoSubmitting):
		return http.StatusConflict, response.ErrAutoSubmitting
	case errors.Is(err, attempt.ErrNotLastQuestion):
		return http.StatusConflict, response.ErrNotLastQuestion
	case errors.Is(err, attempt.ErrInvalidOption):
		return http.StatusUnprocessableEntity, response.ErrInvalidOption
	case errors.Is(err, attempt.ErrIndexOutOfRange):
		return http.StatusUnprocessableEntity, response.ErrQuestionRange
	case errors.Is(err, attempt.ErrUnknownAction):
		return http.StatusBadRequest, response.ErrIllegalAction
	case errors.Is(err, attempt.ErrClosed):
		return http.StatusNotFound, response.ErrAttemptNotFound
	}

	var urlErr *url.Error
	if _, ok := upstream.StatusCode(err); ok || errors.As(err, &urlErr) {
		return http.StatusBadGateway, response.ErrBackendUnavailable
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// fail writes the envelope for err. Server-side failures are logged.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("route", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
