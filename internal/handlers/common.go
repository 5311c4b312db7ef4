package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"venue_ops_backend/internal/middleware"
	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/services"
	"venue_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error onto the standard error envelope.
// Unexpected errors are logged and reported as a generic 500 with fallback as the message.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, err.Error(), ""))
	case errors.Is(err, services.ErrConflict):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, err.Error(), ""))
	case errors.Is(err, services.ErrForbidden):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, err.Error(), ""))
	case errors.Is(err, services.ErrUnauthorized):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, err.Error(), ""))
	default:
		utils.LoggerFromContext(c.Request.Context()).Error().Err(err).
			Str("path", c.FullPath()).Msg(fallback)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, fallback, "Internal error"))
	}
}

// bindJSON decodes the body into req, answering 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload", err.Error()))
		return false
	}
	return true
}

// principal returns the authenticated caller, answering 401 when absent.
func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "User not authenticated", "Missing user ID in context"))
	}
	return p, ok
}

// idParam parses a positive int64 path parameter.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := utils.StrToInt64(c.Param(name))
	if err != nil || id <= 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid "+name, c.Param(name)))
		return 0, false
	}
	return id, true
}

// queryBool parses an optional boolean query parameter.
func queryBool(c *gin.Context, name string) (*bool, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		utils.RespondValidationFailed(c, name+" must be true or false")
		return nil, false
	}
	return &v, true
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string) (*int, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		utils.RespondValidationFailed(c, name+" must be an integer")
		return nil, false
	}
	return &v, true
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		utils.RespondValidationFailed(c, name+" must be YYYY-MM-DD")
		return nil, false
	}
	return &t, true
}
