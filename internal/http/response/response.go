package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	etlerr "github.com/yungbote/nutrition-etl/internal/pkg/errors"
)

const (
	CodeNotFound        = "not_found"
	CodeInvalidArgument = "invalid_argument"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr picks the status from the error kind.
func RespondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, etlerr.ErrNotFound):
		RespondError(c, http.StatusNotFound, CodeNotFound, err)
	case errors.Is(err, etlerr.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, CodeInvalidArgument, err)
	case errors.Is(err, etlerr.ErrSchema), errors.Is(err, etlerr.ErrStore):
		RespondError(c, http.StatusServiceUnavailable, CodeUnavailable, err)
	default:
		RespondError(c, http.StatusInternalServerError, CodeInternal, err)
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
