package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/referral-api/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: StatusSuccess,
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  StatusError,
		Message: message,
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, NewSuccessResponse(data))
}

// RespondWithMessage sends a success response with a message
func RespondWithMessage(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, &Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// RespondWithError sends an error response. Errors that are not AppErrors are
// logged and reported as a generic 500.
func RespondWithError(c *gin.Context, err error) {
	if appErr, ok := errors.As(err); ok && appErr.Code != errors.ErrInternal {
		c.AbortWithStatusJSON(appErr.StatusCode(), NewErrorResponse(appErr.Message))
		return
	}

	log.Error().
		Err(err).
		Str("request_id", c.GetString("request_id")).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("unhandled error")

	c.AbortWithStatusJSON(http.StatusInternalServerError, NewErrorResponse("Internal server error"))
}

// RespondWithBindError sends a 400 for a request that failed binding or validation
func RespondWithBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
}
