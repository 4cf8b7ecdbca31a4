package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/frontdesk/internal/apperr"
)

// statusFor maps a failure kind to an HTTP status. Errors outside the
// taxonomy are caller mistakes such as a missing field.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidWindow:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidTransition:
		return http.StatusConflict
	case apperr.KindBusy:
		return http.StatusServiceUnavailable
	case apperr.KindStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

type errorBody struct {
	Error  string      `json:"error"`
	Kind   apperr.Kind `json:"kind"`
	JobIDs []string    `json:"job_ids,omitempty"`
}

// abortWithError writes err as JSON with its mapped status.
func abortWithError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindUnknown {
		kind = ""
	}
	c.Error(err)
	c.AbortWithStatusJSON(statusFor(apperr.KindOf(err)), errorBody{
		Error:  err.Error(),
		Kind:   kind,
		JobIDs: apperr.ConflictJobIDs(err),
	})
}

func badRequest(c *gin.Context, err error) {
	c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: err.Error()})
}
