package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Errors    any    `json:"errors,omitempty"`
}

func Error(ctx *gin.Context, message string, errs any) ErrorBody {
	return ErrorBody{
		Message:   message,
		RequestID: ctx.GetString("request_id"),
		Errors:    errs,
	}
}

// Abort writes an error body and stops the handler chain.
func Abort(ctx *gin.Context, status int, message string, errs any) {
	if status == 0 {
		status = http.StatusBadRequest
	}
	ctx.AbortWithStatusJSON(status, Error(ctx, message, errs))
}
