package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"treasury/internal/core"
	"treasury/internal/ledger"
	"treasury/internal/log"
	"treasury/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	// Step and Written describe a write that stopped half way.
	Step    string   `json:"step,omitempty"`
	Written []string `json:"written,omitempty"`
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var pw *core.PartialWriteError
	switch {
	case errors.As(err, &pw):
		return http.StatusInternalServerError
	case core.IsValidation(err), errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrRentTargetReached), errors.Is(err, ledger.ErrNoGeneralBalance):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err and attaches it to the context so the request log
// carries it.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var ve *core.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}

	var pw *core.PartialWriteError
	if errors.As(err, &pw) {
		resp.Step = pw.Step
		for _, e := range pw.Written {
			resp.Written = append(resp.Written, e.ID)
		}
	}

	if status == http.StatusInternalServerError && pw == nil {
		ctx := c.Request.Context()
		log.FromContext(ctx).ErrorContext(ctx, "Request failed", log.NewFields().
			WithError(err).WithErrorType(log.ErrorTypeInternal).ToSlice()...)
		resp.Error = "internal error"
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
}
