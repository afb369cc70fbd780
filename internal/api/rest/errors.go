package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/feral-file/batch-ledger/internal/api/errors"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
)

// respondBadRequest responds with a bad request error
func respondBadRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, apierrors.Response{Error: apierrors.NewBadRequestError(message, details...)})
}

// respondValidationError responds with a validation error
func respondValidationError(c *gin.Context, details string) {
	c.JSON(http.StatusUnprocessableEntity, apierrors.Response{Error: apierrors.NewValidationError(details)})
}

// respondLedgerError maps a client error to its HTTP status, unclassified errors are logged
func respondLedgerError(c *gin.Context, err error) {
	status, apiErr := apierrors.FromError(err)
	if status >= http.StatusInternalServerError {
		fields := []zap.Field{zap.String("path", c.Request.URL.Path), zap.String("code", string(apiErr.Code))}
		if domain.IsClassified(err) {
			logger.WarnCtx(c.Request.Context(), "Ledger request failed", append(fields, zap.Error(err))...)
		} else {
			logger.ErrorCtx(c.Request.Context(), err, fields...)
		}
	}
	c.JSON(status, apierrors.Response{Error: apiErr})
}
