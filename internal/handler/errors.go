package handler

import (
	"errors"
	"net/http"

	"fatoora/internal/engine"
	"fatoora/internal/export"
	"fatoora/internal/service"
	"fatoora/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError maps engine, export and service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var validation *engine.ValidationError
	var exportErr *export.ExportError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, response.ErrorWithCode(http.StatusUnprocessableEntity, string(validation.Kind), err.Error()))
	case errors.As(err, &exportErr):
		status := http.StatusInternalServerError
		switch exportErr.Reason {
		case export.IncompleteInvoice:
			status = http.StatusUnprocessableEntity
		case export.UnsupportedKind:
			status = http.StatusBadRequest
		case export.Canceled:
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, response.ErrorWithCode(status, string(exportErr.Reason), err.Error()))
	case errors.Is(err, service.ErrInvalidPhone):
		c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, "InvalidPhone", "Please enter a valid phone number"))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
	}
}

func badPayload(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, "MalformedRequest", "Invalid request payload: "+err.Error()))
}
