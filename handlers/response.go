package handlers

import (
	"errors"
	"net/http"

	"cuadrofirma-backend/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// errorStatus maps a service error to its HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, service.ErrInvalidResponsibility):
		return http.StatusBadRequest, "INVALID_RESPONSIBILITY"
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, service.ErrOrderViolation):
		return http.StatusConflict, "ORDER_VIOLATION"
	case errors.Is(err, service.ErrAlreadySigned):
		return http.StatusConflict, "ALREADY_SIGNED"
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, service.ErrDocumentInactive):
		return http.StatusLocked, "DOCUMENT_INACTIVE"
	case errors.Is(err, service.ErrSignatureRender):
		return http.StatusUnprocessableEntity, "SIGNATURE_RENDER_FAILED"
	case errors.Is(err, service.ErrTransient):
		return http.StatusServiceUnavailable, "TEMPORARILY_UNAVAILABLE"
	case errors.Is(err, service.ErrStorage):
		return http.StatusInternalServerError, "STORAGE_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// serviceError writes the envelope for err. Client errors carry the error
// text; server errors are logged and answered with a generic message.
func serviceError(c *gin.Context, log *zap.SugaredLogger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"code", code,
			"error", err,
		)
		respondError(c, status, code, http.StatusText(status))
		return
	}
	respondError(c, status, code, err.Error())
}
