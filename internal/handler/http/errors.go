package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zigg31416/Chatx/internal/hub"
	"github.com/zigg31416/Chatx/internal/service"
)

// HandleServiceError 把服务层错误翻译为 HTTP 状态码。
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidToken):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrNotHost):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidState):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		logrus.WithError(err).Error("Store unavailable while handling request")
		ErrorResponse(c, http.StatusServiceUnavailable, "Chat service is temporarily unavailable, please retry")
	case errors.Is(err, hub.ErrHubClosed):
		ErrorResponse(c, http.StatusServiceUnavailable, "Server is shutting down, please retry")
	default:
		// Log the internal error for debugging
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
