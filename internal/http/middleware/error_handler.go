package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Toyin05/ecommerce/internal/shared/apperr"
)

// Fail records err for ErrorHandler and stops the chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorHandler renders the last handler error as {"success":false,"error","request_id"}.
// Only the public message leaves the process; the cause goes to the log.
func ErrorHandler(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := apperr.HTTPStatus(err)
		rid := GetRequestID(c)

		level := slog.LevelWarn
		if status >= 500 {
			level = slog.LevelError
		}
		l.LogAttrs(c.Request.Context(), level, "request_failed",
			slog.String("request_id", rid),
			slog.Int("status", status),
			slog.Any("err", err),
		)

		WriteError(c, status, apperr.PublicMessage(err), err)
	}
}

// WriteError writes the standard error body. err may be nil.
func WriteError(c *gin.Context, status int, msg string, err error) {
	payload := gin.H{
		"success":    false,
		"error":      msg,
		"request_id": GetRequestID(c),
	}
	if ae, ok := apperr.As(err); ok && len(ae.Fields) > 0 {
		payload["fields"] = ae.Fields
	}
	c.AbortWithStatusJSON(status, payload)
}

func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		WriteError(c, http.StatusNotFound, "Not found", nil)
	}
}

func NoMethod() gin.HandlerFunc {
	return func(c *gin.Context) {
		WriteError(c, http.StatusMethodNotAllowed, "Method not allowed", nil)
	}
}
