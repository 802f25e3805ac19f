package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Toyin05/ecommerce/internal/modules/auth"
	"github.com/Toyin05/ecommerce/internal/shared/apperr"
)

const CtxKeyUserID = "user_id"

// RequireAuth resolves the bearer token and stores the user id on the context.
func RequireAuth(a auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			Fail(c, apperr.UnauthorizedErr("Authorization required"))
			return
		}

		uid, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnavailable) {
				Fail(c, apperr.UnavailableErr("Authentication service unavailable", err))
				return
			}
			Fail(c, &apperr.AppError{Kind: apperr.Unauthorized, PublicMsg: "Invalid or expired token", Err: err})
			return
		}

		c.Set(CtxKeyUserID, uid)
		c.Next()
	}
}

func UserID(c *gin.Context) (string, bool) {
	uid := c.GetString(CtxKeyUserID)
	return uid, uid != ""
}
