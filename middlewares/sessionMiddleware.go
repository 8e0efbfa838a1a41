package middlewares

import (
	"errors"
	"net/http"

	"bitbucket.org/frioaustral/plant_backend/models"
	"bitbucket.org/frioaustral/plant_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionMiddleware resolves the token header to a user and stamps identity
// plus the persisted active work center into the request context. Requests
// without a token pass through unstamped; RequireUser gates the routes that
// need one.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if correlationId := c.Request.Header.Get("x-correlation-id"); correlationId != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
		} else {
			ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
		}

		token := c.Request.Header.Get("token")
		if token == "" {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}

		user, err := models.GetUserByToken(token)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		workCenter, err := models.PersistedWorkCenter()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUserNameInContext(ctx, user.Name)
		ctx = utils.SetWorkCenterInContext(ctx, workCenter)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireUser rejects requests that did not authenticate.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
