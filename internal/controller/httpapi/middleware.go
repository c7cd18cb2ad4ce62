package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
	"github.com/Freeeeeet/driving_booking/internal/model"
)

// Заголовки, которые выставляет прокси аутентификации перед сервисом
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

const actorKey = "actor"

// ActorMiddleware достаёт проверенную личность из заголовков
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader(HeaderUserID), 10, 64)
		role := model.Role(c.GetHeader(HeaderUserRole))
		if err != nil || id <= 0 || !role.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apperr.Result[any]{
				Error: &apperr.ErrorBody{Kind: apperr.KindForbidden, Message: "identity headers required"},
			})
			return
		}

		c.Set(actorKey, model.Actor{UserID: id, Role: role})
		c.Next()
	}
}

func actorFrom(c *gin.Context) model.Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(model.Actor)
	return actor
}

// RequestLogger пишет каждый запрос в zap
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.Int64("actor_id", actorFrom(c).UserID),
		)
	}
}
