// Package httpapi JSON интерфейс движка бронирования поверх gin
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
	"github.com/Freeeeeet/driving_booking/internal/engine"
)

// NewRouter собирает маршруты. metrics может быть nil.
func NewRouter(e *engine.Engine, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	h := NewHandler(e)

	api := router.Group("/api", ActorMiddleware())
	{
		api.GET("/slots", h.ListAvailable)
		api.POST("/slots", h.PublishSlot)
		api.DELETE("/slots/:id", h.DeleteSlot)

		api.POST("/bookings", h.CreateBooking)
		api.POST("/bookings/:id/cancel", h.CancelBooking)
		api.POST("/bookings/:id/complete", h.CompleteBooking)

		api.GET("/students/:id/bookings", h.StudentBookings)
		api.GET("/students/:id/available", h.StudentAvailable)
		api.GET("/students/:id/progress", h.StudentProgress)

		api.GET("/teachers/:id/bookings", h.TeacherBookings)
		api.GET("/teachers/:id/slots", h.TeacherSlots)

		api.GET("/groups/:id/slots", h.GroupAvailable)
		api.GET("/groups/:id/forms", h.OpenForms)
		api.POST("/forms", h.PublishForm)
		api.POST("/forms/:id/close", h.CloseForm)

		api.GET("/exam-requests", h.ListExamRequests)
		api.POST("/exam-requests", h.SubmitRequest)
		api.POST("/exam-requests/:id/review", h.Review)
		api.POST("/exam-requests/:id/result", h.SetResult)
	}

	return router
}

// statusFor HTTP статус для вида ошибки
func statusFor(kind apperr.Kind) int {
	switch kind {
	case "":
		return http.StatusOK
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotEligible:
		return http.StatusUnprocessableEntity
	case apperr.KindContention, apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusConflict
	}
}

func respond[T any](c *gin.Context, res apperr.Result[T]) {
	var kind apperr.Kind
	if res.Error != nil {
		kind = res.Error.Kind
	}
	if kind == apperr.KindContention {
		c.Header("Retry-After", "1")
	}
	c.JSON(statusFor(kind), res)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, apperr.Result[any]{
		Error: &apperr.ErrorBody{Kind: apperr.KindValidation, Message: msg},
	})
}
