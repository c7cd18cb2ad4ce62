package httpapi

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Freeeeeet/driving_booking/internal/engine"
	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/service"
)

// Handler переводит HTTP запросы в вызовы движка
type Handler struct {
	engine *engine.Engine
}

func NewHandler(e *engine.Engine) *Handler {
	return &Handler{engine: e}
}

type createBookingRequest struct {
	StudentID int64   `json:"student_id" binding:"required"`
	SlotID    int64   `json:"slot_id" binding:"required"`
	Notes     *string `json:"notes"`
}

type cancelBookingRequest struct {
	Reason *string `json:"reason"`
}

type submitRequestRequest struct {
	StudentID int64   `json:"student_id" binding:"required"`
	FormID    int64   `json:"form_id" binding:"required"`
	Notes     *string `json:"notes"`
}

type reviewRequest struct {
	Action          model.ReviewAction `json:"action" binding:"required"`
	Notes           *string            `json:"notes"`
	RejectionReason *string            `json:"rejection_reason"`
}

type resultRequest struct {
	Result model.ExamRequestStatus `json:"result" binding:"required"`
	Notes  *string                 `json:"notes"`
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func pathGroup(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid group id")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+key)
		return 0, false
	}
	return v, true
}

func queryGroup(c *gin.Context) (*uuid.UUID, bool) {
	raw := c.Query("group_id")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "invalid group_id")
		return nil, false
	}
	return &id, true
}

// Слоты

func (h *Handler) ListAvailable(c *gin.Context) {
	teacherID, ok := queryInt(c, "teacher_id")
	if !ok {
		return
	}
	groupID, ok := queryGroup(c)
	if !ok {
		return
	}

	filter := model.SlotFilter{
		DateFrom:   c.Query("date_from"),
		DateTo:     c.Query("date_to"),
		LessonType: model.LessonType(c.Query("lesson_type")),
		TeacherID:  teacherID,
		GroupID:    groupID,
	}
	respond(c, h.engine.ListAvailable(c.Request.Context(), filter))
}

func (h *Handler) PublishSlot(c *gin.Context) {
	var in service.PublishSlotInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	respond(c, h.engine.PublishSlot(c.Request.Context(), actorFrom(c), in))
}

func (h *Handler) DeleteSlot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	respond(c, h.engine.DeleteSlot(c.Request.Context(), actorFrom(c), id))
}

func (h *Handler) TeacherSlots(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	respond(c, h.engine.ListTeacherSlots(c.Request.Context(), id, c.Query("from"), c.Query("to")))
}

func (h *Handler) GroupAvailable(c *gin.Context) {
	groupID, ok := pathGroup(c)
	if !ok {
		return
	}
	respond(c, h.engine.ListAvailableForGroup(c.Request.Context(), groupID))
}

// Записи

func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respond(c, h.engine.CreateBooking(c.Request.Context(), actorFrom(c), req.StudentID, req.SlotID, req.Notes))
}

func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req cancelBookingRequest
	// тело необязательно
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	respond(c, h.engine.CancelBooking(c.Request.Context(), actorFrom(c), id, req.Reason))
}

func (h *Handler) CompleteBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req model.Completion
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respond(c, h.engine.CompleteBooking(c.Request.Context(), actorFrom(c), id, req))
}

func (h *Handler) StudentBookings(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	respond(c, h.engine.ListForStudent(c.Request.Context(), id))
}

func (h *Handler) StudentAvailable(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	respond(c, h.engine.ListAvailableForStudent(c.Request.Context(), id))
}

func (h *Handler) StudentProgress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	respond(c, h.engine.Summarize(c.Request.Context(), id))
}

func (h *Handler) TeacherBookings(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	respond(c, h.engine.ListForTeacher(c.Request.Context(), id))
}

// Экзамены

func (h *Handler) OpenForms(c *gin.Context) {
	groupID, ok := pathGroup(c)
	if !ok {
		return
	}
	respond(c, h.engine.ListOpenForms(c.Request.Context(), groupID))
}

func (h *Handler) PublishForm(c *gin.Context) {
	var in service.PublishFormInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	respond(c, h.engine.PublishForm(c.Request.Context(), actorFrom(c), in))
}

func (h *Handler) CloseForm(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	respond(c, h.engine.CloseForm(c.Request.Context(), actorFrom(c), id))
}

func (h *Handler) ListExamRequests(c *gin.Context) {
	var filter model.ExamRequestFilter
	var ok bool
	if filter.StudentID, ok = queryInt(c, "student_id"); !ok {
		return
	}
	if filter.TeacherID, ok = queryInt(c, "teacher_id"); !ok {
		return
	}
	if filter.FormID, ok = queryInt(c, "form_id"); !ok {
		return
	}
	if filter.GroupID, ok = queryGroup(c); !ok {
		return
	}
	filter.Status = model.ExamRequestStatus(c.Query("status"))

	respond(c, h.engine.ListExamRequests(c.Request.Context(), filter))
}

func (h *Handler) SubmitRequest(c *gin.Context) {
	var req submitRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respond(c, h.engine.SubmitRequest(c.Request.Context(), actorFrom(c), req.StudentID, req.FormID, req.Notes))
}

func (h *Handler) Review(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respond(c, h.engine.Review(c.Request.Context(), actorFrom(c), id, req.Action, req.Notes, req.RejectionReason))
}

func (h *Handler) SetResult(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respond(c, h.engine.SetResult(c.Request.Context(), actorFrom(c), id, req.Result, req.Notes))
}
