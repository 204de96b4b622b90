package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medtrip/service-lifecycle/internal/application"
	"github.com/medtrip/service-lifecycle/pkg/auth"
	"github.com/medtrip/service-lifecycle/pkg/middleware"
	"github.com/medtrip/service-lifecycle/pkg/response"
)

// AppointmentHandler handles HTTP requests for doctor appointments.
type AppointmentHandler struct {
	service *application.AppointmentService
	history *application.HistoryService
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(service *application.AppointmentService, history *application.HistoryService) *AppointmentHandler {
	return &AppointmentHandler{service: service, history: history}
}

// RegisterRoutes registers all appointment routes on the given router group.
func (h *AppointmentHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	creators := middleware.RequireRole(auth.RolePatient, auth.RoleCoordinator, auth.RoleStaff, auth.RoleAdmin)

	appointments := r.Group("/api/v1/appointments")
	appointments.Use(authMW)
	{
		appointments.POST("", creators, h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/reference/:reference", h.GetAppointmentByReference)
		appointments.GET("/:id", h.GetAppointment)
		appointments.GET("/:id/transitions", h.AllowedTransitions)
		appointments.POST("/:id/transitions", h.RequestTransition)
		appointments.GET("/:id/history", h.GetHistory)
	}
}

// CreateAppointment handles POST /api/v1/appointments.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req application.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if isPatient(actor) {
		req.PatientID, _ = middleware.GetUserID(c)
	}

	result, err := h.service.CreateAppointment(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListAppointments handles GET /api/v1/appointments. Patients see their own
// appointments and doctors their schedule; other roles see everything.
func (h *AppointmentHandler) ListAppointments(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	role, ok := middleware.GetUserRole(c)
	if !ok {
		unauthorized(c)
		return
	}

	page, limit := parsePagination(c)

	switch role {
	case auth.RolePatient:
		result, err := h.service.GetPatientAppointments(c.Request.Context(), userID, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)

	case auth.RoleDoctor:
		result, err := h.service.GetDoctorAppointments(c.Request.Context(), userID, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)

	default:
		items, total, err := h.service.ListAllAppointments(c.Request.Context(), c.Query("status"), page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, items, total, page, limit)
	}
}

// GetAppointment handles GET /api/v1/appointments/:id.
func (h *AppointmentHandler) GetAppointment(c *gin.Context) {
	result, ok := h.loadOwned(c)
	if !ok {
		return
	}
	response.Success(c, result)
}

// GetAppointmentByReference handles GET /api/v1/appointments/reference/:reference.
func (h *AppointmentHandler) GetAppointmentByReference(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	result, err := h.service.GetAppointmentByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := ownedBy(actor, result.PatientID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AllowedTransitions handles GET /api/v1/appointments/:id/transitions.
func (h *AppointmentHandler) AllowedTransitions(c *gin.Context) {
	ap, ok := h.loadOwned(c)
	if !ok {
		return
	}

	result, err := h.service.AllowedTransitions(c.Request.Context(), ap.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RequestTransition handles POST /api/v1/appointments/:id/transitions.
func (h *AppointmentHandler) RequestTransition(c *gin.Context) {
	ap, ok := h.loadOwned(c)
	if !ok {
		return
	}
	actor, _ := actorFrom(c)

	body, ok := bindTransition(c, ap.AllowedNext)
	if !ok {
		return
	}

	result, err := h.service.RequestAppointmentTransition(c.Request.Context(), body.request(ap.ID, actor))
	if err != nil {
		response.Error(c, withAllowedNext(err, ap.AllowedNext))
		return
	}

	response.Success(c, result)
}

// GetHistory handles GET /api/v1/appointments/:id/history.
func (h *AppointmentHandler) GetHistory(c *gin.Context) {
	ap, ok := h.loadOwned(c)
	if !ok {
		return
	}

	entries, err := h.history.GetStatusHistory(c.Request.Context(), "appointment", ap.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, entries)
}

func (h *AppointmentHandler) loadOwned(c *gin.Context) (*application.AppointmentDTO, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid appointment ID")
		return nil, false
	}

	actor, ok := actorFrom(c)
	if !ok {
		unauthorized(c)
		return nil, false
	}

	result, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if err := ownedBy(actor, result.PatientID); err != nil {
		response.Error(c, err)
		return nil, false
	}
	return result, true
}
