package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medtrip/service-lifecycle/internal/application"
	"github.com/medtrip/service-lifecycle/pkg/auth"
	"github.com/medtrip/service-lifecycle/pkg/middleware"
	"github.com/medtrip/service-lifecycle/pkg/response"
)

// AdminHandler handles admin HTTP requests for lifecycle oversight.
type AdminHandler struct {
	bookings     *application.BookingService
	appointments *application.AppointmentService
	history      *application.HistoryService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	bookings *application.BookingService,
	appointments *application.AppointmentService,
	history *application.HistoryService,
) *AdminHandler {
	return &AdminHandler{bookings: bookings, appointments: appointments, history: history}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/appointments", h.ListAppointments)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.GET("/stats/appointments", h.AppointmentStats)
		admin.GET("/history/:entity_type/:id", h.AuditHistory)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)

	bookings, total, err := h.bookings.ListAllBookings(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, page, limit)
}

// ListAppointments handles GET /api/v1/admin/appointments.
func (h *AdminHandler) ListAppointments(c *gin.Context) {
	page, limit := parsePagination(c)

	appointments, total, err := h.appointments.ListAllAppointments(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, appointments, total, page, limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminHandler) BookingStats(c *gin.Context) {
	stats, err := h.bookings.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// AppointmentStats handles GET /api/v1/admin/stats/appointments.
func (h *AdminHandler) AppointmentStats(c *gin.Context) {
	stats, err := h.appointments.GetAppointmentStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// AuditHistory handles GET /api/v1/admin/history/:entity_type/:id.
func (h *AdminHandler) AuditHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid entity ID")
		return
	}

	audit, err := h.history.AuditStatusHistory(c.Request.Context(), c.Param("entity_type"), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, audit)
}
