package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medtrip/service-lifecycle/internal/application"
	"github.com/medtrip/service-lifecycle/pkg/auth"
	"github.com/medtrip/service-lifecycle/pkg/middleware"
	"github.com/medtrip/service-lifecycle/pkg/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
	history *application.HistoryService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService, history *application.HistoryService) *BookingHandler {
	return &BookingHandler{service: service, history: history}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	creators := middleware.RequireRole(auth.RolePatient, auth.RoleCoordinator, auth.RoleStaff, auth.RoleAdmin)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", creators, h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/reference/:reference", h.GetBookingByReference)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/transitions", h.AllowedTransitions)
		bookings.POST("/:id/transitions", h.RequestTransition)
		bookings.GET("/:id/history", h.GetHistory)
	}
}

// CreateBooking handles POST /api/v1/bookings. Patients always book for
// themselves; staff must name the patient.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if isPatient(actor) {
		req.PatientID, _ = middleware.GetUserID(c)
	}

	result, err := h.service.CreateBooking(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings. Patients see their own bookings;
// other roles pass ?patient_id= or get every booking, optionally by ?status=.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	page, limit := parsePagination(c)

	var patientID uuid.UUID
	switch {
	case isPatient(actor):
		patientID, _ = middleware.GetUserID(c)
	case c.Query("patient_id") != "":
		id, err := uuid.Parse(c.Query("patient_id"))
		if err != nil {
			response.BadRequest(c, "invalid patient ID")
			return
		}
		patientID = id
	}

	if patientID == uuid.Nil {
		items, total, err := h.service.ListAllBookings(c.Request.Context(), c.Query("status"), page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, items, total, page, limit)
		return
	}

	result, err := h.service.GetPatientBookings(c.Request.Context(), patientID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	result, ok := h.loadOwned(c)
	if !ok {
		return
	}
	response.Success(c, result)
}

// GetBookingByReference handles GET /api/v1/bookings/reference/:reference.
func (h *BookingHandler) GetBookingByReference(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		unauthorized(c)
		return
	}

	result, err := h.service.GetBookingByReference(c.Request.Context(), c.Param("reference"))
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

// AllowedTransitions handles GET /api/v1/bookings/:id/transitions.
func (h *BookingHandler) AllowedTransitions(c *gin.Context) {
	bk, ok := h.loadOwned(c)
	if !ok {
		return
	}

	result, err := h.service.AllowedTransitions(c.Request.Context(), bk.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RequestTransition handles POST /api/v1/bookings/:id/transitions.
func (h *BookingHandler) RequestTransition(c *gin.Context) {
	bk, ok := h.loadOwned(c)
	if !ok {
		return
	}
	actor, _ := actorFrom(c)

	body, ok := bindTransition(c, bk.AllowedNext)
	if !ok {
		return
	}

	result, err := h.service.RequestBookingTransition(c.Request.Context(), body.request(bk.ID, actor))
	if err != nil {
		response.Error(c, withAllowedNext(err, bk.AllowedNext))
		return
	}

	response.Success(c, result)
}

// GetHistory handles GET /api/v1/bookings/:id/history.
func (h *BookingHandler) GetHistory(c *gin.Context) {
	bk, ok := h.loadOwned(c)
	if !ok {
		return
	}

	entries, err := h.history.GetStatusHistory(c.Request.Context(), "booking", bk.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, entries)
}

// loadOwned resolves :id and checks the caller may see it. It writes the
// error response itself and returns false on failure.
func (h *BookingHandler) loadOwned(c *gin.Context) (*application.BookingDTO, bool) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return nil, false
	}

	actor, ok := actorFrom(c)
	if !ok {
		unauthorized(c)
		return nil, false
	}

	result, err := h.service.GetBooking(c.Request.Context(), bookingID)
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
