package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medtrip/service-lifecycle/internal/application"
	"github.com/medtrip/service-lifecycle/internal/domain/lifecycle"
	"github.com/medtrip/service-lifecycle/pkg/auth"
	"github.com/medtrip/service-lifecycle/pkg/domain"
	"github.com/medtrip/service-lifecycle/pkg/middleware"
	"github.com/medtrip/service-lifecycle/pkg/response"
)

// transitionBody is the JSON body of POST /:id/transitions.
type transitionBody struct {
	Status         string            `json:"status" binding:"required"`
	Reason         string            `json:"reason" binding:"max=1000"`
	ExpectedStatus string            `json:"expected_status"`
	Metadata       map[string]string `json:"metadata"`
	Silent         bool              `json:"silent"`
}

func (b transitionBody) request(id uuid.UUID, actor lifecycle.Actor) application.TransitionRequest {
	return application.TransitionRequest{
		EntityID:             id,
		Status:               b.Status,
		Actor:                actor,
		Reason:               b.Reason,
		ExpectedStatus:       b.ExpectedStatus,
		Metadata:             b.Metadata,
		SuppressNotification: b.Silent,
	}
}

// bindTransition decodes the transition body. A malformed body is answered
// with a validation error listing allowed.
func bindTransition(c *gin.Context, allowed []string) (transitionBody, bool) {
	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, withAllowedNext(domain.NewValidationError(err.Error()), allowed))
		return body, false
	}
	return body, true
}

// actorFrom builds the transition actor from the authenticated caller.
func actorFrom(c *gin.Context) (lifecycle.Actor, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return lifecycle.Actor{}, false
	}
	role, ok := middleware.GetUserRole(c)
	if !ok {
		return lifecycle.Actor{}, false
	}
	return lifecycle.Actor{ID: userID.String(), Role: lifecycle.ActorRole(role)}, true
}

func unauthorized(c *gin.Context) {
	response.Error(c, domain.NewUnauthorizedError("missing caller identity"))
}

// withAllowedNext attaches the statuses reachable from the current one to a
// validation error, so a client that sent an unknown token sees its options.
func withAllowedNext(err error, allowed []string) error {
	var de *domain.DomainError
	if !errors.As(err, &de) || de.Code != domain.CodeValidation {
		return err
	}
	if allowed == nil {
		allowed = []string{}
	}
	details := make(map[string]interface{}, len(de.Details)+1)
	for k, v := range de.Details {
		details[k] = v
	}
	details["allowed_next_statuses"] = allowed
	return &domain.DomainError{Code: de.Code, Message: de.Message, Details: details}
}

func isPatient(actor lifecycle.Actor) bool {
	return string(actor.Role) == auth.RolePatient
}

// ownedBy rejects patients acting on another patient's record.
func ownedBy(actor lifecycle.Actor, patientID uuid.UUID) error {
	if isPatient(actor) && actor.ID != patientID.String() {
		return domain.NewForbiddenError("record belongs to another patient")
	}
	return nil
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
