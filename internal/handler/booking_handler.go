package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/serviceloop/service-booking/internal/application"
	"github.com/serviceloop/service-booking/internal/domain/booking"
	"github.com/serviceloop/service-booking/internal/platform/auth"
	"github.com/serviceloop/service-booking/internal/platform/middleware"
	"github.com/serviceloop/service-booking/internal/platform/response"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// BookingHandler exposes the booking lifecycle over HTTP.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes mounts the booking routes on an authenticated router group.
func (h *BookingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	bookings := rg.Group("/bookings")
	{
		bookings.POST("", middleware.RequireRole(auth.RoleConsumer), h.Create)
		bookings.GET("", h.List)
		bookings.GET("/:id", h.Get)
		bookings.GET("/number/:number", h.GetByNumber)
		bookings.POST("/:id/accept", h.transition(booking.EventAccept))
		bookings.POST("/:id/reject", h.transition(booking.EventReject))
		bookings.POST("/:id/start", h.transition(booking.EventStart))
		bookings.POST("/:id/complete", h.transition(booking.EventComplete))
		bookings.POST("/:id/cancel", h.transition(booking.EventCancel))
		bookings.POST("/:id/modifications", middleware.RequireRole(auth.RoleProvider), h.ProposeModification)
		bookings.GET("/:id/modifications", h.ListModifications)
		bookings.POST("/:id/modifications/:proposalId/resolve", middleware.RequireRole(auth.RoleConsumer), h.ResolveModification)
	}
}

// Create handles POST /bookings.
func (h *BookingHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.BadRequest(c, "missing authenticated user")
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	dto, err := h.service.CreateBooking(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto)
}

// List handles GET /bookings, scoped to the caller's side of the marketplace.
func (h *BookingHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.BadRequest(c, "missing authenticated user")
		return
	}
	page, limit := parsePagination(c)

	switch actor.Role {
	case booking.RoleProvider:
		res, err := h.service.GetProviderBookings(c.Request.Context(), actor.ID, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, res.Items, res.Total, page, limit)
	default:
		res, err := h.service.GetConsumerBookings(c.Request.Context(), actor.ID, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, res.Items, res.Total, page, limit)
	}
}

// Get handles GET /bookings/:id.
func (h *BookingHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.BadRequest(c, "missing authenticated user")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	dto, err := h.service.GetBooking(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// GetByNumber handles GET /bookings/number/:number.
func (h *BookingHandler) GetByNumber(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.BadRequest(c, "missing authenticated user")
		return
	}
	number := c.Param("number")
	if number == "" {
		response.BadRequest(c, "booking number is required")
		return
	}

	dto, err := h.service.GetBookingByNumber(c.Request.Context(), number, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// transitionRequest carries the optional note attached to a transition.
type transitionRequest struct {
	Note string `json:"note"`
}

func (h *BookingHandler) transition(event booking.TransitionEvent) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			response.BadRequest(c, "missing authenticated user")
			return
		}
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid booking ID")
			return
		}

		var req transitionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				response.BadRequest(c, "invalid request body: "+err.Error())
				return
			}
		}

		dto, err := h.service.Transition(c.Request.Context(), id, event, actor, req.Note)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, dto)
	}
}

// ProposeModification handles POST /bookings/:id/modifications.
func (h *BookingHandler) ProposeModification(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.BadRequest(c, "missing authenticated user")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	var req application.ProposeModificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	dto, err := h.service.ProposeModification(c.Request.Context(), id, actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto)
}

// ListModifications handles GET /bookings/:id/modifications.
func (h *BookingHandler) ListModifications(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.BadRequest(c, "missing authenticated user")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	dtos, err := h.service.ListProposals(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dtos)
}

// resolveModificationRequest carries the consumer's decision on a proposal.
type resolveModificationRequest struct {
	Decision string `json:"decision" binding:"required"`
}

// ResolveModification handles POST /bookings/:id/modifications/:proposalId/resolve.
func (h *BookingHandler) ResolveModification(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		response.BadRequest(c, "missing authenticated user")
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}
	proposalID, err := uuid.Parse(c.Param("proposalId"))
	if err != nil {
		response.BadRequest(c, "invalid proposal ID")
		return
	}

	var req resolveModificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	decision, err := booking.ParseProposalDecision(req.Decision)
	if err != nil {
		response.Error(c, err)
		return
	}

	dto, err := h.service.ResolveModification(c.Request.Context(), bookingID, proposalID, actor, decision)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// --- Helpers ---

// currentActor builds the domain actor from the authenticated request.
func currentActor(c *gin.Context) (booking.Actor, bool) {
	id, ok := middleware.GetUserID(c)
	if !ok {
		return booking.Actor{}, false
	}
	role, ok := middleware.GetUserRole(c)
	if !ok {
		return booking.Actor{}, false
	}
	return booking.Actor{ID: id, Role: booking.Role(role)}, true
}

func parsePagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if err != nil || page < 1 {
		page = defaultPage
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
