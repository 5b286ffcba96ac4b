package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/serviceloop/service-booking/internal/application"
	"github.com/serviceloop/service-booking/internal/platform/auth"
	"github.com/serviceloop/service-booking/internal/platform/middleware"
	"github.com/serviceloop/service-booking/internal/platform/response"
)

// AdminHandler exposes the operations surface: full booking listings and
// aggregate statistics.
type AdminHandler struct {
	service *application.BookingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service *application.BookingService) *AdminHandler {
	return &AdminHandler{service: service}
}

// RegisterRoutes mounts the admin routes on an authenticated router group.
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin", middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.GetBookingStats)
	}
}

// ListBookings handles GET /admin/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)

	bookings, total, err := h.service.ListAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, bookings, total, page, limit)
}

// GetBookingStats handles GET /admin/stats/bookings.
func (h *AdminHandler) GetBookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
