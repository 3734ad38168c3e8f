package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tokenstay/service-stay/internal/application"
	"github.com/tokenstay/service-stay/internal/platform/auth"
	"github.com/tokenstay/service-stay/internal/platform/middleware"
	"github.com/tokenstay/service-stay/internal/platform/response"
)

// BookingHandler handles HTTP requests for single-party bookings.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	r.POST("/api/v1/homes/:id/bookings", authMW, h.Book)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.GET("/mine", h.ListMyBookings)
		bookings.GET("/received", middleware.RequireRole(auth.RoleHost, auth.RoleAdmin), h.ListReceivedBookings)
	}
}

// Book handles POST /api/v1/homes/:id/bookings.
func (h *BookingHandler) Book(c *gin.Context) {
	homeID, ok := homeIDParam(c)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Book(c.Request.Context(), userID, homeID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListMyBookings handles GET /api/v1/bookings/mine.
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	page, limit := parsePagination(c)
	receipts, total, err := h.service.GetPayerBookings(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, receipts, total, page, limit)
}

// ListReceivedBookings handles GET /api/v1/bookings/received.
func (h *BookingHandler) ListReceivedBookings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	page, limit := parsePagination(c)
	receipts, total, err := h.service.GetPayeeBookings(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, receipts, total, page, limit)
}
