package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tokenstay/service-stay/internal/application"
	"github.com/tokenstay/service-stay/internal/platform/auth"
	"github.com/tokenstay/service-stay/internal/platform/middleware"
	"github.com/tokenstay/service-stay/internal/platform/response"
)

// SharedBookingHandler handles HTTP requests for shared bookings.
type SharedBookingHandler struct {
	service *application.SharedBookingService
}

// NewSharedBookingHandler creates a new SharedBookingHandler.
func NewSharedBookingHandler(service *application.SharedBookingService) *SharedBookingHandler {
	return &SharedBookingHandler{service: service}
}

// RegisterRoutes registers all shared booking routes on the given router group.
func (h *SharedBookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	r.POST("/api/v1/homes/:id/shared", authMW, h.Initiate)

	shared := r.Group("/api/v1/shared")
	shared.Use(authMW)
	{
		shared.GET("/:pool", h.GetPool)
		shared.POST("/:pool/shares", h.BuyShare)
	}
}

// Initiate handles POST /api/v1/homes/:id/shared.
func (h *SharedBookingHandler) Initiate(c *gin.Context) {
	homeID, ok := homeIDParam(c)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.InitiateSharedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Initiate(c.Request.Context(), userID, homeID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// BuyShare handles POST /api/v1/shared/:pool/shares.
func (h *SharedBookingHandler) BuyShare(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	result, err := h.service.BuyShare(c.Request.Context(), userID, c.Param("pool"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetPool handles GET /api/v1/shared/:pool.
func (h *SharedBookingHandler) GetPool(c *gin.Context) {
	result, err := h.service.GetPool(c.Request.Context(), c.Param("pool"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
