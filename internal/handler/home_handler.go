package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tokenstay/service-stay/internal/application"
	"github.com/tokenstay/service-stay/internal/platform/auth"
	"github.com/tokenstay/service-stay/internal/platform/middleware"
	"github.com/tokenstay/service-stay/internal/platform/response"
)

// HomeHandler handles HTTP requests for listings and availability.
type HomeHandler struct {
	service *application.ListingService
}

// NewHomeHandler creates a new HomeHandler.
func NewHomeHandler(service *application.ListingService) *HomeHandler {
	return &HomeHandler{service: service}
}

// RegisterRoutes registers all home routes on the given router group.
func (h *HomeHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	hostOnly := middleware.RequireRole(auth.RoleHost, auth.RoleAdmin)

	homes := r.Group("/api/v1/homes")
	homes.Use(authMW)
	{
		homes.POST("", hostOnly, h.RegisterHome)
		homes.GET("/mine", h.ListMyHomes)
		homes.GET("/:id", h.GetHome)
		homes.GET("/:id/calendar", h.GetCalendar)
		homes.PATCH("/:id", hostOnly, h.UpdateHome)
		homes.POST("/:id/active", hostOnly, h.SetActive)
		homes.POST("/:id/availability", hostOnly, h.SetAvailability)
	}
}

// RegisterHome handles POST /api/v1/homes.
func (h *HomeHandler) RegisterHome(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.RegisterHomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Register(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// UpdateHome handles PATCH /api/v1/homes/:id.
func (h *HomeHandler) UpdateHome(c *gin.Context) {
	homeID, ok := homeIDParam(c)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.UpdateHomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateListing(c.Request.Context(), userID, homeID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SetActive handles POST /api/v1/homes/:id/active.
func (h *HomeHandler) SetActive(c *gin.Context) {
	homeID, ok := homeIDParam(c)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetActive(c.Request.Context(), userID, homeID, *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SetAvailability handles POST /api/v1/homes/:id/availability.
func (h *HomeHandler) SetAvailability(c *gin.Context) {
	homeID, ok := homeIDParam(c)
	if !ok {
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetAvailability(c.Request.Context(), userID, homeID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetHome handles GET /api/v1/homes/:id.
func (h *HomeHandler) GetHome(c *gin.Context) {
	homeID, ok := homeIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.GetHome(c.Request.Context(), homeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetCalendar handles GET /api/v1/homes/:id/calendar.
func (h *HomeHandler) GetCalendar(c *gin.Context) {
	homeID, ok := homeIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.GetCalendar(c.Request.Context(), homeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListMyHomes handles GET /api/v1/homes/mine.
func (h *HomeHandler) ListMyHomes(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	page, limit := parsePagination(c)
	homes, total, err := h.service.ListOwnerHomes(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, homes, total, page, limit)
}

// homeIDParam parses the :id path parameter, writing a 400 when it is not a handle.
func homeIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid home ID")
		return 0, false
	}
	return id, true
}

// maxPage bounds the page parameter so that (page-1)*limit stays well inside int.
const maxPage = 100_000

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
