package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tokenstay/service-stay/internal/application"
	"github.com/tokenstay/service-stay/internal/platform/auth"
	"github.com/tokenstay/service-stay/internal/platform/middleware"
	"github.com/tokenstay/service-stay/internal/platform/response"
)

// RevokeMemberRequest withdraws a membership.
type RevokeMemberRequest struct {
	PartyID uuid.UUID `json:"party_id" binding:"required"`
	Reason  string    `json:"reason"`
}

// AdminLedgerHandler handles admin HTTP requests for the token ledgers.
type AdminLedgerHandler struct {
	service *application.LedgerService
}

// NewAdminLedgerHandler creates a new AdminLedgerHandler.
func NewAdminLedgerHandler(service *application.LedgerService) *AdminLedgerHandler {
	return &AdminLedgerHandler{service: service}
}

// RegisterRoutes registers admin ledger routes.
func (h *AdminLedgerHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.POST("/ledger/:instrument/mint", h.Mint)
		admin.POST("/ledger/:instrument/approve", h.Approve)
		admin.GET("/ledger/:instrument/:party", h.Account)
		admin.POST("/membership/verify", h.VerifyMember)
		admin.POST("/membership/revoke", h.RevokeMember)
	}
}

// Mint handles POST /api/v1/admin/ledger/:instrument/mint.
func (h *AdminLedgerHandler) Mint(c *gin.Context) {
	var req application.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Mint(c.Request.Context(), c.Param("instrument"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Approve handles POST /api/v1/admin/ledger/:instrument/approve.
func (h *AdminLedgerHandler) Approve(c *gin.Context) {
	var req application.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Approve(c.Request.Context(), c.Param("instrument"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Account handles GET /api/v1/admin/ledger/:instrument/:party.
func (h *AdminLedgerHandler) Account(c *gin.Context) {
	party, err := uuid.Parse(c.Param("party"))
	if err != nil {
		response.BadRequest(c, "invalid party ID")
		return
	}

	result, err := h.service.Account(c.Request.Context(), c.Param("instrument"), party)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// VerifyMember handles POST /api/v1/admin/membership/verify.
func (h *AdminLedgerHandler) VerifyMember(c *gin.Context) {
	var req application.VerifyMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.VerifyMember(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RevokeMember handles POST /api/v1/admin/membership/revoke.
func (h *AdminLedgerHandler) RevokeMember(c *gin.Context) {
	var req RevokeMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	h.service.RevokeMember(c.Request.Context(), req.PartyID, req.Reason)
	response.Success(c, gin.H{"party_id": req.PartyID, "revoked": true})
}
