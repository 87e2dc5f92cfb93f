// Package api exposes the lease lifecycle over HTTP with gin.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rongwang/rentledger-server/internal/metrics"
	"github.com/rongwang/rentledger-server/internal/models"
	"github.com/rongwang/rentledger-server/internal/service"
	"github.com/rongwang/rentledger-server/internal/utils"
)

// Handler holds the HTTP handlers
type Handler struct {
	svc       service.Service
	jwtSecret []byte
	logger    *utils.Logger
}

// NewHandler creates a new Handler
func NewHandler(svc service.Service, jwtSecret []byte, logger *utils.Logger) *Handler {
	return &Handler{svc: svc, jwtSecret: jwtSecret, logger: logger}
}

// SetupRoutes registers every route on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(metrics.GinMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", h.RegisterCompany)
		auth.POST("/login", h.Login)
	}

	api := router.Group("/api", AuthMiddleware(h.jwtSecret))
	{
		api.GET("/leases/:id", h.GetLease)
		api.GET("/leases/:id/incomes", h.ListIncomes)
		api.POST("/incomes", RequireRole(models.RoleManager, models.RoleTenant), h.AddIncome)

		manager := api.Group("", RequireRole(models.RoleManager))
		manager.POST("/staff", h.AddStaff)
		manager.GET("/members", h.ListMembers)
		manager.POST("/properties", h.AddProperty)
		manager.POST("/units", h.AddUnit)
		manager.GET("/units/:id/occupancy", h.GetUnitOccupancy)
		manager.POST("/prospects", h.AddProspect)
		manager.PUT("/prospects/:id/approval", h.SetProspectApproval)
		manager.POST("/leases", h.AddLease)
		manager.POST("/leases/:id/start", h.StartLease)
		manager.POST("/leases/:id/renew", h.RenewLease)
		manager.POST("/leases/:id/end", h.EndLease)
		manager.DELETE("/leases/:id/move-in", h.CancelMoveIn)
		manager.POST("/expenses", h.AddExpense)
		manager.GET("/expenses", h.ListExpenses)
	}
}

// Authentication handlers
func (h *Handler) RegisterCompany(c *gin.Context) {
	var req models.RegisterCompanyRequest
	if !h.bind(c, &req) {
		return
	}
	resp, err := h.svc.RegisterCompany(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !h.bind(c, &req) {
		return
	}
	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Company member handlers
func (h *Handler) AddStaff(c *gin.Context) {
	var req models.AddStaffRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.svc.AddStaff(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "user": user})
}

func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.svc.ListMembers(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MembersResponse{Status: "success", Members: members})
}

// Portfolio handlers
func (h *Handler) AddProperty(c *gin.Context) {
	var req models.AddPropertyRequest
	if !h.bind(c, &req) {
		return
	}
	property, err := h.svc.AddProperty(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "property": property})
}

func (h *Handler) AddUnit(c *gin.Context) {
	var req models.AddUnitRequest
	if !h.bind(c, &req) {
		return
	}
	unit, err := h.svc.AddUnit(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "unit": unit})
}

func (h *Handler) AddProspect(c *gin.Context) {
	var req models.AddProspectRequest
	if !h.bind(c, &req) {
		return
	}
	prospect, err := h.svc.AddProspect(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "prospect": prospect})
}

func (h *Handler) SetProspectApproval(c *gin.Context) {
	var req models.ProspectApprovalRequest
	if !h.bind(c, &req) {
		return
	}
	prospect, err := h.svc.SetProspectApproval(c.Request.Context(), actorFrom(c), c.Param("id"), req.IsApproved)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "prospect": prospect})
}

func (h *Handler) GetUnitOccupancy(c *gin.Context) {
	resp, err := h.svc.GetUnitOccupancy(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Lease lifecycle handlers
func (h *Handler) AddLease(c *gin.Context) {
	var req models.AddLeaseRequest
	if !h.bind(c, &req) {
		return
	}
	resp, err := h.svc.AddLease(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GetLease(c *gin.Context) {
	resp, err := h.svc.GetLease(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) StartLease(c *gin.Context) {
	resp, err := h.svc.StartLease(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) RenewLease(c *gin.Context) {
	var req models.RenewLeaseRequest
	if !h.bind(c, &req) {
		return
	}
	resp, err := h.svc.RenewLease(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) EndLease(c *gin.Context) {
	resp, err := h.svc.EndLease(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CancelMoveIn(c *gin.Context) {
	if err := h.svc.CancelMoveIn(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Payment handlers
func (h *Handler) AddIncome(c *gin.Context) {
	var req models.AddIncomeRequest
	if !h.bind(c, &req) {
		return
	}
	resp, err := h.svc.AddIncome(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListIncomes(c *gin.Context) {
	resp, err := h.svc.ListIncomes(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Expense handlers
func (h *Handler) AddExpense(c *gin.Context) {
	var req models.AddExpenseRequest
	if !h.bind(c, &req) {
		return
	}
	expense, err := h.svc.AddExpense(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "expense": expense})
}

func (h *Handler) ListExpenses(c *gin.Context) {
	var query models.ListExpensesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}
	resp, err := h.svc.ListExpenses(c.Request.Context(), actorFrom(c), query)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// bind decodes and validates the JSON body, answering 400 on failure
func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return false
	}
	return true
}

// writeError maps the service error kinds onto HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	message := err.Error()

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, models.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, models.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, models.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, models.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, models.ErrGateway):
		status, code = http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR"
	default:
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		message = "An internal error occurred"
	}

	c.JSON(status, models.ErrorResponse{Status: "error", Code: code, Message: message})
}
