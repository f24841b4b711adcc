package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zeineb-manai/depot-vente/internal/auth"
	"github.com/zeineb-manai/depot-vente/internal/catalogue"
	"github.com/zeineb-manai/depot-vente/internal/models"
	"github.com/zeineb-manai/depot-vente/internal/redisclient"
	"github.com/zeineb-manai/depot-vente/internal/refresh"
	"github.com/zeineb-manai/depot-vente/internal/service"
	"github.com/zeineb-manai/depot-vente/internal/store"
	"github.com/zeineb-manai/depot-vente/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	sales     *service.SaleService
	catalogue *catalogue.Store
	ledger    *store.Store
	refresh   *refresh.Worker
	cache     *redisclient.Client
	verifier  *auth.Verifier
}

// NewHandler creates a new HTTP handler. cache may be nil.
func NewHandler(
	sales *service.SaleService,
	cat *catalogue.Store,
	ledger *store.Store,
	refreshWorker *refresh.Worker,
	cache *redisclient.Client,
	verifier *auth.Verifier,
) *Handler {
	return &Handler{
		sales:     sales,
		catalogue: cat,
		ledger:    ledger,
		refresh:   refreshWorker,
		cache:     cache,
		verifier:  verifier,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/owner/login", h.ownerLogin)

		// Buyer and seller surfaces: the only gate is that actions must
		// reference an existing user id.
		v1.GET("/catalogue", h.listAvailable)
		v1.POST("/purchases", h.buyItems)
		v1.GET("/receipts/:id", h.getReceipt)
		v1.GET("/users/:id", h.getUser)
		v1.GET("/users/:id/report", h.userReport)
	}

	owner := v1.Group("")
	owner.Use(h.ownerRequired())
	{
		owner.GET("/items", h.listItems)
		owner.POST("/items", h.createItem)
		owner.PUT("/items/:id", h.updateItem)
		owner.DELETE("/items", h.deleteItems)
		owner.POST("/sales", h.recordSale)
		owner.POST("/commission/quote", h.quoteCommission)
		owner.GET("/users", h.listUsers)
		owner.POST("/users", h.createUser)
		owner.GET("/users/suggest", h.suggestUserIDs)
		owner.GET("/reconciliation", h.reconcile)
		owner.POST("/reconciliation/repair", h.repair)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// ownerLogin exchanges the shared owner secret for a session token
func (h *Handler) ownerLogin(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if !h.verifier.CheckSecret(req.Secret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access denied"})
		return
	}

	token, err := h.verifier.GenerateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// listAvailable serves the buyer-facing listing: Available items only,
// optionally filtered. The unfiltered listing is served from the cache or
// the refresh worker's snapshot when warm; filtered queries and misses
// read the catalogue directly.
func (h *Handler) listAvailable(c *gin.Context) {
	if c.Query("q") == "" {
		if items, ok := h.warmListing(c.Request.Context()); ok {
			c.JSON(http.StatusOK, gin.H{"items": items})
			return
		}
	}

	items, err := h.catalogue.List(c.Request.Context(), catalogue.Filter{
		Query:         c.Query("q"),
		AvailableOnly: true,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// warmListing returns the Available listing from the cache, then from the
// refresh worker's snapshot. A cache failure or a cold worker reports a
// miss, and the caller falls back to the catalogue file.
func (h *Handler) warmListing(ctx context.Context) ([]models.Item, bool) {
	if h.cache != nil {
		items, ok, err := h.cache.GetAvailableListing(ctx)
		if err == nil && ok {
			return items, true
		}
	}

	snap := h.refresh.Snapshot()
	if len(snap) == 0 {
		return nil, false
	}
	available := make([]models.Item, 0, len(snap))
	for _, it := range snap {
		if it.Status == models.StatusAvailable {
			available = append(available, it)
		}
	}
	return available, true
}

// listItems serves the owner listing: every item, optionally filtered.
func (h *Handler) listItems(c *gin.Context) {
	items, err := h.catalogue.List(c.Request.Context(), catalogue.Filter{
		Query:    c.Query("q"),
		SellerID: c.Query("seller_id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// createItem handles item creation
func (h *Handler) createItem(c *gin.Context) {
	var item models.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	var created models.Item
	err := h.refresh.Guard().WithExclusiveEdit(func() error {
		var err error
		created, err = h.sales.ListItem(c.Request.Context(), item)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// updateItem handles a full-record item replace
func (h *Handler) updateItem(c *gin.Context) {
	var item models.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	id := c.Param("id")
	err := h.refresh.Guard().WithExclusiveEdit(func() error {
		return h.sales.UpdateItem(c.Request.Context(), id, item)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// deleteItems removes items unconditionally; receipts history survives
func (h *Handler) deleteItems(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	err := h.refresh.Guard().WithExclusiveEdit(func() error {
		return h.sales.DeleteItems(c.Request.Context(), req.IDs)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": req.IDs})
}

// recordSale handles an owner-assisted sale: the owner executes, the buyer
// named by actor_id is attributed
func (h *Handler) recordSale(c *gin.Context) {
	var req service.RecordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	req.Role = models.RoleOwner

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.sales.RecordSale(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// buyItems handles a buyer self-service purchase
func (h *Handler) buyItems(c *gin.Context) {
	var req service.RecordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	req.Role = models.RoleBuyer

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	var resp *service.RecordSaleResponse
	err := h.refresh.Guard().WithExclusiveEdit(func() error {
		var err error
		resp, err = h.sales.RecordSale(c.Request.Context(), &req)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// quoteCommission previews the commission split over a selection
func (h *Handler) quoteCommission(c *gin.Context) {
	var req struct {
		ItemIDs []string `json:"item_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	quote, err := h.sales.QuoteCommission(c.Request.Context(), req.ItemIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// getReceipt returns a receipt with its canonical text rendering
func (h *Handler) getReceipt(c *gin.Context) {
	id := c.Param("id")

	receipt, items, err := h.ledger.GetReceipt(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	text, err := h.ledger.RenderReceiptText(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"receipt": receipt,
		"items":   items,
		"text":    text,
	})
}

// createUser registers a new user
func (h *Handler) createUser(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Phone string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user, err := h.sales.RegisterUser(c.Request.Context(), req.Name, req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// getUser returns a user by id
func (h *Handler) getUser(c *gin.Context) {
	user, err := h.ledger.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// listUsers returns all registered users
func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.ledger.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// suggestUserIDs returns ids of users matching a name exactly. Duplicate
// names are expected; the caller disambiguates.
func (h *Handler) suggestUserIDs(c *gin.Context) {
	name := c.Query("name")
	if strings.TrimSpace(name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
		return
	}

	ids, err := h.ledger.SuggestUserIDs(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

// userReport returns the per-user summary with rendered receipt history
func (h *Handler) userReport(c *gin.Context) {
	report, err := h.sales.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	receipts, err := h.sales.RenderReceipts(c.Request.Context(), report.ReceiptIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report":   report,
		"receipts": receipts,
	})
}

// reconcile runs the catalogue/ledger audit scan
func (h *Handler) reconcile(c *gin.Context) {
	report, err := h.sales.Reconcile(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// repair re-runs the catalogue update for receipted items left Available
func (h *Handler) repair(c *gin.Context) {
	report, err := h.sales.Repair(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ownerRequired gates owner-level operations behind a session token
func (h *Handler) ownerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		claims, err := h.verifier.ValidateToken(token)
		if err != nil || claims.Role != auth.RoleOwnerSession {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		c.Next()
	}
}

// respondError maps domain error classes to HTTP statuses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
