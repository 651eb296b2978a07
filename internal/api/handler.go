package api

import (
	"net/http"
	"strconv"
	"time"

	"shopper-service/internal/models"
	"shopper-service/internal/service"
	"shopper-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	headerSessionID = "X-Session-ID"
	headerUserID    = "X-User-ID"
)

// Handler contains HTTP handlers
type Handler struct {
	shopper *service.ShopperService
}

// NewHandler creates a new HTTP handler
func NewHandler(shopper *service.ShopperService) *Handler {
	return &Handler{shopper: shopper}
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
	v1.Use(sessionMiddleware())
	{
		v1.POST("/session/auth", h.authTransition)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addItem)
		v1.PUT("/cart/items/:product_id", h.updateQuantity)
		v1.DELETE("/cart/items/:product_id", h.removeItem)
		v1.DELETE("/cart", h.clearCart)
		v1.POST("/cart/refresh", h.refreshCart)

		v1.POST("/track/view", h.trackView)
		v1.POST("/track/search", h.trackSearch)
		v1.POST("/track/preference", h.trackPreference)
		v1.DELETE("/track/history", h.clearHistory)

		v1.GET("/preferences/top", h.topPreferences)
		v1.GET("/searches/recent", h.recentSearches)
		v1.GET("/viewed/recent", h.recentlyViewed)

		v1.GET("/recommendations", h.recommendations)
	}
}

// sessionMiddleware requires a session id on every shopper-scoped route and
// assigns one when the client has none yet.
func sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(headerSessionID)
		if sessionID == "" {
			sessionID = uuid.New().String()
			c.Header(headerSessionID, sessionID)
		}
		c.Set("session_id", sessionID)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString("session_id")
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

type authTransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// authTransition feeds an observed auth status change into the cart engine.
// The authenticated user id comes from the identity collaborator via header.
func (h *Handler) authTransition(c *gin.Context) {
	var req authTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	var userID int64
	if raw := c.GetHeader(headerUserID); raw != "" {
		userID, _ = strconv.ParseInt(raw, 10, 64)
	}

	status := models.ParseAuthStatus(req.Status)
	h.shopper.HandleAuthTransition(c.Request.Context(), sessionID(c), status, userID)

	c.JSON(http.StatusOK, h.shopper.Summary(c.Request.Context(), sessionID(c)))
}

// getCart returns the derived cart view
func (h *Handler) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.shopper.Summary(c.Request.Context(), sessionID(c)))
}

// addItem adds a line to the active cart
func (h *Handler) addItem(c *gin.Context) {
	var item models.CartLine
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if !item.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "product_id and a quantity of at least 1 are required",
		})
		return
	}

	h.shopper.AddItem(c.Request.Context(), sessionID(c), item)
	c.JSON(http.StatusOK, h.shopper.Summary(c.Request.Context(), sessionID(c)))
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// updateQuantity sets a line's quantity exactly; zero or below removes it
func (h *Handler) updateQuantity(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	h.shopper.UpdateQuantity(c.Request.Context(), sessionID(c), productID, req.Quantity)
	c.JSON(http.StatusOK, h.shopper.Summary(c.Request.Context(), sessionID(c)))
}

// removeItem deletes a line from the active cart
func (h *Handler) removeItem(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	h.shopper.RemoveItem(c.Request.Context(), sessionID(c), productID)
	c.JSON(http.StatusOK, h.shopper.Summary(c.Request.Context(), sessionID(c)))
}

// clearCart empties the active cart
func (h *Handler) clearCart(c *gin.Context) {
	h.shopper.ClearCart(c.Request.Context(), sessionID(c))
	c.JSON(http.StatusOK, h.shopper.Summary(c.Request.Context(), sessionID(c)))
}

// refreshCart re-derives the cart from its current backing store
func (h *Handler) refreshCart(c *gin.Context) {
	h.shopper.RefreshCart(c.Request.Context(), sessionID(c))
	c.JSON(http.StatusOK, h.shopper.Summary(c.Request.Context(), sessionID(c)))
}

// trackView records a product page view
func (h *Handler) trackView(c *gin.Context) {
	var rec models.ViewedProduct
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if rec.ProductID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}

	h.shopper.TrackView(c.Request.Context(), sessionID(c), rec)
	c.Status(http.StatusAccepted)
}

type trackSearchRequest struct {
	Query string `json:"query"`
}

// trackSearch records a submitted search query
func (h *Handler) trackSearch(c *gin.Context) {
	var req trackSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	h.shopper.TrackSearch(c.Request.Context(), sessionID(c), req.Query)
	c.Status(http.StatusAccepted)
}

type trackPreferenceRequest struct {
	Kind  string `json:"kind" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// trackPreference increments a preference counter
func (h *Handler) trackPreference(c *gin.Context) {
	var req trackPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	kind := models.PreferenceKind(req.Kind)
	if !models.ValidPreferenceKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "kind must be one of scent, brand, occasion, mood",
		})
		return
	}

	h.shopper.TrackPreference(c.Request.Context(), sessionID(c), kind, req.Value)
	c.Status(http.StatusAccepted)
}

// clearHistory wipes all preference state for the session
func (h *Handler) clearHistory(c *gin.Context) {
	h.shopper.ClearHistory(c.Request.Context(), sessionID(c))
	c.Status(http.StatusNoContent)
}

// topPreferences returns the highest-counted keys for a preference kind
func (h *Handler) topPreferences(c *gin.Context) {
	kind := models.PreferenceKind(c.Query("kind"))
	if !models.ValidPreferenceKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "kind must be one of scent, brand, occasion, mood",
		})
		return
	}
	limit := intQuery(c, "limit", 5)

	c.JSON(http.StatusOK, gin.H{
		"kind":        kind,
		"preferences": h.shopper.TopPreferences(c.Request.Context(), sessionID(c), kind, limit),
	})
}

// recentSearches returns the most recent search queries
func (h *Handler) recentSearches(c *gin.Context) {
	limit := intQuery(c, "limit", 5)
	c.JSON(http.StatusOK, gin.H{
		"searches": h.shopper.RecentSearches(c.Request.Context(), sessionID(c), limit),
	})
}

// recentlyViewed returns the most recently viewed products
func (h *Handler) recentlyViewed(c *gin.Context) {
	limit := intQuery(c, "limit", 10)
	c.JSON(http.StatusOK, gin.H{
		"viewed": h.shopper.RecentlyViewed(c.Request.Context(), sessionID(c), limit),
	})
}

// recommendations returns a ranked product list for a mood or season tag
func (h *Handler) recommendations(c *gin.Context) {
	limit := intQuery(c, "limit", 8)

	var products []models.Product
	if season := c.Query("season"); season != "" {
		products = h.shopper.RecommendForSeason(c.Request.Context(), season, limit)
	} else {
		products = h.shopper.RecommendForMood(c.Request.Context(), c.Query("mood"), limit)
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	val, err := strconv.Atoi(c.Query(key))
	if err != nil || val <= 0 {
		return fallback
	}
	return val
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
