package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"booking-service/internal/domain"
	"booking-service/internal/models"
	"booking-service/internal/service"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderDirectory serves the listing and aggregate queries that bypass the
// per-order service paths.
type OrderDirectory interface {
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, int, error)
	GetUserOrderStats(ctx context.Context, userID int64) (*store.UserOrderStats, error)
}

// Handler contains HTTP handlers
type Handler struct {
	booking      *service.BookingService
	lifecycle    *service.LifecycleService
	availability *service.AvailabilityService
	directory    OrderDirectory
}

// NewHandler creates a new HTTP handler
func NewHandler(
	booking *service.BookingService,
	lifecycle *service.LifecycleService,
	availability *service.AvailabilityService,
	directory OrderDirectory,
) *Handler {
	return &Handler{
		booking:      booking,
		lifecycle:    lifecycle,
		availability: availability,
		directory:    directory,
	}
}

// SetupRoutes sets up HTTP routes. Identity arrives in X-User-ID and
// X-User-Role headers, set by the gateway in front of this service.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/bookings", h.createBooking)
		v1.GET("/bookings", h.listOwnBookings)
		v1.GET("/bookings/stats", h.bookingStats)
		v1.GET("/bookings/:id", h.getBooking)
		v1.PATCH("/bookings/:id", h.editBooking)
		v1.POST("/bookings/:id/cancel", h.cancelBooking)

		v1.GET("/schedules/:id/availability", h.scheduleAvailability)

		admin := v1.Group("/admin", requireStaff())
		{
			admin.GET("/orders", h.adminListOrders)
			admin.PUT("/orders/:id/status", h.adminSetStatus)
			admin.PUT("/orders/:id/comment", h.adminSetComment)
		}
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

// createBooking handles booking creation
func (h *Handler) createBooking(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req service.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}
	req.UserID = userID

	order, err := h.booking.AttemptBooking(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// getBooking returns one order with its seats. Owners see their own
// orders; staff see any.
func (h *Handler) getBooking(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.booking.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	if order.UserID != userID && !isStaff(c) {
		writeError(c, domain.AuthorizationError{Msg: "order belongs to another user"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// listOwnBookings lists the caller's own orders, filtered and paged.
func (h *Handler) listOwnBookings(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	f := filterFromQuery(c)
	f.UserID = userID

	orders, total, err := h.directory.ListOrders(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
	})
}

// bookingStats returns the caller's order totals.
func (h *Handler) bookingStats(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	stats, err := h.directory.GetUserOrderStats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// cancelBooking cancels the caller's own pending order.
func (h *Handler) cancelBooking(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.lifecycle.OwnerCancel(c.Request.Context(), orderID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// editBooking updates passenger and payment details of the caller's own
// pending order.
func (h *Handler) editBooking(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req service.OrderEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}
	req.OrderID = orderID
	req.UserID = userID

	order, err := h.lifecycle.OwnerEditPendingOrder(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// scheduleAvailability returns the advisory free-seat count for a schedule.
func (h *Handler) scheduleAvailability(c *gin.Context) {
	scheduleID, ok := pathID(c)
	if !ok {
		return
	}

	available, err := h.availability.Availability(c.Request.Context(), scheduleID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"schedule_id": scheduleID,
		"available":   available,
	})
}

// adminListOrders lists any user's orders, filtered and paged.
func (h *Handler) adminListOrders(c *gin.Context) {
	f := filterFromQuery(c)
	if userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64); err == nil {
		f.UserID = userID
	}

	orders, total, err := h.directory.ListOrders(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
	})
}

// adminSetStatus overrides an order's status.
func (h *Handler) adminSetStatus(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.lifecycle.StaffSetStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// adminSetComment sets or clears the staff annotation on an order.
func (h *Handler) adminSetComment(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.lifecycle.StaffEditComment(c.Request.Context(), orderID, req.Comment); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "comment": req.Comment})
}

func callerID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || userID < 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-ID header"})
		return 0, false
	}
	return userID, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func isStaff(c *gin.Context) bool {
	return c.GetHeader("X-User-Role") == "staff"
}

func requireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isStaff(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff role required"})
			return
		}
		c.Next()
	}
}

func filterFromQuery(c *gin.Context) store.OrderFilter {
	f := store.OrderFilter{
		Status:        c.Query("status"),
		PaymentMethod: c.Query("payment_method"),
		Code:          c.Query("code"),
		Departure:     c.Query("departure"),
		Arrival:       c.Query("arrival"),
		SortBy:        c.Query("sort_by"),
		SortDir:       c.Query("sort_dir"),
	}
	if t, err := time.Parse(time.RFC3339, c.Query("after")); err == nil {
		f.After = &t
	}
	if t, err := time.Parse(time.RFC3339, c.Query("before")); err == nil {
		f.Before = &t
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		f.Page = page
	}
	if perPage, err := strconv.Atoi(c.Query("per_page")); err == nil {
		f.PerPage = perPage
	}
	return f
}

// writeError maps a service error to an HTTP response. Typed domain errors
// get a stable shape per type; anything else is a 500.
func writeError(c *gin.Context, err error) {
	var (
		validationErr   domain.ValidationError
		notBookableErr  domain.NotBookableError
		capacityErr     domain.InsufficientCapacityError
		contentionErr   domain.ContentionError
		notFoundErr     domain.NotFoundError
		unauthorizedErr domain.AuthorizationError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
	case errors.As(err, &notBookableErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "schedule is not bookable",
			"reasons": notBookableErr.Reasons,
		})
	case errors.As(err, &capacityErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "not enough seats available",
			"requested": capacityErr.Requested,
			"available": capacityErr.Available,
		})
	case errors.As(err, &contentionErr):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "booking contention, please retry",
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{
			"error": notFoundErr.Error(),
		})
	case errors.As(err, &unauthorizedErr):
		c.JSON(http.StatusForbidden, gin.H{
			"error": unauthorizedErr.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal error",
		})
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
