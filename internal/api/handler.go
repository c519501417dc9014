package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"ticket-booking/internal/models"
	"ticket-booking/internal/service"
	"ticket-booking/internal/store"
	"ticket-booking/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers
type Handler struct {
	bookings *service.BookingService
	store    *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(bookings *service.BookingService, st *store.Store) *Handler {
	return &Handler{
		bookings: bookings,
		store:    st,
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
		v1.POST("/bookings", h.createBooking)
		v1.GET("/bookings/:number", h.getBooking)
		v1.POST("/bookings/:number/checkout", h.checkout)
		v1.POST("/bookings/:number/cancel", h.cancelBooking)
		v1.GET("/users/:id/bookings", h.listUserBookings)
		v1.GET("/events", h.listEvents)
		v1.POST("/events", h.createEvent)
		v1.GET("/events/:id", h.getEvent)
		v1.POST("/tickets/:number/use", h.useTicket)
		v1.GET("/admin/tasks/parked", h.listParkedTasks)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	if err := h.store.GetDB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createBooking reserves inventory and opens a pending booking.
func (h *Handler) createBooking(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  service.ReasonInvalidRequest,
			"detail": err.Error(),
		})
		return
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"booking_number": booking.BookingNumber,
		"status":         booking.Status,
		"payment_status": booking.PaymentStatus,
		"total_amount":   booking.TotalAmount,
		"expires_at":     booking.ExpiresAt(h.bookings.CheckoutTTL()),
	})
}

// getBooking returns a booking and its tickets, lazily expiring a stale
// checkout.
func (h *Handler) getBooking(c *gin.Context) {
	booking, tickets, err := h.bookings.GetBooking(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking": booking,
		"tickets": tickets,
	})
}

// checkout captures payment and confirms the booking.
func (h *Handler) checkout(c *gin.Context) {
	var instrument service.CardInstrument
	if err := c.ShouldBindJSON(&instrument); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  service.ReasonInvalidRequest,
			"detail": err.Error(),
		})
		return
	}

	booking, err := h.bookings.Checkout(c.Request.Context(), c.Param("number"), instrument)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_number": booking.BookingNumber,
		"status":         booking.Status,
		"payment_status": booking.PaymentStatus,
	})
}

type cancelRequest struct {
	RequesterID      int64 `json:"requester_id" binding:"required"`
	OperatorOverride bool  `json:"operator_override"`
}

// cancelBooking cancels on behalf of the requester, refunding if the booking
// was already paid.
func (h *Handler) cancelBooking(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  service.ReasonInvalidRequest,
			"detail": err.Error(),
		})
		return
	}

	booking, err := h.bookings.CancelBooking(c.Request.Context(), c.Param("number"), req.RequesterID, req.OperatorOverride)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_number": booking.BookingNumber,
		"status":         booking.Status,
		"payment_status": booking.PaymentStatus,
	})
}

// listUserBookings returns a user's bookings, newest first.
func (h *Handler) listUserBookings(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ReasonInvalidRequest})
		return
	}

	bookings, err := h.store.GetBookingsByUserID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (h *Handler) listEvents(c *gin.Context) {
	events, err := h.store.ListActiveEvents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type createEventRequest struct {
	Name          string          `json:"name" binding:"required"`
	Venue         string          `json:"venue" binding:"required"`
	StartsAt      time.Time       `json:"starts_at" binding:"required"`
	TotalCapacity int             `json:"total_capacity" binding:"required,min=1"`
	Price         decimal.Decimal `json:"price" binding:"required"`
}

// createEvent opens a new event with its full capacity available.
func (h *Handler) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  service.ReasonInvalidRequest,
			"detail": err.Error(),
		})
		return
	}

	event := &models.Event{
		Name:          req.Name,
		Venue:         req.Venue,
		StartsAt:      req.StartsAt,
		TotalCapacity: req.TotalCapacity,
		Price:         req.Price,
		Status:        models.EventStatusActive,
	}
	if err := h.store.CreateEvent(c.Request.Context(), event); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// useTicket marks a ticket as used at the venue gate. A second scan of the
// same ticket is rejected.
func (h *Handler) useTicket(c *gin.Context) {
	ticket, err := h.store.GetTicketByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": service.ReasonNotFound})
		return
	}

	used, err := h.store.MarkTicketUsed(c.Request.Context(), ticket.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !used {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "ticket_not_usable",
			"status": ticket.Status,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticket_number": ticket.TicketNumber,
		"status":        models.TicketStatusUsed,
	})
}

// listParkedTasks exposes the reconciliation queue: tasks that exhausted
// automatic retries and await operator review.
func (h *Handler) listParkedTasks(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs, err := h.store.ListParkedTasks(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	type parkedTask struct {
		TaskID        string    `json:"task_id"`
		TaskType      string    `json:"task_type"`
		CorrelationID string    `json:"correlation_id"`
		Attempt       int       `json:"attempt"`
		LastError     string    `json:"last_error"`
		UpdatedAt     time.Time `json:"updated_at"`
	}
	tasks := make([]parkedTask, 0, len(runs))
	for _, run := range runs {
		tasks = append(tasks, parkedTask{
			TaskID:        run.TaskID,
			TaskType:      run.TaskType,
			CorrelationID: run.CorrelationID,
			Attempt:       run.Attempt,
			LastError:     run.LastError,
			UpdatedAt:     run.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// getEvent returns an event's public availability.
func (h *Handler) getEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ReasonInvalidRequest})
		return
	}

	event, err := h.store.GetEventByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// respondError translates domain errors into status codes and reason
// categories.
func respondError(c *gin.Context, err error) {
	reason := service.Reason(err)

	status := http.StatusInternalServerError
	switch reason {
	case service.ReasonNotFound:
		status = http.StatusNotFound
	case service.ReasonSoldOut, service.ReasonInsufficientInventory,
		service.ReasonNotCancellable, service.ReasonExpired,
		service.ReasonCancelled:
		status = http.StatusConflict
	case service.ReasonEventNotActive, service.ReasonInvalidRequest:
		status = http.StatusBadRequest
	case service.ReasonUnauthorized:
		status = http.StatusForbidden
	case service.ReasonPaymentDeclined:
		status = http.StatusPaymentRequired
	}

	body := gin.H{"error": reason}
	if status != http.StatusInternalServerError {
		body["detail"] = err.Error()
	} else if !errors.Is(err, store.ErrInvariantViolation) {
		body["detail"] = "internal error"
	}

	c.JSON(status, body)
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
