package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xraph/billing/id"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/schedule"
)

type createScheduleRequest struct {
	InvoiceID     string `json:"invoice_id"`
	Amount        string `json:"amount"`
	ScheduledDate string `json:"scheduled_date"`
}

// CreateSchedule handles POST /schedules.
func (h *Handler) CreateSchedule(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "malformed schedule payload")
		return
	}

	date, err := time.Parse(time.DateOnly, strings.TrimSpace(req.ScheduledDate))
	if err != nil {
		invalidRequest(c, "scheduled_date must be YYYY-MM-DD")
		return
	}

	invID, amount, ok := h.invoiceAmount(c, req.InvoiceID, req.Amount)
	if !ok {
		return
	}

	sp, err := h.engine.SchedulePayment(c.Request.Context(), invID, amount, date, actorFrom(c).ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": sp})
}

// ListSchedules handles GET /schedules. Customers see their own; staff may
// filter by invoice_id, customer_id or status.
func (h *Handler) ListSchedules(c *gin.Context) {
	ctx := c.Request.Context()
	actor := actorFrom(c)
	schedules := h.engine.Schedules()

	var (
		items []*schedule.ScheduledPayment
		err   error
	)
	switch {
	case !actor.Staff():
		items, err = schedules.ListByCustomer(ctx, actor.ID)
	case c.Query("invoice_id") != "":
		invID, perr := id.ParseInvoiceID(c.Query("invoice_id"))
		if perr != nil {
			invalidRequest(c, "invalid invoice_id")
			return
		}
		items, err = schedules.ListByInvoice(ctx, invID)
	case c.Query("customer_id") != "":
		items, err = schedules.ListByCustomer(ctx, c.Query("customer_id"))
	case c.Query("status") != "":
		items, err = schedules.ListByStatus(ctx, schedule.Status(strings.ToLower(c.Query("status"))))
	default:
		items, err = schedules.ListByStatus(ctx, schedule.StatusScheduled)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// ListDueSchedules handles GET /schedules/due?date=YYYY-MM-DD. With
// overdue=true it includes earlier dates still pending.
func (h *Handler) ListDueSchedules(c *gin.Context) {
	date := h.engine.Now()
	if raw := c.Query("date"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			invalidRequest(c, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}

	schedules := h.engine.Schedules()
	var (
		items []*schedule.ScheduledPayment
		err   error
	)
	if c.Query("overdue") == "true" {
		items, err = schedules.Overdue(c.Request.Context(), date)
	} else {
		items, err = schedules.DueOn(c.Request.Context(), date)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// ExecuteSchedule handles POST /schedules/:id/execute.
func (h *Handler) ExecuteSchedule(c *gin.Context) {
	spID, ok := scheduleParam(c)
	if !ok {
		return
	}
	var req struct {
		Method string `json:"method"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "malformed execute payload")
		return
	}

	sp, p, err := h.engine.ExecuteScheduledPayment(c.Request.Context(), spID, payment.Method(strings.ToLower(req.Method)))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"scheduled_payment": sp, "payment": p}})
}

// CancelSchedule handles POST /schedules/:id/cancel.
func (h *Handler) CancelSchedule(c *gin.Context) {
	spID, ok := scheduleParam(c)
	if !ok {
		return
	}
	sp, err := h.engine.CancelScheduledPayment(c.Request.Context(), spID, actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sp})
}

func scheduleParam(c *gin.Context) (id.ScheduledPaymentID, bool) {
	spID, err := id.ParseScheduledPaymentID(strings.TrimSpace(c.Param("id")))
	if err != nil {
		abort(c, http.StatusNotFound, "not_found", "scheduled payment not found")
		return id.ScheduledPaymentID{}, false
	}
	return spID, true
}
