package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xraph/billing/id"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/types"
)

type lineItemRequest struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Type        string `json:"type"`
}

type createInvoiceRequest struct {
	CustomerID      string            `json:"customer_id"`
	ServiceRef      string            `json:"service_ref"`
	Currency        string            `json:"currency"`
	DueDate         string            `json:"due_date"`
	RequiresDeposit bool              `json:"requires_deposit"`
	DepositAmount   string            `json:"deposit_amount"`
	Notes           string            `json:"notes"`
	Items           []lineItemRequest `json:"items"`
}

// CreateInvoice handles POST /invoices. Amounts are major-unit decimal
// strings ("1500.00").
func (h *Handler) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "malformed invoice payload")
		return
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = h.engine.Currency()
	}

	inv := &invoice.Invoice{
		CustomerID:      strings.TrimSpace(req.CustomerID),
		ServiceRef:      strings.TrimSpace(req.ServiceRef),
		Currency:        currency,
		RequiresDeposit: req.RequiresDeposit,
		Notes:           req.Notes,
	}

	if req.DueDate != "" {
		due, err := time.Parse(time.DateOnly, req.DueDate)
		if err != nil {
			invalidRequest(c, "due_date must be YYYY-MM-DD")
			return
		}
		inv.DueDate = due
	}

	if req.DepositAmount != "" {
		dep, err := types.ParseMoney(req.DepositAmount, currency)
		if err != nil {
			invalidRequest(c, "invalid deposit_amount")
			return
		}
		inv.DepositAmount = dep
	}

	for _, it := range req.Items {
		price, err := types.ParseMoney(it.UnitPrice, currency)
		if err != nil {
			invalidRequest(c, "invalid unit_price")
			return
		}
		inv.LineItems = append(inv.LineItems, invoice.LineItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   price,
			Type:        invoice.ItemType(strings.ToLower(strings.TrimSpace(it.Type))),
		})
	}

	if err := h.engine.CreateInvoice(c.Request.Context(), inv); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": inv})
}

// ListInvoices handles GET /invoices. Customers only see their own.
func (h *Handler) ListInvoices(c *gin.Context) {
	var query struct {
		CustomerID string `form:"customer_id"`
		Status     string `form:"status"`
		Limit      int    `form:"limit"`
		Offset     int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidRequest(c, "invalid query")
		return
	}

	invoices, err := h.engine.ListInvoices(c.Request.Context(), actorFrom(c), invoice.ListOpts{
		CustomerID: strings.TrimSpace(query.CustomerID),
		Status:     invoice.Status(strings.ToLower(query.Status)),
		Limit:      query.Limit,
		Offset:     query.Offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoices, "count": len(invoices)})
}

// ListOverdueInvoices handles GET /invoices/overdue.
func (h *Handler) ListOverdueInvoices(c *gin.Context) {
	invoices, err := h.engine.ListOverdueInvoices(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

// GetInvoice handles GET /invoices/:id.
func (h *Handler) GetInvoice(c *gin.Context) {
	invID, ok := invoiceParam(c)
	if !ok {
		return
	}
	inv, err := h.engine.GetInvoice(c.Request.Context(), invID, actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": inv})
}

// GetInvoiceSummary handles GET /invoices/:id/summary.
func (h *Handler) GetInvoiceSummary(c *gin.Context) {
	invID, ok := invoiceParam(c)
	if !ok {
		return
	}
	summary, err := h.engine.InvoiceSummary(c.Request.Context(), invID, actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// ListInvoicePayments handles GET /invoices/:id/payments.
func (h *Handler) ListInvoicePayments(c *gin.Context) {
	invID, ok := invoiceParam(c)
	if !ok {
		return
	}
	payments, err := h.engine.InvoicePayments(c.Request.Context(), invID, actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments})
}

// SendInvoice handles POST /invoices/:id/send.
func (h *Handler) SendInvoice(c *gin.Context) {
	invID, ok := invoiceParam(c)
	if !ok {
		return
	}
	inv, err := h.engine.SendInvoice(c.Request.Context(), invID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": inv})
}

// VoidInvoice handles POST /invoices/:id/void.
func (h *Handler) VoidInvoice(c *gin.Context) {
	invID, ok := invoiceParam(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c, "malformed void payload")
			return
		}
	}
	inv, err := h.engine.VoidInvoice(c.Request.Context(), invID, strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": inv})
}

func invoiceParam(c *gin.Context) (id.InvoiceID, bool) {
	invID, err := id.ParseInvoiceID(strings.TrimSpace(c.Param("id")))
	if err != nil {
		abort(c, http.StatusNotFound, "not_found", "invoice not found")
		return id.InvoiceID{}, false
	}
	return invID, true
}
