package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xraph/billing/gateway"
	"github.com/xraph/billing/id"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/types"
)

type createPaymentRequest struct {
	InvoiceID string `json:"invoice_id"`
	Amount    string `json:"amount"`
	Method    string `json:"method"`
}

// CreatePayment handles POST /payments: a direct payment by the acting
// customer. The amount is read in the invoice's currency.
func (h *Handler) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "malformed payment payload")
		return
	}

	invID, amount, ok := h.invoiceAmount(c, req.InvoiceID, req.Amount)
	if !ok {
		return
	}

	actor := actorFrom(c)
	method := payment.Method(strings.ToLower(strings.TrimSpace(req.Method)))
	p, err := h.engine.ApplyDirectPayment(c.Request.Context(), invID, amount, method, actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": p})
}

type initiatePaymentRequest struct {
	InvoiceID string `json:"invoice_id"`
	Amount    string `json:"amount"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

// InitiatePayment handles POST /payments/initiate and returns the signed
// checkout parameters for the hosted payment page.
func (h *Handler) InitiatePayment(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "malformed initiation payload")
		return
	}

	invID, amount, ok := h.invoiceAmount(c, req.InvoiceID, req.Amount)
	if !ok {
		return
	}

	params, err := h.engine.InitiateGatewayPayment(c.Request.Context(), invID, amount, gateway.Customer{
		CustomerID: actorFrom(c).ID,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      strings.TrimSpace(req.Email),
		Phone:      strings.TrimSpace(req.Phone),
		Address:    strings.TrimSpace(req.Address),
		City:       strings.TrimSpace(req.City),
		Country:    strings.TrimSpace(req.Country),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": params})
}

// Notify handles the gateway's form-encoded server callback. Authentic
// notifications are acknowledged with 200 even when they change nothing,
// so the gateway stops retrying.
func (h *Handler) Notify(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		invalidRequest(c, "malformed form body")
		return
	}

	n := gateway.ParseNotification(c.Request.PostForm)
	p, err := h.engine.ProcessGatewayNotification(c.Request.Context(), n)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"status": "ignored"}
	if p != nil {
		resp = gin.H{"status": string(p.Status), "payment_id": p.ID.String()}
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// PaymentHistory handles GET /payments. Staff may pass customer_id.
func (h *Handler) PaymentHistory(c *gin.Context) {
	actor := actorFrom(c)
	customerID := actor.ID
	if q := strings.TrimSpace(c.Query("customer_id")); q != "" && actor.Staff() {
		customerID = q
	}

	payments, err := h.engine.PaymentHistory(c.Request.Context(), customerID, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments})
}

// GetPayment handles GET /payments/:id.
func (h *Handler) GetPayment(c *gin.Context) {
	payID, err := id.ParsePaymentID(strings.TrimSpace(c.Param("id")))
	if err != nil {
		abort(c, http.StatusNotFound, "not_found", "payment not found")
		return
	}
	p, err := h.engine.GetPayment(c.Request.Context(), payID, actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

// invoiceAmount resolves the invoice visible to the actor and parses raw
// in its currency.
func (h *Handler) invoiceAmount(c *gin.Context, rawID, raw string) (id.InvoiceID, types.Money, bool) {
	invID, err := id.ParseInvoiceID(strings.TrimSpace(rawID))
	if err != nil {
		invalidRequest(c, "invalid invoice_id")
		return id.InvoiceID{}, types.Money{}, false
	}

	inv, err := h.engine.GetInvoice(c.Request.Context(), invID, actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return id.InvoiceID{}, types.Money{}, false
	}

	amount, err := types.ParseMoney(raw, inv.Currency)
	if err != nil {
		invalidRequest(c, "invalid amount")
		return id.InvoiceID{}, types.Money{}, false
	}
	return invID, amount, true
}
