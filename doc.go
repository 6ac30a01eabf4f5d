// Package billing reconciles invoices with the payments applied against
// them.
//
// The engine keeps three records in step: invoices (with line items and an
// optional deposit/final split), payments, and scheduled installments. An
// invoice's paid total is never stored as a counter; it is recomputed from
// its successful payments every time the invoice is read or changed, and
// the status is derived from that total and the due date:
//
//	draft -> sent -> partially_paid -> paid
//	           \-> overdue (due date passed, balance outstanding)
//	any unpaid state -> void
//
// # Quick Start
//
//	e := billing.New(memory.New(),
//	    billing.WithGateway(gateway.Config{
//	        MerchantID:     "1211149",
//	        MerchantSecret: secret,
//	        NotifyURL:      "https://example.com/webhooks/payhere",
//	    }),
//	)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
//	inv := &invoice.Invoice{
//	    CustomerID: "cus_42",
//	    LineItems: []invoice.LineItem{
//	        {Description: "Brake service", Quantity: 1, UnitPrice: billing.LKR(700000), Type: invoice.ItemLabor},
//	    },
//	}
//	_ = e.CreateInvoice(ctx, inv)
//	_, _ = e.SendInvoice(ctx, inv.ID)
//	p, err := e.ApplyDirectPayment(ctx, inv.ID, billing.LKR(700000), payment.MethodCash, "cus_42")
//
// # Gateway payments
//
// InitiateGatewayPayment records a pending payment and returns a signed
// checkout payload. The gateway later posts a notification, which
// ProcessGatewayNotification verifies and applies exactly once; redelivered
// notifications are recognised and ignored.
//
// # Concurrency
//
// Every read-check-write sequence on an invoice runs under a per-invoice
// lock held by the Engine, and payment settlement is a conditional update
// in the store that only succeeds from pending. Run a single Engine per
// database, or route all writes for an invoice to the same instance.
//
// All monetary values are integer minor units (see types.Money).
package billing
