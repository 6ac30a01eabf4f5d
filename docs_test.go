package billing_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/billing"
	"github.com/xraph/billing/gateway"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/store/memory"
	"github.com/xraph/billing/types"
)

// TestDocumentationExamples keeps the package documentation examples honest.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Memory store for the demo; use PostgreSQL in production.
		store := memory.New()

		engine := billing.New(store,
			billing.WithLogger(slog.Default()),
			billing.WithGateway(gateway.Config{
				MerchantID:     "1211149",
				MerchantSecret: "c2VjcmV0",
				Sandbox:        true,
				NotifyURL:      "https://example.com/billing/webhooks/payhere",
			}),
		)

		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		inv := &invoice.Invoice{
			CustomerID:      "cus_123",
			ServiceRef:      "job_42",
			RequiresDeposit: true,
			LineItems: []invoice.LineItem{
				{Description: "Engine repair", Quantity: 1, UnitPrice: types.LKR(1500000), Type: invoice.ItemLabor},
				{Description: "Spark plugs", Quantity: 4, UnitPrice: types.LKR(125000), Type: invoice.ItemParts},
			},
		}
		if err := engine.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("Failed to create invoice: %v", err)
		}
		if _, err := engine.SendInvoice(ctx, inv.ID); err != nil {
			t.Fatalf("Failed to send invoice: %v", err)
		}

		// Deposit in cash.
		if _, err := engine.ApplyDirectPayment(ctx, inv.ID, inv.DepositAmount, payment.MethodCash, "cus_123"); err != nil {
			t.Fatalf("Failed to apply deposit: %v", err)
		}

		// Remainder by card through the hosted checkout.
		params, err := engine.InitiateGatewayPayment(ctx, inv.ID, inv.FinalAmount, gateway.Customer{
			CustomerID: "cus_123",
			FirstName:  "Kasun",
			Email:      "kasun@example.com",
		})
		if err != nil {
			t.Fatalf("Failed to initiate checkout: %v", err)
		}
		t.Logf("POST to %s with hash %s", params.CheckoutURL, params.Hash)

		// The gateway later posts the notification to NotifyURL.
		n := gateway.SignNotification(gateway.Notification{
			MerchantID: params.MerchantID,
			OrderID:    params.OrderID,
			PaymentID:  "320025071279",
			Amount:     params.Amount,
			Currency:   params.Currency,
			StatusCode: gateway.StatusCodeSuccess,
		}, "c2VjcmV0")
		if _, err := engine.ProcessGatewayNotification(ctx, n); err != nil {
			t.Fatalf("Failed to process notification: %v", err)
		}

		summary, err := engine.InvoiceSummary(ctx, inv.ID, billing.Customer("cus_123"))
		if err != nil {
			t.Fatalf("Failed to summarize invoice: %v", err)
		}
		if summary.Status != invoice.StatusPaid {
			t.Errorf("Expected paid invoice, got %s", summary.Status)
		}
		t.Logf("Invoice %s: paid %s of %s", summary.Number, summary.TotalPaid, summary.Amount)
	})

	t.Run("InstallmentExample", func(t *testing.T) {
		engine := billing.New(memory.New())
		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		inv := &invoice.Invoice{
			CustomerID: "cus_123",
			LineItems:  []invoice.LineItem{{Description: "Annual service", Quantity: 1, UnitPrice: types.LKR(900000)}},
		}
		if err := engine.CreateInvoice(ctx, inv); err != nil {
			t.Fatal(err)
		}
		if _, err := engine.SendInvoice(ctx, inv.ID); err != nil {
			t.Fatal(err)
		}

		for month := 1; month <= 3; month++ {
			date := time.Now().AddDate(0, month, 0)
			if _, err := engine.SchedulePayment(ctx, inv.ID, types.LKR(300000), date, "cus_123"); err != nil {
				t.Fatalf("Failed to schedule installment %d: %v", month, err)
			}
		}

		upcoming, err := engine.Schedules().ListByInvoice(ctx, inv.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(upcoming) != 3 {
			t.Errorf("Expected 3 installments, got %d", len(upcoming))
		}
	})
}
