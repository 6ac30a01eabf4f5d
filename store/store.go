// Package store defines the unified persistence interface for billing
// records. Backends live in the sub-packages.
package store

import (
	"context"

	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/schedule"
)

// Store is the unified storage interface for all billing entities.
// Method names are prefixed per entity so the sub-interfaces embed
// without collisions.
type Store interface {
	invoice.Store
	payment.Store
	schedule.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
