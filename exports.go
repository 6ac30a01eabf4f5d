package billing

import "github.com/xraph/billing/types"

// Money is re-exported from the types package.
type Money = types.Money

// Entity is re-exported from the types package.
type Entity = types.Entity

// Money constructors.
var (
	LKR        = types.LKR
	USD        = types.USD
	NewMoney   = types.New
	ParseMoney = types.ParseMoney
	Zero       = types.Zero
)
