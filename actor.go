package billing

// Role is the trust level of the party acting on the ledger. Identity is
// established upstream; the engine only compares identifiers.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Actor is the party performing an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Customer returns a customer actor.
func Customer(customerID string) Actor {
	return Actor{ID: customerID, Role: RoleCustomer}
}

// Staff reports whether the actor may see every customer's records.
func (a Actor) Staff() bool {
	return a.Role == RoleEmployee || a.Role == RoleAdmin
}

// CanAccess reports whether the actor may read records owned by customerID.
func (a Actor) CanAccess(customerID string) bool {
	return a.Staff() || (a.ID != "" && a.ID == customerID)
}
