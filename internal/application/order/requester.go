package order

// Role is supplied by the external auth layer alongside the user ID.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Requester identifies the authenticated caller of an operation.
type Requester struct {
	UserID string
	Role   Role
}

func (r Requester) IsAdmin() bool { return r.Role == RoleAdmin }

// CanAccess reports whether the requester may read or cancel an order owned
// by ownerID.
func (r Requester) CanAccess(ownerID string) bool {
	return r.IsAdmin() || (r.UserID != "" && r.UserID == ownerID)
}
