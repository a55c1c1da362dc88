package shared

// Role is the coarse authorisation level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// Actor identifies who performs an operation. Services receive it as an
// explicit argument instead of reading request state.
type Actor struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Valid reports whether the actor refers to an authenticated user.
func (a Actor) Valid() bool {
	return a.UserID > 0 && a.Role.Valid()
}

// CanModify reports whether the actor may change a record created by ownerID.
func (a Actor) CanModify(ownerID int64) bool {
	return a.IsAdmin() || (a.UserID > 0 && a.UserID == ownerID)
}
