package models

// Principal is the authenticated caller, taken from a verified access token.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
