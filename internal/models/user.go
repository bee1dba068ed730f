package models

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents an authenticated customer or administrator.
type User struct {
	BaseModel
	Name         string        `json:"name"`
	Email        string        `gorm:"uniqueIndex" json:"email"`
	Phone        string        `json:"phone"`
	PasswordHash string        `json:"-"`
	Role         string        `gorm:"default:customer" json:"role"`
	OrderCount   int           `gorm:"not null;default:0" json:"order_count"`
	Addresses    []UserAddress `json:"addresses,omitempty"`
}

// IsAdmin reports whether the user may access admin endpoints.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
