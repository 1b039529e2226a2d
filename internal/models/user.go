package models

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// User represents a user of the store.
type User struct {
	Base
	Username string `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email    string `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password string `json:"password,omitempty" gorm:"type:varchar(255)" validate:"required,min=6"`
	Name     string `json:"name" gorm:"type:varchar(150)" validate:"omitempty,max=150"`
	Phone    string `json:"phone" gorm:"type:varchar(32)" validate:"omitempty,max=32"`
	Role     Role   `json:"role" gorm:"type:varchar(16);default:buyer" validate:"omitempty,oneof=buyer seller"`
}

// CanSell reports whether the user may manage catalog entries.
func (u *User) CanSell() bool {
	return u.Role == RoleSeller || u.Role == RoleAdmin
}
