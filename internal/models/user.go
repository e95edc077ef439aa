package models

// User represents a customer or staff account.
type User struct {
	BaseModel

	Name         string `gorm:"type:varchar(128);not null" json:"name"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`

	// Role is either "customer" or "admin". Admin connections are placed
	// into the admin broadcast room on connect.
	Role     string `gorm:"type:varchar(32);default:'customer';index" json:"role"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// IsAdmin reports whether the account has back-office access.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
