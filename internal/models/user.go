package models

// User is a barbershop staff member allowed to manage payments.
type User struct {
	Entity
	Name         string `json:"name"`
	Phone        string `gorm:"uniqueIndex" json:"phone"`
	Role         string `gorm:"default:staff" json:"role"`
	PasswordHash string `json:"-"`
}
