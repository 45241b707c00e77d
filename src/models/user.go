package models

import "carhub/src/types"

type User struct {
	ID    uint           `gorm:"primarykey" json:"id"`
	UID   string         `gorm:"uniqueIndex" json:"uid,omitempty"`
	Email string         `json:"email,omitempty"`
	Name  string         `json:"name,omitempty"`
	Role  types.UserRole `gorm:"default:'buyer'" json:"role,omitempty"`

	Reservations []Reservation `gorm:"foreignKey:user_id" json:"reservations,omitempty"`
	Cars         []Car         `gorm:"foreignKey:seller_id" json:"cars,omitempty"`

	types.Timestamps
}
