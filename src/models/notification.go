package models

import (
	"carhub/src/types"

	"github.com/google/uuid"
)

// Notification is one row of the outbox: a pending side-effect task written in
// the same transaction as the reservation it belongs to, delivered later by
// the dispatch worker.
type Notification struct {
	ID            uuid.UUID                 `gorm:"primarykey;type:uuid" json:"id"`
	ReservationID uint                      `json:"reservation_id,omitempty"`
	Channel       types.NotificationChannel `json:"channel,omitempty"`
	Recipient     string                    `json:"recipient,omitempty"`
	Subject       string                    `json:"subject,omitempty"`
	Payload       *types.JSONB              `gorm:"type:jsonb" json:"payload,omitempty"`
	Status        types.NotificationStatus  `gorm:"default:'pending'" json:"status,omitempty"`
	Attempts      uint                      `json:"attempts,omitempty"`
	LastError     string                    `json:"last_error,omitempty"`

	Reservation *Reservation `gorm:"foreignKey:reservation_id" json:"-"`

	types.Timestamps
}
