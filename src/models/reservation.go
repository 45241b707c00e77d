package models

import (
	"time"

	"carhub/src/types"
)

type Reservation struct {
	ID              uint                    `gorm:"primarykey" json:"id"`
	CarID           uint                    `json:"car_id,omitempty"`
	UserID          uint                    `json:"user_id,omitempty"`
	StartsAt        time.Time               `json:"starts_at,omitempty"`
	DurationMinutes uint                    `json:"duration_minutes,omitempty"`
	Message         string                  `json:"message,omitempty"`
	Status          types.ReservationStatus `gorm:"default:'confirmed'" json:"status,omitempty"`

	Car  *Car  `gorm:"foreignKey:car_id" json:"car,omitempty"`
	User *User `gorm:"foreignKey:user_id" json:"user,omitempty"`

	types.Timestamps
}

// EndsAt is the exclusive end of the held slot.
func (r *Reservation) EndsAt() time.Time {
	return r.StartsAt.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// Overlaps reports whether [start, end) intersects this reservation's slot.
// Intervals are inclusive-start, exclusive-end: back-to-back slots do not
// overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartsAt.Before(end) && start.Before(r.EndsAt())
}
