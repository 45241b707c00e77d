package models

import (
	"fmt"
	"time"

	"carhub/src/types"

	"github.com/google/uuid"
)

const notificationTimeFormat = "Mon, 02 Jan 2006 15:04 MST"

// BuildReservationNotifications produces the outbox rows for a booked slot:
// buyer email, seller email, and one calendar event. Rows without a recipient
// are written as skipped so the dispatch report still accounts for them.
func BuildReservationNotifications(r *Reservation, car *Car, buyer *User, seller *User, kind string) []Notification {
	when := r.StartsAt.Format(notificationTimeFormat)
	notifs := []Notification{}

	buyerBody := fmt.Sprintf(
		"Your test-drive appointment for %s is %s.\nWhen: %s (%d minutes)\n",
		car.Title, kind, when, r.DurationMinutes,
	)
	notifs = append(notifs, emailNotification(r.ID, buyer.Email,
		fmt.Sprintf("Appointment %s: %s", kind, car.Title), buyerBody))

	sellerBody := fmt.Sprintf(
		"%s booked a test-drive for your listing %s.\nWhen: %s (%d minutes)\nMessage: %s\n",
		buyer.Name, car.Title, when, r.DurationMinutes, r.Message,
	)
	notifs = append(notifs, emailNotification(r.ID, seller.Email,
		fmt.Sprintf("New appointment for %s", car.Title), sellerBody))

	notifs = append(notifs, calendarNotification(r, car, buyer))
	return notifs
}

// BuildCancellationNotifications produces the outbox row for a cancelled
// reservation: a buyer email only, mirroring the booking confirmation shape.
func BuildCancellationNotifications(r *Reservation, car *Car, buyer *User) []Notification {
	when := r.StartsAt.Format(notificationTimeFormat)
	body := fmt.Sprintf(
		"Your test-drive appointment for %s on %s has been cancelled.\n",
		car.Title, when,
	)
	return []Notification{
		emailNotification(r.ID, buyer.Email, fmt.Sprintf("Appointment cancelled: %s", car.Title), body),
	}
}

func emailNotification(reservationId uint, recipient, subject, body string) Notification {
	n := Notification{
		ID:            uuid.New(),
		ReservationID: reservationId,
		Channel:       types.CHANNEL_EMAIL,
		Recipient:     recipient,
		Subject:       subject,
		Status:        types.NOTIFICATION_PENDING,
		Payload: &types.JSONB{
			"body": body,
			"html": false,
		},
	}
	if recipient == "" {
		n.Status = types.NOTIFICATION_SKIPPED
		n.LastError = "missing recipient"
	}
	return n
}

func calendarNotification(r *Reservation, car *Car, buyer *User) Notification {
	n := Notification{
		ID:            uuid.New(),
		ReservationID: r.ID,
		Channel:       types.CHANNEL_CALENDAR,
		Recipient:     buyer.Email,
		Subject:       fmt.Sprintf("Test drive: %s", car.Title),
		Status:        types.NOTIFICATION_PENDING,
		Payload: &types.JSONB{
			"summary":       fmt.Sprintf("Test drive: %s", car.Title),
			"description":   fmt.Sprintf("Test-drive appointment for %s with %s", car.Title, buyer.Name),
			"start":         r.StartsAt.Format(time.RFC3339),
			"end":           r.EndsAt().Format(time.RFC3339),
			"attendee":      buyer.Email,
			"attendee_name": buyer.Name,
		},
	}
	if buyer.Email == "" {
		n.Status = types.NOTIFICATION_SKIPPED
		n.LastError = "missing recipient"
	}
	return n
}
