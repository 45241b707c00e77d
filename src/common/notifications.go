package common

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"carhub/src/config"
	"carhub/src/db"
	"carhub/src/lib"
	"carhub/src/models"
	"carhub/src/types"

	"github.com/tidwall/gjson"
	"google.golang.org/api/calendar/v3"
	"gorm.io/gorm"
)

type ChannelOutcome struct {
	Channel   types.NotificationChannel `json:"channel"`
	Recipient string                    `json:"recipient,omitempty"`
	Status    types.NotificationStatus  `json:"status"`
	Reason    string                    `json:"reason,omitempty"`
}

type DispatchReport struct {
	ReservationID uint             `json:"reservation_id"`
	Outcomes      []ChannelOutcome `json:"outcomes"`
}

func (r *DispatchReport) Sent() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == types.NOTIFICATION_SENT {
			n++
		}
	}
	return n
}

func (r *DispatchReport) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == types.NOTIFICATION_FAILED {
			n++
		}
	}
	return n
}

// Dispatch delivers the pending outbox rows enqueued for a reservation. Each
// channel is attempted independently: one failing sender never stops the
// others, and the caller's booking result does not depend on the report.
func Dispatch(reservationId uint) DispatchReport {
	report := DispatchReport{ReservationID: reservationId}
	db := db.GetDb()
	var rows []models.Notification
	err := db.
		Model(&models.Notification{}).
		Where(&models.Notification{ReservationID: reservationId}).
		Where("status IN ?", []string{string(types.NOTIFICATION_PENDING), string(types.NOTIFICATION_SKIPPED)}).
		Find(&rows).
		Error
	if err != nil {
		log.Printf("Error loading outbox rows for reservation [%d]: %s\n", reservationId, err.Error())
		return report
	}
	for i := range rows {
		report.Outcomes = append(report.Outcomes, dispatchRow(db, &rows[i]))
	}
	return report
}

func dispatchRow(db *gorm.DB, n *models.Notification) ChannelOutcome {
	outcome := ChannelOutcome{Channel: n.Channel, Recipient: n.Recipient}
	if n.Status == types.NOTIFICATION_SKIPPED {
		outcome.Status = types.NOTIFICATION_SKIPPED
		outcome.Reason = n.LastError
		return outcome
	}

	// Claim the row before sending. Attempts doubles as a version: a
	// concurrent dispatcher that got here first already bumped it, so this
	// update matches zero rows and the row is delivered once.
	claim := db.
		Model(&models.Notification{}).
		Where("id = ? AND attempts = ?", n.ID, n.Attempts).
		Where("status IN ?", []string{string(types.NOTIFICATION_PENDING), string(types.NOTIFICATION_SENDING)}).
		Updates(map[string]any{"status": types.NOTIFICATION_SENDING, "attempts": n.Attempts + 1})
	if claim.Error != nil {
		log.Printf("[outbox] Error claiming notification %s: %s\n", n.ID.String(), claim.Error.Error())
		outcome.Status = types.NOTIFICATION_PENDING
		outcome.Reason = claim.Error.Error()
		return outcome
	}
	if claim.RowsAffected == 0 {
		outcome.Status = types.NOTIFICATION_PENDING
		outcome.Reason = "claimed by another dispatcher"
		return outcome
	}

	sendErr := sendNotification(n)
	updates := map[string]any{}
	if sendErr != nil {
		log.Printf("[outbox] %s notification %s failed (attempt %d): %s\n", n.Channel, n.ID.String(), n.Attempts+1, sendErr.Error())
		outcome.Status = types.NOTIFICATION_FAILED
		outcome.Reason = sendErr.Error()
		updates["last_error"] = sendErr.Error()
		if n.Attempts+1 >= config.OUTBOX_MAX_ATTEMPTS {
			updates["status"] = types.NOTIFICATION_FAILED
		} else {
			updates["status"] = types.NOTIFICATION_PENDING
		}
	} else {
		outcome.Status = types.NOTIFICATION_SENT
		updates["status"] = types.NOTIFICATION_SENT
		updates["last_error"] = ""
	}
	if err := db.Model(&models.Notification{}).Where("id = ?", n.ID).Updates(updates).Error; err != nil {
		log.Printf("[outbox] Error updating notification %s: %s\n", n.ID.String(), err.Error())
	}
	return outcome
}

func sendNotification(n *models.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}
	switch n.Channel {
	case types.CHANNEL_EMAIL:
		return sendEmailNotification(n, payload)
	case types.CHANNEL_CALENDAR:
		return sendCalendarNotification(n, payload)
	default:
		return fmt.Errorf("unknown notification channel: %s", n.Channel)
	}
}

func sendEmailNotification(n *models.Notification, payload []byte) error {
	input := &lib.SendMailInput{
		From:     os.Getenv("EMAIL_FROM"),
		FromName: os.Getenv("EMAIL_FROM_NAME"),
		To:       []string{n.Recipient},
		Subject:  n.Subject,
		Body:     gjson.GetBytes(payload, "body").String(),
		Html:     gjson.GetBytes(payload, "html").Bool(),
	}
	if err := lib.SendMail(input); err != nil {
		return err
	}
	log.Printf("[MAILER]: an email has been sent to %s\n", n.Recipient)
	return nil
}

func sendCalendarNotification(n *models.Notification, payload []byte) error {
	calId := os.Getenv("CALENDAR_ID")
	if calId == "" {
		calId = "primary"
	}
	tz := os.Getenv("CALENDAR_TIMEZONE")
	e := &calendar.Event{
		Summary:     gjson.GetBytes(payload, "summary").String(),
		Description: gjson.GetBytes(payload, "description").String(),
		Start: &calendar.EventDateTime{
			DateTime: gjson.GetBytes(payload, "start").String(),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: gjson.GetBytes(payload, "end").String(),
			TimeZone: tz,
		},
		Attendees: []*calendar.EventAttendee{
			{
				Email:       gjson.GetBytes(payload, "attendee").String(),
				DisplayName: gjson.GetBytes(payload, "attendee_name").String(),
			},
		},
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: config.REMINDER_LEAD_MINUTES},
			},
		},
	}
	eventId, err := lib.AddCalendarEvent(calId, e)
	if err != nil {
		return err
	}
	log.Printf("[CALENDAR]: event %s added for notification %s\n", eventId, n.ID.String())
	return nil
}

// DispatchOutbox is one worker tick: pick up pending rows that still have
// attempts left and deliver them. Claims abandoned by a crashed dispatcher are
// reclaimed once they are stale. Rows enqueued by a transaction that rolled
// back are never seen here, which is the point of the outbox.
func DispatchOutbox() {
	db := db.GetDb()
	staleBefore := time.Now().Add(-config.OUTBOX_RECLAIM_MINUTES * time.Minute)
	var rows []models.Notification
	err := db.
		Model(&models.Notification{}).
		Where("status = ? OR (status = ? AND updated_at < ?)",
			types.NOTIFICATION_PENDING, types.NOTIFICATION_SENDING, staleBefore).
		Where("attempts < ?", config.OUTBOX_MAX_ATTEMPTS).
		Order("created_at asc").
		Limit(50).
		Find(&rows).
		Error
	if err != nil {
		log.Printf("[outbox] Error polling notifications: %s\n", err.Error())
		return
	}
	for i := range rows {
		dispatchRow(db, &rows[i])
	}
}

// StartOutboxWorker polls the outbox on an interval. Retries ride on the poll
// cadence instead of an inline backoff loop.
func StartOutboxWorker(interval time.Duration) error {
	_, err := lib.CreateCronJob(DispatchOutbox, interval)
	return err
}

// ScheduleReminder enqueues a reminder email shortly before the appointment.
// Past lead times schedule nothing.
func ScheduleReminder(r *models.Reservation, carTitle string, buyerEmail string) {
	if buyerEmail == "" {
		return
	}
	runsAt := r.StartsAt.Add(-config.REMINDER_LEAD_MINUTES * time.Minute)
	if runsAt.Before(time.Now()) {
		return
	}
	reservationId := r.ID
	startsAt := r.StartsAt
	_, err := lib.CreateOneTimeJob(func() {
		db := db.GetDb()
		// Re-read: the reservation may have been cancelled since.
		var current models.Reservation
		if err := db.Where(&models.Reservation{ID: reservationId}).First(&current).Error; err != nil {
			log.Printf("[reminder] reservation [%d] not found: %s\n", reservationId, err.Error())
			return
		}
		if current.Status != types.RESERVATION_CONFIRMED {
			return
		}
		buyer := models.User{Email: buyerEmail}
		car := models.Car{Title: carTitle}
		rows := models.BuildReservationNotifications(&current, &car, &buyer, &models.User{}, "coming up")
		n := rows[0]
		if err := db.Create(&n).Error; err != nil {
			log.Printf("[reminder] Error enqueueing reminder for reservation [%d]: %s\n", reservationId, err.Error())
			return
		}
		go DispatchOutbox()
	}, runsAt)
	if err != nil {
		log.Printf("[reminder] Error scheduling reminder for reservation [%d] at %s: %s\n", r.ID, startsAt.String(), err.Error())
	}
}
