package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"carhub/src/config"
	"carhub/src/db"
	"carhub/src/lib"
	"carhub/src/models"
	"carhub/src/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeMailer struct {
	sent []*lib.SendMailInput
	err  error
}

func (f *fakeMailer) Send(input *lib.SendMailInput) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, input)
	return nil
}

type fakeCalendar struct {
	events []*calendar.Event
	err    error
}

func (f *fakeCalendar) InsertEvent(calId string, e *calendar.Event) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.events = append(f.events, e)
	return fmt.Sprintf("evt-%d", len(f.events)), nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	err = gdb.AutoMigrate(
		&models.User{},
		&models.Car{},
		&models.Reservation{},
		&models.Notification{},
	)
	require.NoError(t, err)
	db.NewDB(gdb)
	return gdb
}

func seedOutbox(t *testing.T, gdb *gorm.DB, sellerEmail string) (*models.Reservation, []models.Notification) {
	t.Helper()
	starts, err := time.Parse(time.RFC3339, "2025-03-01T10:00:00Z")
	require.NoError(t, err)
	r := &models.Reservation{
		CarID: 1, UserID: 1,
		StartsAt: starts, DurationMinutes: 60,
		Status: types.RESERVATION_CONFIRMED,
	}
	require.NoError(t, gdb.Create(r).Error)
	car := &models.Car{ID: 1, Title: "2019 Audi A4", SellerID: 2}
	buyer := &models.User{ID: 1, Email: "buyer@example.com", Name: "Buyer"}
	seller := &models.User{ID: 2, Email: sellerEmail, Name: "Seller"}
	rows := models.BuildReservationNotifications(r, car, buyer, seller, "confirmed")
	require.NoError(t, gdb.Create(&rows).Error)
	return r, rows
}

func TestDispatchAllChannels(t *testing.T) {
	gdb := newTestDB(t)
	mailer := &fakeMailer{}
	cal := &fakeCalendar{}
	lib.NewMailSender(mailer)
	lib.NewCalendarAPI(cal)

	r, _ := seedOutbox(t, gdb, "seller@example.com")
	report := Dispatch(r.ID)

	assert.Equal(t, r.ID, report.ReservationID)
	assert.Len(t, report.Outcomes, 3)
	assert.Equal(t, 3, report.Sent())
	assert.Equal(t, 0, report.Failed())

	assert.Len(t, mailer.sent, 2)
	assert.Len(t, cal.events, 1)
	assert.Equal(t, "buyer@example.com", cal.events[0].Attendees[0].Email)

	var stored []models.Notification
	require.NoError(t, gdb.Where(&models.Notification{ReservationID: r.ID}).Find(&stored).Error)
	for _, n := range stored {
		assert.Equal(t, types.NOTIFICATION_SENT, n.Status)
		assert.Equal(t, uint(1), n.Attempts)
	}
}

func TestDispatchChannelsAreIndependent(t *testing.T) {
	gdb := newTestDB(t)
	mailer := &fakeMailer{err: errors.New("smtp: connection refused")}
	cal := &fakeCalendar{}
	lib.NewMailSender(mailer)
	lib.NewCalendarAPI(cal)

	r, _ := seedOutbox(t, gdb, "seller@example.com")
	report := Dispatch(r.ID)

	// both emails fail, the calendar invite still goes out
	assert.Equal(t, 1, report.Sent())
	assert.Equal(t, 2, report.Failed())
	assert.Len(t, cal.events, 1)

	var failed []models.Notification
	require.NoError(t, gdb.
		Where(&models.Notification{ReservationID: r.ID, Channel: types.CHANNEL_EMAIL}).
		Find(&failed).Error)
	for _, n := range failed {
		// one attempt burned, still pending for the worker to retry
		assert.Equal(t, types.NOTIFICATION_PENDING, n.Status)
		assert.Equal(t, uint(1), n.Attempts)
		assert.Contains(t, n.LastError, "connection refused")
	}
}

func TestDispatchReportsSkippedRows(t *testing.T) {
	gdb := newTestDB(t)
	mailer := &fakeMailer{}
	cal := &fakeCalendar{}
	lib.NewMailSender(mailer)
	lib.NewCalendarAPI(cal)

	r, _ := seedOutbox(t, gdb, "") // seller has no email on record
	report := Dispatch(r.ID)

	assert.Len(t, report.Outcomes, 3)
	assert.Equal(t, 2, report.Sent())
	skipped := 0
	for _, o := range report.Outcomes {
		if o.Status == types.NOTIFICATION_SKIPPED {
			skipped++
			assert.Equal(t, "missing recipient", o.Reason)
		}
	}
	assert.Equal(t, 1, skipped)
	// the skipped row was never handed to a sender
	assert.Len(t, mailer.sent, 1)
}

func TestDispatchDeliversClaimedRowsOnce(t *testing.T) {
	gdb := newTestDB(t)
	mailer := &fakeMailer{}
	cal := &fakeCalendar{}
	lib.NewMailSender(mailer)
	lib.NewCalendarAPI(cal)

	r, rows := seedOutbox(t, gdb, "seller@example.com")

	// another dispatcher holds the buyer email
	require.NoError(t, gdb.Model(&models.Notification{}).
		Where("id = ?", rows[0].ID).
		Updates(map[string]any{"status": types.NOTIFICATION_SENDING, "attempts": 1}).Error)

	report := Dispatch(r.ID)
	assert.Len(t, report.Outcomes, 2)
	assert.Len(t, mailer.sent, 1)

	// a dispatcher working from a stale read loses the claim
	fresh := models.Notification{
		ID: uuid.New(), ReservationID: r.ID,
		Channel: types.CHANNEL_EMAIL, Recipient: "late@example.com",
		Subject: "late", Status: types.NOTIFICATION_PENDING,
		Payload: &types.JSONB{"body": "late"},
	}
	require.NoError(t, gdb.Create(&fresh).Error)
	staleCopy := fresh
	require.NoError(t, gdb.Model(&models.Notification{}).
		Where("id = ?", fresh.ID).
		Updates(map[string]any{"status": types.NOTIFICATION_SENDING, "attempts": 1}).Error)

	outcome := dispatchRow(gdb, &staleCopy)
	assert.Equal(t, types.NOTIFICATION_PENDING, outcome.Status)
	assert.Len(t, mailer.sent, 1)
}

func TestDispatchOutboxReclaimsStaleClaims(t *testing.T) {
	gdb := newTestDB(t)
	mailer := &fakeMailer{}
	cal := &fakeCalendar{}
	lib.NewMailSender(mailer)
	lib.NewCalendarAPI(cal)

	_, rows := seedOutbox(t, gdb, "seller@example.com")

	// a claim older than the reclaim window counts as abandoned
	stale := time.Now().Add(-2 * config.OUTBOX_RECLAIM_MINUTES * time.Minute)
	require.NoError(t, gdb.Model(&models.Notification{}).
		Where("id = ?", rows[0].ID).
		UpdateColumns(map[string]any{"status": types.NOTIFICATION_SENDING, "updated_at": stale}).Error)
	// a fresh claim is left alone
	require.NoError(t, gdb.Model(&models.Notification{}).
		Where("id = ?", rows[1].ID).
		UpdateColumns(map[string]any{"status": types.NOTIFICATION_SENDING, "updated_at": time.Now()}).Error)

	DispatchOutbox()

	var reclaimed models.Notification
	require.NoError(t, gdb.Where("id = ?", rows[0].ID).First(&reclaimed).Error)
	assert.Equal(t, types.NOTIFICATION_SENT, reclaimed.Status)

	var held models.Notification
	require.NoError(t, gdb.Where("id = ?", rows[1].ID).First(&held).Error)
	assert.Equal(t, types.NOTIFICATION_SENDING, held.Status)
}

func TestDispatchOutboxRetriesUntilMaxAttempts(t *testing.T) {
	gdb := newTestDB(t)
	mailer := &fakeMailer{err: errors.New("smtp: timeout")}
	cal := &fakeCalendar{}
	lib.NewMailSender(mailer)
	lib.NewCalendarAPI(cal)

	r, rows := seedOutbox(t, gdb, "seller@example.com")
	// the buyer email has one attempt left, the seller email is exhausted
	require.NoError(t, gdb.Model(&models.Notification{}).
		Where("id = ?", rows[0].ID).
		Update("attempts", config.OUTBOX_MAX_ATTEMPTS-1).Error)
	require.NoError(t, gdb.Model(&models.Notification{}).
		Where("id = ?", rows[1].ID).
		Update("attempts", config.OUTBOX_MAX_ATTEMPTS).Error)

	DispatchOutbox()

	var buyerRow models.Notification
	require.NoError(t, gdb.Where("id = ?", rows[0].ID).First(&buyerRow).Error)
	assert.Equal(t, types.NOTIFICATION_FAILED, buyerRow.Status)
	assert.Equal(t, uint(config.OUTBOX_MAX_ATTEMPTS), buyerRow.Attempts)

	// the exhausted row was not picked up again
	var sellerRow models.Notification
	require.NoError(t, gdb.Where("id = ?", rows[1].ID).First(&sellerRow).Error)
	assert.Equal(t, types.NOTIFICATION_PENDING, sellerRow.Status)
	assert.Equal(t, uint(config.OUTBOX_MAX_ATTEMPTS), sellerRow.Attempts)

	// the calendar row still went out on the same tick
	var calRow models.Notification
	require.NoError(t, gdb.
		Where(&models.Notification{ReservationID: r.ID, Channel: types.CHANNEL_CALENDAR}).
		First(&calRow).Error)
	assert.Equal(t, types.NOTIFICATION_SENT, calRow.Status)
	assert.Len(t, cal.events, 1)
}
