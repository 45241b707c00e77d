package utils

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"carhub/src/config"
	"carhub/src/db"
	"carhub/src/models"
	"carhub/src/types"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// CheckAvailability verifies that the car exists, is bookable, and that no
// confirmed reservation overlaps [startsAt, startsAt+duration). Advisory only:
// CreateReservation re-runs it inside the write transaction, and the
// conditional car update is what actually decides the race.
func CheckAvailability(tx *gorm.DB, carId uint, startsAt time.Time, durationMinutes uint) (*models.Car, error) {
	var car models.Car
	err := tx.
		Model(&models.Car{}).
		Where(&models.Car{ID: carId}).
		First(&car).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("car [%d]: %w", carId, types.ErrNotFound)
		}
		return nil, err
	}
	if car.Status != types.CAR_AVAILABLE {
		return nil, fmt.Errorf("car [%d] is not bookable: %w", carId, types.ErrConflict)
	}

	endsAt := startsAt.Add(time.Duration(durationMinutes) * time.Minute)
	var existing []models.Reservation
	err = tx.
		Model(&models.Reservation{}).
		Where(&models.Reservation{CarID: carId, Status: types.RESERVATION_CONFIRMED}).
		Where("starts_at < ?", endsAt).
		Find(&existing).
		Error
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.Overlaps(startsAt, endsAt) {
			return nil, fmt.Errorf("slot taken by reservation [%d]: %w", r.ID, types.ErrConflict)
		}
	}
	return &car, nil
}

// CreateReservation books a slot on a car: re-validates availability, writes
// the reservation row, flips the car to reserved with a conditional update,
// and enqueues the confirmation notifications as outbox rows, all in one
// transaction. Losing the conditional update means a concurrent booking won;
// the whole transaction rolls back and the caller gets a conflict.
func CreateReservation(params *types.CreateReservationRequestBody, userId uint, startsAt time.Time) (*models.Reservation, error) {
	duration := params.Duration
	if duration == 0 {
		duration = config.DEFAULT_APPOINTMENT_MINUTES
	}
	db := db.GetDb()
	reservation := models.Reservation{
		CarID:           params.CarID,
		UserID:          userId,
		StartsAt:        startsAt,
		DurationMinutes: duration,
		Message:         params.Message,
		Status:          types.RESERVATION_CONFIRMED,
	}
	ctx, cancelCtx := context.WithTimeout(context.Background(), config.STORE_TIMEOUT_SECONDS*time.Second)
	defer cancelCtx()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		car, err := CheckAvailability(tx, params.CarID, startsAt, duration)
		if err != nil {
			return err
		}
		if err := tx.Create(&reservation).Error; err != nil {
			return err
		}

		if err := reserveCar(tx, car.ID, reservation.ID); err != nil {
			return err
		}

		var buyer models.User
		if err := tx.Where(&models.User{ID: userId}).First(&buyer).Error; err != nil {
			return fmt.Errorf("user [%d]: %w", userId, types.ErrNotFound)
		}
		var seller models.User
		if err := tx.Where(&models.User{ID: car.SellerID}).First(&seller).Error; err != nil {
			log.Printf("No seller row for car [%d]: %s\n", car.ID, err.Error())
		}
		notifs := models.BuildReservationNotifications(&reservation, car, &buyer, &seller, "confirmed")
		if len(notifs) > 0 {
			if err := tx.Create(&notifs).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		err = storeErr(err)
		log.Printf("CreateReservation failed: car=%d user=%d error=%s\n", params.CarID, userId, err.Error())
		return nil, err
	}
	return &reservation, nil
}

// storeErr normalizes transaction errors: a deadline hit on the store maps to
// the retryable taxonomy, everything else passes through.
func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("store timeout: %w", types.ErrRetryable)
	}
	return err
}

// reserveCar flips available->reserved. The WHERE on the old status is the
// mutual-exclusion point for concurrent bookings: zero rows affected means
// another writer got there first. Transient errors are retried a bounded
// number of times; exhausting them surfaces the partial-write state.
func reserveCar(tx *gorm.DB, carId uint, reservationId uint) error {
	var lastErr error
	for attempt := 1; attempt <= config.CAR_UPDATE_MAX_RETRIES; attempt++ {
		res := tx.
			Model(&models.Car{}).
			Where("id = ? AND status = ?", carId, types.CAR_AVAILABLE).
			Update("status", types.CAR_RESERVED)
		if res.Error == nil {
			if res.RowsAffected == 0 {
				return fmt.Errorf("car [%d] was reserved concurrently: %w", carId, types.ErrConflict)
			}
			return nil
		}
		lastErr = res.Error
		log.Printf("Error updating car [%d] for reservation [%d] (attempt %d): %s\n", carId, reservationId, attempt, res.Error.Error())
	}
	return fmt.Errorf("could not mark car [%d] reserved for reservation [%d] (wanted %s): %s: %w",
		carId, reservationId, types.CAR_RESERVED, lastErr.Error(), types.ErrInconsistentState)
}

// CancelReservation reverses a confirmed reservation owned by userId and
// restores the car to available. A car already marked sold stays sold.
func CancelReservation(reservationId uint, userId uint) (*models.Reservation, error) {
	db := db.GetDb()
	var reservation models.Reservation
	ctx, cancelCtx := context.WithTimeout(context.Background(), config.STORE_TIMEOUT_SECONDS*time.Second)
	defer cancelCtx()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Model(&models.Reservation{}).
			Where(&models.Reservation{ID: reservationId}).
			Preload("Car").
			First(&reservation).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("reservation [%d]: %w", reservationId, types.ErrNotFound)
			}
			return err
		}
		if reservation.UserID != userId {
			return fmt.Errorf("reservation [%d] does not belong to user [%d]: %w", reservationId, userId, types.ErrAuthorization)
		}
		if reservation.Status == types.RESERVATION_CANCELED {
			return fmt.Errorf("reservation [%d]: %w", reservationId, types.ErrAlreadyCancelled)
		}
		err = tx.
			Model(&models.Reservation{}).
			Where(&models.Reservation{ID: reservationId}).
			Update("status", types.RESERVATION_CANCELED).
			Error
		if err != nil {
			return err
		}
		reservation.Status = types.RESERVATION_CANCELED

		res := tx.
			Model(&models.Car{}).
			Where("id = ? AND status = ?", reservation.CarID, types.CAR_RESERVED).
			Update("status", types.CAR_AVAILABLE)
		if res.Error != nil {
			return fmt.Errorf("could not release car [%d] for reservation [%d]: %s: %w",
				reservation.CarID, reservationId, res.Error.Error(), types.ErrInconsistentState)
		}
		if res.RowsAffected == 0 {
			// Sold in the meantime, or never flipped. Sold is terminal.
			log.Printf("Car [%d] not released on cancel of reservation [%d]\n", reservation.CarID, reservationId)
		}

		// A cancelled booking must not leak its still-queued confirmation
		// or reminder rows.
		err = tx.
			Model(&models.Notification{}).
			Where(&models.Notification{ReservationID: reservationId, Status: types.NOTIFICATION_PENDING}).
			Updates(map[string]any{
				"status":     types.NOTIFICATION_SKIPPED,
				"last_error": "reservation cancelled",
			}).
			Error
		if err != nil {
			return err
		}

		var buyer models.User
		if err := tx.Where(&models.User{ID: userId}).First(&buyer).Error; err == nil && reservation.Car != nil {
			notifs := models.BuildCancellationNotifications(&reservation, reservation.Car, &buyer)
			if len(notifs) > 0 {
				if err := tx.Create(&notifs).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		err = storeErr(err)
		log.Printf("CancelReservation failed: reservation=%d user=%d error=%s\n", reservationId, userId, err.Error())
		return nil, err
	}
	return &reservation, nil
}

func GetOwnReservations(userId uint) ([]models.Reservation, error) {
	db := db.GetDb()
	var reservations []models.Reservation
	err := db.
		Model(&models.Reservation{}).
		Where(&models.Reservation{UserID: userId}).
		Preload("Car").
		Order("starts_at DESC").
		Limit(50).
		Find(&reservations).
		Error
	return reservations, err
}

func GetSellerReservations(sellerId uint) ([]models.Reservation, error) {
	db := db.GetDb()
	var reservations []models.Reservation
	err := db.
		Model(&models.Reservation{}).
		Joins("Car").
		Where("\"Car\".seller_id = ?", sellerId).
		Order("starts_at DESC").
		Limit(50).
		Find(&reservations).
		Error
	return reservations, err
}

func GetReservation(id uint) (*models.Reservation, error) {
	db := db.GetDb()
	var reservation models.Reservation
	err := db.
		Model(&models.Reservation{}).
		Where(&models.Reservation{ID: id}).
		Preload("Car").
		Preload("User").
		First(&reservation).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("reservation [%d]: %w", id, types.ErrNotFound)
		}
		return nil, err
	}
	return &reservation, nil
}

func CreateNewCar(params *types.CreateCarRequestBody, sellerId uint) (*models.Car, error) {
	db := db.GetDb()
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	car := models.Car{
		Title:       params.Title,
		Description: params.Description,
		Price:       params.Price,
		Currency:    currency,
		SellerID:    sellerId,
		Status:      types.CAR_AVAILABLE,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&car).Error; err != nil {
			return err
		}
		// Slug needs the generated id to stay unique across same-title listings.
		s := slug.Make(fmt.Sprintf("%s-%d", params.Title, car.ID))
		if err := tx.Model(&models.Car{}).Where(&models.Car{ID: car.ID}).Update("slug", s).Error; err != nil {
			return err
		}
		car.Slug = s
		return nil
	})
	if err != nil {
		log.Printf("CreateNewCar failed: seller=%d error=%s\n", sellerId, err.Error())
		return nil, err
	}
	return &car, nil
}

func GetCars(filters *types.CarsQueryFilters) ([]models.Car, error) {
	db := db.GetDb()
	q := db.Model(&models.Car{})
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Seller > 0 {
		q = q.Where("seller_id = ?", filters.Seller)
	}
	if filters.MinPrice > 0 {
		q = q.Where("price >= ?", filters.MinPrice)
	}
	if filters.MaxPrice > 0 {
		q = q.Where("price <= ?", filters.MaxPrice)
	}
	if filters.Search != "" {
		q = q.Where("title LIKE ?", "%"+filters.Search+"%")
	}
	var cars []models.Car
	err := q.Order("created_at DESC").Limit(100).Find(&cars).Error
	return cars, err
}

func GetCar(id uint) (*models.Car, error) {
	db := db.GetDb()
	var car models.Car
	err := db.
		Model(&models.Car{}).
		Where(&models.Car{ID: id}).
		Preload("Seller").
		First(&car).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("car [%d]: %w", id, types.ErrNotFound)
		}
		return nil, err
	}
	return &car, nil
}

// AddCarPhotoKey records an uploaded photo's object key on the listing.
func AddCarPhotoKey(carId uint, filename string, key string) error {
	db := db.GetDb()
	var car models.Car
	if err := db.Where(&models.Car{ID: carId}).First(&car).Error; err != nil {
		return err
	}
	keys := types.JSONB{}
	if car.PhotoKeys != nil {
		keys = *car.PhotoKeys
	}
	keys[filename] = key
	return db.
		Model(&models.Car{}).
		Where(&models.Car{ID: carId}).
		Update("photo_keys", &keys).
		Error
}

// MarkCarSold is a seller action and terminal for the booking flow: a sold
// car is never flipped back by cancellations.
func MarkCarSold(carId uint, sellerId uint) error {
	db := db.GetDb()
	return db.Transaction(func(tx *gorm.DB) error {
		var car models.Car
		err := tx.Where(&models.Car{ID: carId}).First(&car).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("car [%d]: %w", carId, types.ErrNotFound)
			}
			return err
		}
		if car.SellerID != sellerId {
			return fmt.Errorf("car [%d] does not belong to seller [%d]: %w", carId, sellerId, types.ErrAuthorization)
		}
		if car.Status == types.CAR_SOLD {
			return fmt.Errorf("car [%d] already sold: %w", carId, types.ErrConflict)
		}
		return tx.Model(&models.Car{}).Where(&models.Car{ID: carId}).Update("status", types.CAR_SOLD).Error
	})
}
