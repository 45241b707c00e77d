package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("unsupported jsonb source type")
	}
}

type CarStatus string

const (
	CAR_AVAILABLE CarStatus = "available"
	CAR_RESERVED  CarStatus = "reserved"
	CAR_SOLD      CarStatus = "sold"
)

type ReservationStatus string

const (
	RESERVATION_CONFIRMED ReservationStatus = "confirmed"
	RESERVATION_CANCELED  ReservationStatus = "cancelled"
)

type NotificationStatus string

const (
	NOTIFICATION_PENDING NotificationStatus = "pending"
	NOTIFICATION_SENDING NotificationStatus = "sending"
	NOTIFICATION_SENT    NotificationStatus = "sent"
	NOTIFICATION_FAILED  NotificationStatus = "failed"
	NOTIFICATION_SKIPPED NotificationStatus = "skipped"
)

type NotificationChannel string

const (
	CHANNEL_EMAIL    NotificationChannel = "email"
	CHANNEL_CALENDAR NotificationChannel = "calendar"
)

type UserRole string

const (
	ROLE_BUYER  UserRole = "buyer"
	ROLE_SELLER UserRole = "seller"
	ROLE_ADMIN  UserRole = "admin"
)

type CreateReservationRequestBody struct {
	CarID           uint   `json:"carId" binding:"required"`
	AppointmentDate string `json:"appointmentDate" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	Duration        uint   `json:"duration,omitempty"`
	Message         string `json:"message,omitempty"`
}

type CancelReservationRequestBody struct {
	ReservationID uint `json:"reservationId" binding:"required"`
}

type CreateCarRequestBody struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Currency    string  `json:"currency,omitempty"`
}

type CarsQueryFilters struct {
	Status   string  `form:"status,omitempty" binding:"omitempty,oneof=available reserved sold"`
	Seller   uint    `form:"seller,omitempty"`
	MinPrice float64 `form:"min_price,omitempty"`
	MaxPrice float64 `form:"max_price,omitempty"`
	Search   string  `form:"search,omitempty"`
}

type SyncUserRequestBody struct {
	UID   string `json:"uid" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty" binding:"omitempty,oneof=buyer seller admin"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	UID      string `json:"uid"`
	jwt.RegisteredClaims
}

type APIResponseCar struct {
	ID          uint    `json:"id"`
	Slug        string  `json:"slug,omitempty"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	Status      string  `json:"status,omitempty"`
	SellerID    uint    `json:"seller_id,omitempty"`

	Timestamps
}

type APIResponseReservation struct {
	ID              uint       `json:"id"`
	CarID           uint       `json:"car_id,omitempty"`
	UserID          uint       `json:"user_id,omitempty"`
	StartsAt        *time.Time `json:"starts_at,omitempty"`
	DurationMinutes uint       `json:"duration_minutes,omitempty"`
	Status          string     `json:"status,omitempty"`

	Car *APIResponseCar `json:"car,omitempty"`

	Timestamps
}
