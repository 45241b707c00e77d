package config

import (
	"fmt"
	"os"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

var API_ENV = os.Getenv("API_ENV")

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

// DEFAULT_APPOINTMENT_MINUTES applies when a booking request omits the duration.
const DEFAULT_APPOINTMENT_MINUTES = 60

// REMINDER_LEAD_MINUTES is how long before an appointment the calendar reminder fires.
const REMINDER_LEAD_MINUTES = 30

// CAR_UPDATE_MAX_RETRIES bounds the compensating retries on the car status flip
// after the reservation row is already written.
const CAR_UPDATE_MAX_RETRIES = 3

// OUTBOX_MAX_ATTEMPTS bounds notification delivery attempts before a row is
// marked failed for good.
const OUTBOX_MAX_ATTEMPTS = 5

// OUTBOX_RECLAIM_MINUTES is how long a claimed outbox row may sit in sending
// before the worker treats the claim as abandoned.
const OUTBOX_RECLAIM_MINUTES = 5

// STORE_TIMEOUT_SECONDS bounds the booking transactions against the store.
const STORE_TIMEOUT_SECONDS = 5
