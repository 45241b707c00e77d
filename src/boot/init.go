package boot

import (
	"log"
	"time"

	"carhub/src/common"
	"carhub/src/db"
	"carhub/src/lib"
	"carhub/src/models"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Car{},
		&models.Reservation{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	if err := common.StartOutboxWorker(30 * time.Second); err != nil {
		log.Printf("Error starting outbox worker: %s\n", err.Error())
	}
	sched.Start()
	// Anything that was committed but not delivered before the last
	// shutdown goes out now.
	go common.DispatchOutbox()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}
