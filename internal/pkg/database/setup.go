package database

import (
	"log"
	"time"

	"github.com/startunnel/StarTunnel/app/models"
	"github.com/startunnel/StarTunnel/internal/pkg/env"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

func SetupDatabase() {
	var err error
	dsn := env.GetEnv("DB_PATH", "vpn.db")

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
		if err == nil {
			DB.AutoMigrate(
				&models.UserAccount{},
			)

			return
		}

		log.Printf("Failed to open database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// GetDB returns the process-wide database handle
func GetDB() *gorm.DB {
	return DB
}

// SetDB overrides the process-wide handle; used by tests
func SetDB(db *gorm.DB) {
	DB = db
}
