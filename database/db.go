package database

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"contentops-backend/models"
)

var DB *gorm.DB

func Connect() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "db"
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"), port)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		panic("Could not connect to database: " + err.Error())
	}
}

// AutoMigrate applies the schema. All content tables carry a client_id
// column; platform_limits is the only tenant-independent table.
func AutoMigrate() {
	if err := DB.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Post{},
		&models.Message{},
		&models.Task{},
		&models.PlatformLimit{},
		&models.IdempotencyKey{},
	); err != nil {
		panic("automigrate failed: " + err.Error())
	}
}
