package config

import (
	"fmt"
	"log"
	"os"

	"github.com/fulljjb/server/internal/models"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	DB_HOST        string
	DB_PORT        string
	DB_USER        string
	DB_PASSWORD    string
	DB_NAME        string
	ES_URL         string
	ES_USER        string
	ES_PASSWORD    string
	JWT_SECRET     string
	REFRESH_SECRET string
	KAFKA_ADDRESS  string
	EMAIL_HOST     string
	EMAIL_PORT     string
	EMAIL_USER     string
	EMAIL_PASSWORD string
	FRONTEND_URL   string
	UPLOAD_DIR     string
	APP_ENV        string
	LOG_LEVEL      string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:        os.Getenv("DB_HOST"),
		DB_PORT:        os.Getenv("DB_PORT"),
		DB_USER:        os.Getenv("DB_USER"),
		DB_PASSWORD:    os.Getenv("DB_PASSWORD"),
		DB_NAME:        os.Getenv("DB_NAME"),
		ES_URL:         os.Getenv("ES_URL"),
		ES_USER:        os.Getenv("ES_USER"),
		ES_PASSWORD:    os.Getenv("ES_PASSWORD"),
		JWT_SECRET:     os.Getenv("JWT_SECRET"),
		REFRESH_SECRET: os.Getenv("REFRESH_SECRET"),
		KAFKA_ADDRESS:  os.Getenv("KAFKA_ADDRESS"),
		EMAIL_HOST:     os.Getenv("EMAIL_HOST"),
		EMAIL_PORT:     os.Getenv("EMAIL_PORT"),
		EMAIL_USER:     os.Getenv("EMAIL_USER"),
		EMAIL_PASSWORD: os.Getenv("EMAIL_PASSWORD"),
		FRONTEND_URL:   os.Getenv("FRONTEND_URL"),
		UPLOAD_DIR:     os.Getenv("UPLOAD_DIR"),
		APP_ENV:        os.Getenv("APP_ENV"),
		LOG_LEVEL:      os.Getenv("LOG_LEVEL"),
	}

	if config.FRONTEND_URL == "" {
		config.FRONTEND_URL = "http://localhost:5173"
	}
	if config.UPLOAD_DIR == "" {
		config.UPLOAD_DIR = "public/video"
	}

	return config, nil
}

// Production reports whether cookies must carry the Secure flag.
func (c *Config) Production() bool {
	return c.APP_ENV == "production"
}

func InitDB() (*gorm.DB, error) {
	configuration, _ := LoadConfig()

	host := configuration.DB_HOST
	port := configuration.DB_PORT
	user := configuration.DB_USER
	password := configuration.DB_PASSWORD
	dbname := configuration.DB_NAME

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, dbname,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Technique{}, &models.ChatMessage{}); err != nil {
		return nil, fmt.Errorf("cannot run migrations: %w", err)
	}
	return db, nil
}
