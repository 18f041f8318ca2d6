package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"avtotest/models"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port              string
	BindAddress       string
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	JWTSecret         string
	AdminEmail        string
	AdminPassword     string
	AdminFullName     string
	SessionTTL        time.Duration
	ReconcileSchedule string
}

// Load reads configuration from the environment, after loading a .env file
// when one exists.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		BindAddress:       getEnv("BIND_ADDRESS", "localhost"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "avtotest"),
		DBPassword:        getEnv("DB_PASSWORD", "avtotest"),
		DBName:            getEnv("DB_NAME", "avtotest"),
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		JWTSecret:         getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		AdminEmail:        getEnv("ADMIN_EMAIL", ""),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		AdminFullName:     getEnv("ADMIN_FULL_NAME", "Administrator"),
		SessionTTL:        getEnvDuration("SESSION_TTL", 2*time.Hour),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 1m"),
	}

	if cfg.JWTSecret == "your-secret-key-change-in-production" {
		log.Println("Warning: using default JWT_SECRET. Set it in your environment.")
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration in %s (%q), using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

func InitRedis(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       0,
	})
}
