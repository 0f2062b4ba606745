package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"inventory-service/internal/database"

	"go.uber.org/zap"
)

type Config struct {
	Port    string
	DB      DB
	Engine  Engine
	Sweeper Sweeper
	Redis   Redis
	Kafka   Kafka
}

type DB struct {
	database.Config
}

type Engine struct {
	ReservationTTL      time.Duration // 5–60 минут
	DefaultSafetyStock  int32
	DefaultMaxStock     int32
	ReplenishMultiplier float64
}

type Sweeper struct {
	Interval  time.Duration
	BatchSize int
}

type Redis struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	TTLSeconds int
}

type Kafka struct {
	Enabled       bool
	Brokers       []string
	LowStockTopic string
	MovementTopic string
}

const (
	minReservationTTLMinutes = 5
	maxReservationTTLMinutes = 60
)

func Load(log *zap.Logger) *Config {
	cfg := &Config{
		Port: getEnv("APP_PORT", log),
		DB: DB{
			Config: database.Config{
				Host:     getEnv("DB_HOST", log),
				Port:     getEnv("DB_PORT", log),
				User:     getEnv("DB_USER", log),
				Password: getEnv("DB_PASSWORD", log),
				Name:     getEnv("DB_NAME", log),
				SSLMode:  getEnv("DB_SSLMODE", log),
			},
		},
		Engine: Engine{
			ReservationTTL:      time.Duration(clampTTLMinutes(atoiDefault(os.Getenv("RESERVATION_TTL_MINUTES"), 15), log)) * time.Minute,
			DefaultSafetyStock:  int32(atoiDefault(os.Getenv("DEFAULT_SAFETY_STOCK"), 10)),
			DefaultMaxStock:     int32(atoiDefault(os.Getenv("DEFAULT_MAX_STOCK"), 1000)),
			ReplenishMultiplier: atofDefault(os.Getenv("REPLENISHMENT_MULTIPLIER"), 1.5),
		},
		Sweeper: Sweeper{
			Interval:  time.Duration(atoiDefault(os.Getenv("SWEEP_INTERVAL_SECONDS"), 60)) * time.Second,
			BatchSize: atoiDefault(os.Getenv("SWEEP_BATCH_SIZE"), 50),
		},
		Redis: Redis{
			Enabled:    os.Getenv("REDIS_ENABLED") == "true",
			Addr:       os.Getenv("REDIS_ADDR"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         atoiDefault(os.Getenv("REDIS_DB"), 0),
			TTLSeconds: atoiDefault(os.Getenv("CACHE_TTL_SECONDS"), 60),
		},
		Kafka: Kafka{
			Enabled:       os.Getenv("KAFKA_ENABLED") == "true",
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			LowStockTopic: envDefault("KAFKA_LOW_STOCK_TOPIC", "inventory.low-stock"),
			MovementTopic: envDefault("KAFKA_MOVEMENT_TOPIC", "inventory.movements"),
		},
	}
	return cfg
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("Обязательная переменная окружения не установлена", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func envDefault(key, def string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return def
}

func clampTTLMinutes(minutes int, log *zap.Logger) int {
	if minutes < minReservationTTLMinutes {
		log.Warn("RESERVATION_TTL_MINUTES ниже минимума, используем минимум",
			zap.Int("requested", minutes), zap.Int("min", minReservationTTLMinutes))
		return minReservationTTLMinutes
	}
	if minutes > maxReservationTTLMinutes {
		log.Warn("RESERVATION_TTL_MINUTES выше максимума, используем максимум",
			zap.Int("requested", minutes), zap.Int("max", maxReservationTTLMinutes))
		return maxReservationTTLMinutes
	}
	return minutes
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func atofDefault(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
