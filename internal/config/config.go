package config

import (
	"os"
	"strings"
	"time"

	"github.com/abdelhadiDevWeb/labocart/internal/storage"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort       string
	GRPCHealthPort string

	Storage storage.Options
	CartKey string

	CatalogDriver string
	CatalogDSN    string

	KafkaBrokers []string
	KafkaTopic   string

	APIURL         string
	TaxRate        decimal.Decimal
	CurrencySymbol string

	LogLevel  string
	LogFormat string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the environment, after the given .env files when they exist.
// Values that do not parse are replaced by their defaults.
func Load(log logrus.FieldLogger, envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			log.Warnf("error loading %s: %v", f, err)
		}
	}

	return Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", "50060"),
		Storage: storage.Options{
			Driver:        getEnv("STORAGE_DRIVER", storage.DriverMemory),
			Dir:           getEnv("STORAGE_DIR", "./.labocart"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisPrefix:   getEnv("REDIS_PREFIX", "labocart"),
			MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDBName:   getEnv("MONGO_DB_NAME", "labocart"),
		},
		CartKey:         getEnv("CART_KEY", "cart"),
		CatalogDriver:   getEnv("CATALOG_DRIVER", "static"),
		CatalogDSN:      getEnv("CATALOG_DSN", ""),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "session-events"),
		APIURL:          getEnv("API_URL", "http://localhost:8000/api"),
		TaxRate:         getDecimal(log, "TAX_RATE", decimal.RequireFromString("0.20")),
		CurrencySymbol:  getEnv("CURRENCY_SYMBOL", "€"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		RequestTimeout:  getDuration(log, "REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration(log, "SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(log logrus.FieldLogger, key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warnf("invalid %s %q, using %s", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getDecimal(log logrus.FieldLogger, key string, defaultValue decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || d.IsNegative() {
		log.Warnf("invalid %s %q, using %s", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
