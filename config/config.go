package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Catalogue CatalogueConfig
	Ledger    LedgerConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Observ    ObservabilityConfig
	Auth      AuthConfig
	Business  BusinessConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type CatalogueConfig struct {
	// Path is the flat catalogue file holding current item state.
	Path string
}

type LedgerConfig struct {
	// Driver is "sqlite" (local file, the default) or "postgres".
	Driver string
	DSN    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers       []string
	TopicSales    string
	ConsumerGroup string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

type AuthConfig struct {
	// OwnerSecretHash is the bcrypt hash of the shared owner secret. When
	// unset, OwnerSecret is hashed at startup instead.
	OwnerSecretHash string
	// OwnerSecret is the plaintext development fallback.
	OwnerSecret string
	// TokenSecret signs owner session tokens.
	TokenSecret string
}

type BusinessConfig struct {
	// CommissionRate is the depot's cut of each completed sale.
	CommissionRate float64
	// RefreshIntervalSeconds is the catalogue reload cadence.
	RefreshIntervalSeconds int
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	refreshInterval, _ := strconv.Atoi(getEnv("REFRESH_INTERVAL_SECONDS", "2"))
	commissionRate, err := strconv.ParseFloat(getEnv("COMMISSION_RATE", "0.25"), 64)
	if err != nil {
		commissionRate = 0.25
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Catalogue: CatalogueConfig{
			Path: getEnv("CATALOGUE_PATH", "items.csv"),
		},
		Ledger: LedgerConfig{
			Driver: getEnv("LEDGER_DRIVER", "sqlite"),
			DSN:    getEnv("LEDGER_DSN", "app.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicSales:    getEnv("KAFKA_TOPIC_SALE_EVENTS", "sale-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "depot-vente-group"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
		Auth: AuthConfig{
			OwnerSecretHash: getEnv("OWNER_SECRET_HASH", ""),
			OwnerSecret:     getEnv("OWNER_SECRET", "depot-vente"),
			TokenSecret:     getEnv("TOKEN_SECRET", "dev-token-secret"),
		},
		Business: BusinessConfig{
			CommissionRate:         commissionRate,
			RefreshIntervalSeconds: refreshInterval,
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, ledger=%s", cfg.Server.Env, cfg.Server.Port, cfg.Ledger.Driver)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
