package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Storage and MQ backend selectors.
const (
	StorageBackendMinio = "minio"
	StorageBackendGCS   = "gcs"
	StorageBackendNone  = "none"

	MQBackendRabbitMQ = "rabbitmq"
	MQBackendPubSub   = "pubsub"
	MQBackendNone     = "none"
)

type Config struct {
	ServerPort     int
	Database       DatabaseConfig
	StorageBackend string
	Minio          MinioConfig
	GCS            GCSConfig
	MQBackend      string
	RabbitMQ       RabbitMQConfig
	PubSub         PubSubConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "sparkride"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "sparkride_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	minioConfig := MinioConfig{
		Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		SecretKey: getEnv("MINIO_SECRET_KEY", ""),
		Bucket:    getEnv("MINIO_BUCKET", "sparkride-images"),
		UseSSL:    getEnvBool("MINIO_USE_SSL", false),
	}

	gcsConfig := GCSConfig{
		Bucket:          getEnv("GCS_BUCKET", ""),
		ProjectID:       getEnv("GCS_PROJECT_ID", ""),
		CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
	}

	rabbitConfig := RabbitMQConfig{
		URL:             getEnv("RABBITMQ_URL", ""),
		QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
		QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
		PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH_COUNT", 0),
	}

	pubsubConfig := PubSubConfig{
		ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
		CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
		SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
	}

	return Config{
		ServerPort:     getEnvInt("SERVER_PORT", 8080),
		Database:       dbConfig,
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendMinio)),
		Minio:          minioConfig,
		GCS:            gcsConfig,
		MQBackend:      strings.ToLower(getEnv("MQ_BACKEND", MQBackendNone)),
		RabbitMQ:       rabbitConfig,
		PubSub:         pubsubConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(valueStr)) {
		case "1", "t", "true", "yes", "y", "on":
			return true
		case "0", "f", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}
