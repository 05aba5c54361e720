// Package config loads service configuration from the environment, with
// optional .env support for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	TopicEntry  string
	TopicUpdate string
	Principal   string
}

// Configuration holds all service settings.
type Configuration struct {
	HTTPAddr    string
	MetricsAddr string

	Kafka KafkaConfig

	TokenSecret string
	TokenTTL    time.Duration

	AgentIdentity   string
	RoomIdleTimeout time.Duration

	// DepartedPolicy is "freeze" or "drop"; PolicyFile, when set, is
	// watched for hot reloads of the policy.
	DepartedPolicy string
	PolicyFile     string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in when present.
func Load() *Configuration {
	_ = godotenv.Load()

	return &Configuration{
		HTTPAddr:    envOrDefault("HTTP_ADDR", ":8080"),
		MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),

		Kafka: KafkaConfig{
			Enabled:     envBool("KAFKA_ENABLED", false),
			Brokers:     envList("KAFKA_BROKERS", nil),
			TopicEntry:  envOrDefault("KAFKA_TOPIC_ENTRY", "conversation.feed.entry"),
			TopicUpdate: envOrDefault("KAFKA_TOPIC_UPDATE", "conversation.feed.update"),
			Principal:   envOrDefault("KAFKA_PRINCIPAL", "svc-conversation-feed"),
		},

		TokenSecret: envOrDefault("TOKEN_SECRET", ""),
		TokenTTL:    envDuration("TOKEN_TTL", 6*time.Hour),

		AgentIdentity:   envOrDefault("AGENT_IDENTITY", ""),
		RoomIdleTimeout: envDuration("ROOM_IDLE_TIMEOUT", 30*time.Minute),

		DepartedPolicy: envOrDefault("DEPARTED_SOURCE_POLICY", "freeze"),
		PolicyFile:     envOrDefault("POLICY_FILE", ""),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
