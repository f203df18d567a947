// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server   ServerConfig
	Hub      HubConfig
	YouTube  YouTubeConfig
	Tracker  TrackerConfig
	Events   EventsConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Registry RegistryConfig
	Logging  LoggingConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// HubConfig contains PubSubHubbub hub configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type HubConfig struct {
	URL          string
	CallbackURL  string
	LeaseSeconds int
}

// YouTubeConfig contains YouTube Data API configuration.
type YouTubeConfig struct {
	APIKeys []string
}

// TrackerConfig contains the reconciliation and persistence cadence.
type TrackerConfig struct {
	TickInterval      time.Duration
	SnapshotInterval  time.Duration
	RenewalInterval   time.Duration
	InitSubscribeWait time.Duration
}

// EventsConfig enables or disables individual notification categories.
type EventsConfig struct {
	PublishEnabled  bool
	ScheduleEnabled bool
	ReminderEnabled bool
	LiveEnabled     bool
}

// RedisConfig contains the state store connection configuration.
type RedisConfig struct {
	URL string
}

// RabbitMQConfig contains RabbitMQ connection and exchange configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Host     string
	User     string
	Password string
	Exchange string
	Port     int
}

// RegistryConfig contains the channel registry database configuration.
type RegistryConfig struct {
	DatabaseURL string
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Hub
	viper.SetDefault("hub.url", "https://pubsubhubbub.appspot.com/subscribe")
	viper.SetDefault("hub.callbackurl", "http://localhost:8080/youtube/callback")
	viper.SetDefault("hub.leaseseconds", 86400)

	// YouTube
	viper.SetDefault("youtube.apikeys", []string{})

	// Tracker cadence. Renewal stays well under the 24h hub lease so a
	// missed run does not let subscriptions lapse.
	viper.SetDefault("tracker.tickinterval", time.Minute)
	viper.SetDefault("tracker.snapshotinterval", time.Minute)
	viper.SetDefault("tracker.renewalinterval", 8*time.Hour)
	viper.SetDefault("tracker.initsubscribewait", 5*time.Second)

	// Events
	viper.SetDefault("events.publishenabled", true)
	viper.SetDefault("events.scheduleenabled", true)
	viper.SetDefault("events.reminderenabled", true)
	viper.SetDefault("events.liveenabled", true)

	// Redis
	viper.SetDefault("redis.url", "redis://localhost:6379/0")

	// RabbitMQ
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "youtube.notifications")

	// Registry
	viper.SetDefault("registry.databaseurl", "")

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
