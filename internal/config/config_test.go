package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		cleanup func()
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "load with defaults (no config file)",
			setup: func() {
				// Reset viper
				viper.Reset()
			},
			cleanup: func() {},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 8080 {
					t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
				}
				if cfg.Hub.URL != "https://pubsubhubbub.appspot.com/subscribe" {
					t.Errorf("Hub.URL = %s, want appspot hub", cfg.Hub.URL)
				}
				if cfg.Hub.LeaseSeconds != 86400 {
					t.Errorf("Hub.LeaseSeconds = %d, want 86400", cfg.Hub.LeaseSeconds)
				}
				if cfg.Tracker.TickInterval != time.Minute {
					t.Errorf("Tracker.TickInterval = %v, want 1m", cfg.Tracker.TickInterval)
				}
				if cfg.Tracker.RenewalInterval != 8*time.Hour {
					t.Errorf("Tracker.RenewalInterval = %v, want 8h", cfg.Tracker.RenewalInterval)
				}
				if cfg.RabbitMQ.Exchange != "youtube.notifications" {
					t.Errorf("RabbitMQ.Exchange = %s, want youtube.notifications", cfg.RabbitMQ.Exchange)
				}
				if !cfg.Events.PublishEnabled || !cfg.Events.ScheduleEnabled ||
					!cfg.Events.ReminderEnabled || !cfg.Events.LiveEnabled {
					t.Error("all event categories should be enabled by default")
				}
			},
		},
		{
			name: "load with environment variables",
			setup: func() {
				viper.Reset()
				viper.SetEnvPrefix("APP")
				viper.AutomaticEnv()
				os.Setenv("APP_SERVER_PORT", "9090")
				os.Setenv("APP_HUB_CALLBACKURL", "https://example.com/youtube/callback")
				os.Setenv("APP_RABBITMQ_HOST", "testrabbitmq")
				os.Setenv("APP_EVENTS_REMINDERENABLED", "false")
				// Manually bind env vars since AutomaticEnv doesn't work with nested keys
				viper.BindEnv("server.port", "APP_SERVER_PORT")
				viper.BindEnv("hub.callbackurl", "APP_HUB_CALLBACKURL")
				viper.BindEnv("rabbitmq.host", "APP_RABBITMQ_HOST")
				viper.BindEnv("events.reminderenabled", "APP_EVENTS_REMINDERENABLED")
			},
			cleanup: func() {
				os.Unsetenv("APP_SERVER_PORT")
				os.Unsetenv("APP_HUB_CALLBACKURL")
				os.Unsetenv("APP_RABBITMQ_HOST")
				os.Unsetenv("APP_EVENTS_REMINDERENABLED")
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 9090 {
					t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
				}
				if cfg.Hub.CallbackURL != "https://example.com/youtube/callback" {
					t.Errorf("Hub.CallbackURL = %s, want override", cfg.Hub.CallbackURL)
				}
				if cfg.RabbitMQ.Host != "testrabbitmq" {
					t.Errorf("RabbitMQ.Host = %s, want testrabbitmq", cfg.RabbitMQ.Host)
				}
				if cfg.Events.ReminderEnabled {
					t.Error("Events.ReminderEnabled = true, want false")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.cleanup()

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
