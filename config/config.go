// Package config loads service settings from environment variables.
package config

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	LogLevel             string `mapstructure:"LOG_LEVEL"`
	LogFormat            string `mapstructure:"LOG_FORMAT"`
	AeonisAPIKey         string `mapstructure:"AEONIS_API_KEY"`
	AeonisEndpoint       string `mapstructure:"AEONIS_ENDPOINT"`
	OverdueSweepSchedule string `mapstructure:"OVERDUE_SWEEP_SCHEDULE"`
	DefaultSubscription  string `mapstructure:"DEFAULT_SUBSCRIPTION_AMOUNT"`
	DefaultRenewalDays   int    `mapstructure:"DEFAULT_RENEWAL_DAYS"`
}

var keys = []string{
	"SERVER_PORT",
	"DATABASE_URL",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"AEONIS_API_KEY",
	"AEONIS_ENDPOINT",
	"OVERDUE_SWEEP_SCHEDULE",
	"DEFAULT_SUBSCRIPTION_AMOUNT",
	"DEFAULT_RENEWAL_DAYS",
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("SERVER_PORT", "8081")
	v.SetDefault("DATABASE_URL", "host=localhost user=postgres dbname=vintagemart port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("AEONIS_ENDPOINT", "http://localhost:8000/v1/traces")
	v.SetDefault("OVERDUE_SWEEP_SCHEDULE", "0 2 * * *")
	v.SetDefault("DEFAULT_SUBSCRIPTION_AMOUNT", "9.99")
	v.SetDefault("DEFAULT_RENEWAL_DAYS", 30)
	v.AutomaticEnv()

	// Unmarshal only sees env vars that are bound explicitly.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := decimal.NewFromString(cfg.DefaultSubscription); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SubscriptionAmount is the amount given to newly provisioned subscriptions.
func (c Config) SubscriptionAmount() decimal.Decimal {
	return decimal.RequireFromString(c.DefaultSubscription)
}
