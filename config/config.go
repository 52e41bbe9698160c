// Package config loads server configuration from the environment.
// A .env file is honored for local development (loaded by the binaries
// via godotenv before Load runs).
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	DBPath string

	// AMQP. Empty URL disables event publishing to the broker.
	AMQPURL      string
	AMQPExchange string

	// Snapshot maintenance
	SnapshotCron string // cron spec for the current-month rebuild

	// Metrics cache
	MetricsTTL time.Duration

	// Scenario multiplier overrides. The defaults match the engine's
	// built-in scenario table.
	OptimisticIncomeFactor   decimal.Decimal
	OptimisticExpenseFactor  decimal.Decimal
	PessimisticIncomeFactor  decimal.Decimal
	PessimisticExpenseFactor decimal.Decimal

	// Logging
	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:   getEnv("PORT", "8080"),
		DBPath: getEnv("DB_PATH", "./data/debts.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "debt-engine"),

		SnapshotCron: getEnv("SNAPSHOT_CRON", "5 0 * * *"),

		MetricsTTL: getEnvDuration("METRICS_TTL", 30*time.Second),

		OptimisticIncomeFactor:   getEnvDecimal("OPTIMISTIC_INCOME_FACTOR", "1.10"),
		OptimisticExpenseFactor:  getEnvDecimal("OPTIMISTIC_EXPENSE_FACTOR", "0.90"),
		PessimisticIncomeFactor:  getEnvDecimal("PESSIMISTIC_INCOME_FACTOR", "0.90"),
		PessimisticExpenseFactor: getEnvDecimal("PESSIMISTIC_EXPENSE_FACTOR", "1.10"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	} else if dir := filepath.Dir(c.DBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.MetricsTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid metrics TTL %v: must be positive", c.MetricsTTL))
	}

	for name, factor := range map[string]decimal.Decimal{
		"OPTIMISTIC_INCOME_FACTOR":   c.OptimisticIncomeFactor,
		"OPTIMISTIC_EXPENSE_FACTOR":  c.OptimisticExpenseFactor,
		"PESSIMISTIC_INCOME_FACTOR":  c.PessimisticIncomeFactor,
		"PESSIMISTIC_EXPENSE_FACTOR": c.PessimisticExpenseFactor,
	} {
		if factor.LessThanOrEqual(decimal.Zero) {
			errors = append(errors, fmt.Sprintf("invalid %s %s: must be positive", name, factor))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(defaultValue)
}
