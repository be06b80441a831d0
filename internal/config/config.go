package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	HTTPPort int

	// PostgreSQL configuration
	DatabaseURL string

	// ClickHouse configuration for the optional circulation history
	HistoryEnabled     bool
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	UseMockDB bool
	Debug     bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// HTTP port (default: 8080)
	portStr := os.Getenv("HTTP_PORT")
	if portStr == "" {
		config.HTTPPort = 8080
	} else {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid HTTP_PORT: %w", err)
		}
		config.HTTPPort = port
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"

	// PostgreSQL configuration (required if not using mock)
	if !config.UseMockDB {
		config.DatabaseURL = os.Getenv("DATABASE_URL")
		if config.DatabaseURL == "" {
			host := os.Getenv("POSTGRES_HOST")
			if host == "" {
				return nil, fmt.Errorf("DATABASE_URL or POSTGRES_HOST is required when USE_MOCK_DB is not set")
			}

			port := os.Getenv("POSTGRES_PORT")
			if port == "" {
				port = "5432" // Default PostgreSQL port
			}

			dbName := os.Getenv("POSTGRES_DB")
			if dbName == "" {
				dbName = "lending"
			}

			user := os.Getenv("POSTGRES_USER")
			if user == "" {
				user = "postgres"
			}

			// Password is optional, can be empty
			password := os.Getenv("POSTGRES_PASSWORD")

			sslMode := os.Getenv("POSTGRES_SSLMODE")
			if sslMode == "" {
				sslMode = "disable"
			}

			config.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
				user, password, host, port, dbName, sslMode)
		}
	}

	// ClickHouse circulation history (optional, enabled when a host is set)
	config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
	if config.ClickHouseHost != "" {
		config.HistoryEnabled = true

		chPortStr := os.Getenv("CLICKHOUSE_PORT")
		if chPortStr == "" {
			config.ClickHousePort = 9000 // Default ClickHouse native port
		} else {
			chPort, err := strconv.Atoi(chPortStr)
			if err != nil {
				return nil, fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
			}
			config.ClickHousePort = chPort
		}

		config.ClickHouseDatabase = os.Getenv("CLICKHOUSE_DATABASE")
		if config.ClickHouseDatabase == "" {
			config.ClickHouseDatabase = "default"
		}

		config.ClickHouseUser = os.Getenv("CLICKHOUSE_USER")
		if config.ClickHouseUser == "" {
			config.ClickHouseUser = "default"
		}

		config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
		// Password is optional, can be empty

		config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	}

	config.Debug = os.Getenv("DEBUG") == "true"

	return config, nil
}
