package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Persistence driver names accepted in PERSISTENCE_DRIVER
const (
	DriverDynamoDB = "dynamodb"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// SweeperConfig holds configuration for the missed-entry sweeper
type SweeperConfig struct {
	// Enabled determines whether the background sweep runs at all
	Enabled bool
	// IntervalMinutes is the gap between sweep runs
	IntervalMinutes int
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Persistence configuration
	PersistenceDriver string
	SQLitePath        string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string
	IndexName     string // GSI1 - for status + scheduled-date queries
	EventBusName  string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// Logging
	LogLevel string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Feature flags
	EnableCORS      bool
	RateLimitPerMin int

	// Sweeper configuration
	Sweeper SweeperConfig
}

// LoadConfig loads configuration from environment variables. In development
// a .env file is folded into the environment first when one is present.
func LoadConfig() (*Config, error) {
	if getEnv("ENVIRONMENT", "development") == "development" {
		_ = godotenv.Load()
	}

	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		PersistenceDriver: getEnv("PERSISTENCE_DRIVER", DriverSQLite),
		SQLitePath:        getEnv("SQLITE_PATH", "studypace.db"),

		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "studypace")),
		IndexName:     getEnv("INDEX_NAME", "ScheduleIndex"),
		EventBusName:  getEnv("EVENT_BUS_NAME", "studypace-events"),

		// Lambda configuration
		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		// Authentication
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "studypace"),

		// Logging and features
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		EnableCORS:      getEnvBool("ENABLE_CORS", true),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 120),

		// Sweeper configuration
		Sweeper: SweeperConfig{
			Enabled:         getEnvBool("SWEEPER_ENABLED", true),
			IntervalMinutes: getEnvInt("SWEEPER_INTERVAL_MINUTES", 30),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.PersistenceDriver {
	case DriverDynamoDB, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown PERSISTENCE_DRIVER %q", c.PersistenceDriver)
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.PersistenceDriver == DriverMemory {
			return fmt.Errorf("PERSISTENCE_DRIVER memory is not allowed in production")
		}
		if c.PersistenceDriver == DriverDynamoDB && c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
	}

	if c.Sweeper.IntervalMinutes <= 0 {
		return fmt.Errorf("SWEEPER_INTERVAL_MINUTES must be positive")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
