// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	domaincfg "cardtree-backend/domain/config"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string
	ParentIndex   string // GSI1 - children listings by parent
	EventBusName  string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// Cache configuration
	NodeTTL        time.Duration
	ChildrenTTL    time.Duration
	BreadcrumbTTL  time.Duration
	DurableCaching bool

	// Tree rules
	MaxTreeDepth       int
	MaxDescendantNodes int
	DeletePolicy       string // "reject" or "cascade"

	// Logging
	LogLevel string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool

	// Metrics
	MetricsNamespace string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "cardtree")),
		ParentIndex:   getEnv("PARENT_INDEX_NAME", "GSI1"),
		EventBusName:  getEnv("EVENT_BUS_NAME", "cardtree-events"),

		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		NodeTTL:        getEnvDuration("NODE_CACHE_TTL", 5*time.Minute),
		ChildrenTTL:    getEnvDuration("CHILDREN_CACHE_TTL", 5*time.Minute),
		BreadcrumbTTL:  getEnvDuration("BREADCRUMB_CACHE_TTL", 10*time.Minute),
		DurableCaching: getEnvBool("ENABLE_DURABLE_CACHE", false),

		MaxTreeDepth:       getEnvInt("MAX_TREE_DEPTH", 64),
		MaxDescendantNodes: getEnvInt("MAX_DESCENDANT_NODES", 10000),
		DeletePolicy:       getEnv("DELETE_POLICY", "reject"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "cardtree-backend"),

		LogLevel:         getEnv("LOG_LEVEL", "info"),
		EnableMetrics:    getEnvBool("ENABLE_METRICS", false),
		EnableTracing:    getEnvBool("ENABLE_TRACING", false),
		EnableCORS:       getEnvBool("ENABLE_CORS", true),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "CardTree"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig for backwards compatibility
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
	}
	if c.DeletePolicy != "reject" && c.DeletePolicy != "cascade" {
		return fmt.Errorf("DELETE_POLICY must be 'reject' or 'cascade', got %q", c.DeletePolicy)
	}

	return nil
}

// DomainConfig derives the domain rule set from the loaded configuration
func (c *Config) DomainConfig() *domaincfg.DomainConfig {
	domain := domaincfg.DefaultDomainConfig()
	domain.MaxTreeDepth = c.MaxTreeDepth
	domain.MaxDescendantNodes = c.MaxDescendantNodes
	if c.DeletePolicy == "cascade" {
		domain.DeletePolicy = domaincfg.DeletePolicyCascade
	}
	return domain
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

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
