package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateNodeID derives a node identifier from hostname and PID,
// used to seed the snowflake generator.
func generateNodeID() int64 {
	hostname, _ := os.Hostname()
	var sum int64
	for _, c := range hostname {
		sum += int64(c)
	}
	return (sum + int64(os.Getpid())) % 1024
}

type Config struct {
	Port        string
	Environment string

	// Database
	DatabaseURL string
	RedisURL    string
	MongoDBURL  string
	MongoDBName string

	// Neo4j
	Neo4jURL      string
	Neo4jUsername string
	Neo4jPassword string

	// Auth
	JWTSecret string

	// Completion API
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int

	// Microsoft Graph
	MSClientID     string
	MSClientSecret string
	MSTenantID     string
	MailboxAddress string

	// HubSpot
	HubSpotToken          string
	HubSpotCustomerMarker string
	HubSpotPageLimit      int
	HubSpotRatePerSec     int

	// Slack
	SlackWebhookURL string
	SlackChannel    string

	// Pipeline
	BatchSize            int
	LearnThresholdBatch  float64
	LearnThresholdSingle float64
	ThreadConfidence     float64
	TokenExpiryBuffer    time.Duration
	SnapshotTTL          time.Duration
	BodyPreviewLength    int

	// Override policy
	OverrideLookbackHours  int
	OverrideNoLearnFolders []string
	OverrideDeactivate     bool

	// Node
	NodeID int64

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "bizops"),

		// Neo4j
		Neo4jURL:      getEnv("NEO4J_URL", ""),
		Neo4jUsername: getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),

		// Auth
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Completion API
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 60),

		// Microsoft Graph
		MSClientID:     getEnv("MS_CLIENT_ID", ""),
		MSClientSecret: getEnv("MS_CLIENT_SECRET", ""),
		MSTenantID:     getEnv("MS_TENANT_ID", "common"),
		MailboxAddress: getEnv("MAILBOX_ADDRESS", ""),

		// HubSpot
		HubSpotToken:          getEnv("HUBSPOT_TOKEN", ""),
		HubSpotCustomerMarker: getEnv("HUBSPOT_CUSTOMER_MARKER", "CUSTOMER"),
		HubSpotPageLimit:      getEnvInt("HUBSPOT_PAGE_LIMIT", 100),
		HubSpotRatePerSec:     getEnvInt("HUBSPOT_RATE_PER_SEC", 8),

		// Slack
		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		SlackChannel:    getEnv("SLACK_CHANNEL", "#ops-email"),

		// Pipeline
		BatchSize:            getEnvInt("CLASSIFY_BATCH_SIZE", 20),
		LearnThresholdBatch:  getEnvFloat("LEARN_THRESHOLD_BATCH", 0.90),
		LearnThresholdSingle: getEnvFloat("LEARN_THRESHOLD_SINGLE", 0.95),
		ThreadConfidence:     getEnvFloat("THREAD_MATCH_CONFIDENCE", 0.95),
		TokenExpiryBuffer:    time.Duration(getEnvInt("TOKEN_EXPIRY_BUFFER_MIN", 5)) * time.Minute,
		SnapshotTTL:          time.Duration(getEnvInt("SNAPSHOT_TTL_SEC", 120)) * time.Second,
		BodyPreviewLength:    getEnvInt("BODY_PREVIEW_LENGTH", 500),

		// Override policy
		OverrideLookbackHours:  getEnvInt("OVERRIDE_LOOKBACK_HOURS", 48),
		OverrideNoLearnFolders: getEnvSlice("OVERRIDE_NO_LEARN_FOLDERS", []string{"Action Required"}),
		OverrideDeactivate:     getEnvBool("OVERRIDE_DEACTIVATE_RULES", false),

		// Node
		NodeID: int64(getEnvInt("NODE_ID", int(generateNodeID()))),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
