package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string

	// Identity provider (JWKS for bearer-token verification).
	JWKSURL string

	// Postgres user/credit store.
	DatabaseURL string
	TablePrefix string

	// Redis response cache. Empty disables caching (always-miss).
	RedisAddr     string
	RedisPassword string
	CacheTTL      int // seconds, default 3600

	// LLM provider.
	OpenAIAPIKey string
	DefaultModel string

	// Tenant registry root and process-default tenant.
	InstancesRoot   string
	DefaultInstance string

	// Per-(user,chat) memory logs. Defaults to <InstancesRoot>/historial.
	MemoryRoot string

	// Read-only normative citation database (SQLite). Empty disables the
	// citation resolver.
	NormativeDBPath string

	// Pricing table override; empty uses the embedded table.
	PricingPath string

	// Per-turn deadline in seconds (LLM streaming plus post-processing).
	TurnTimeout int

	// Debug enables debug-level logging.
	Debug bool

	// LogDir enables mirrored file logging when set. Old files are rotated
	// out past LogMaxFiles.
	LogDir      string
	LogMaxFiles int
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	instancesRoot := getEnv("INSTANCES_ROOT", "./instances")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),

		JWKSURL: getEnv("JWKS_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		TablePrefix: getEnv("TABLE_PREFIX", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CacheTTL:      getEnvInt("CACHE_TTL_SECONDS", 3600),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		DefaultModel: getEnv("DEFAULT_MODEL", "gpt-4o-mini"),

		InstancesRoot:   instancesRoot,
		DefaultInstance: getEnv("DEFAULT_INSTANCE", "general"),
		MemoryRoot:      getEnv("MEMORY_ROOT", instancesRoot+"/historial"),

		NormativeDBPath: getEnv("NORMATIVE_DB_PATH", ""),
		PricingPath:     getEnv("PRICING_PATH", ""),

		TurnTimeout: getEnvInt("TURN_TIMEOUT_SECONDS", 300),

		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 10),
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
