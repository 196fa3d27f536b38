package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	JWTSecret   string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	CORSOrigins []string
	// PermissionCacheTTL bounds how long a replica serves stale permission
	// codes after a change; operators are told changes take this long.
	PermissionCacheTTL time.Duration

	SeedDefaults  bool
	AdminEmail    string
	AdminPassword string
}

// Console holds the settings of the operator console.
type Console struct {
	APIURL      string
	Token       string
	Email       string
	Password    string
	Timeout     time.Duration
	Environment string
}

// loadEnvFiles reads the first .env file found. Missing files are fine.
func loadEnvFiles(paths ...string) string {
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads the API server configuration from configs/.env, .env and the environment.
func Load() (*Config, string, error) {
	src := loadEnvFiles("configs/.env", ".env")

	ttl, err := getDuration("PERMISSION_CACHE_TTL", 60*time.Second)
	if err != nil {
		return nil, src, err
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", "postgres"),
		DBName:             getEnv("DB_NAME", "postgres"),
		DBSSLMode:          getEnv("DB_SSLMODE", "disable"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		PermissionCacheTTL: ttl,
		SeedDefaults:       getEnv("SEED_DEFAULTS", "false") == "true",
		AdminEmail:         getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, src, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "default_super_secret_key"
	}
	return cfg, src, nil
}

// LoadConsole reads the console configuration. Flags applied by the caller
// take precedence over these values.
func LoadConsole() (*Console, error) {
	loadEnvFiles(".env")

	timeout, err := getDuration("CONSOLE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	return &Console{
		APIURL:      getEnv("CONSOLE_API_URL", "http://localhost:8080"),
		Token:       getEnv("CONSOLE_TOKEN", ""),
		Email:       getEnv("CONSOLE_EMAIL", ""),
		Password:    getEnv("CONSOLE_PASSWORD", ""),
		Timeout:     timeout,
		Environment: getEnv("ENVIRONMENT", "development"),
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	// Plain integers are seconds.
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return time.Duration(secs) * time.Second, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
