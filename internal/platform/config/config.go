package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	minJWTKeyLength = 32
)

type Config struct {
	APIPort string
	AppEnv  string
	BaseURL string

	JWTKey           []byte
	SessionMaxAge    time.Duration
	SessionUpdateAge time.Duration
	CookieSecure     bool
	BcryptCost       int

	StoreDriver string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSslMode   string
	DBConnStr   string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	VoteLockTTL   time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	LogLevel  string
	LogFormat string
}

var AppConfig *Config

// Load resolves configuration from, in increasing precedence: defaults, the YAML
// file named by CONFIG_FILE, and the process environment (optionally seeded from .env).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	src := source{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		values, err := readYAMLFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}

	cfg := &Config{
		APIPort: src.getEnv("API_PORT", "8080"),
		AppEnv:  src.getEnv("APP_ENV", "development"),
		BaseURL: strings.TrimRight(src.getEnv("BASE_URL", "http://localhost:8080"), "/"),

		JWTKey:           []byte(src.getEnv("JWT_SECRET", "defaultsecret")),
		SessionMaxAge:    time.Duration(src.getEnvAsInt("SESSION_MAX_AGE_HOURS", 30*24)) * time.Hour,
		SessionUpdateAge: time.Duration(src.getEnvAsInt("SESSION_UPDATE_AGE_HOURS", 24)) * time.Hour,
		CookieSecure:     src.getEnvAsBool("COOKIE_SECURE", false),
		BcryptCost:       src.getEnvAsInt("BCRYPT_COST", 12),

		StoreDriver: strings.ToLower(src.getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DBHost:      src.getEnv("DB_HOST", "localhost"),
		DBPort:      src.getEnv("DB_PORT", "5432"),
		DBUser:      src.getEnv("DB_USER", "user"),
		DBPassword:  src.getEnv("DB_PASSWORD", "password"),
		DBName:      src.getEnv("DB_NAME", "foundation_portal"),
		DBSslMode:   src.getEnv("DB_SSLMODE", "disable"),

		RedisEnabled:  src.getEnvAsBool("REDIS_ENABLED", true),
		RedisAddr:     src.getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: src.getEnv("REDIS_PASSWORD", ""),
		RedisDB:       src.getEnvAsInt("REDIS_DB", 0),
		VoteLockTTL:   time.Duration(src.getEnvAsInt("VOTE_LOCK_TTL_SECONDS", 10)) * time.Second,

		GoogleClientID:     src.getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: src.getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  src.getEnv("GOOGLE_REDIRECT_URL", ""),

		LogLevel:  src.getEnv("LOG_LEVEL", "info"),
		LogFormat: src.getEnv("LOG_FORMAT", "text"),
	}

	if cfg.GoogleRedirectURL == "" {
		cfg.GoogleRedirectURL = cfg.BaseURL + "/api/auth/callback/google"
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string

	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		problems = append(problems, fmt.Sprintf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver))
	}
	if !c.IsDevelopment() && len(c.JWTKey) < minJWTKeyLength {
		problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d bytes outside development", minJWTKeyLength))
	}
	if c.SessionMaxAge <= 0 {
		problems = append(problems, "SESSION_MAX_AGE_HOURS must be positive")
	}
	if c.SessionUpdateAge <= 0 || c.SessionUpdateAge > c.SessionMaxAge {
		problems = append(problems, "SESSION_UPDATE_AGE_HOURS must be positive and not exceed the max age")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		problems = append(problems, "BCRYPT_COST must be between 4 and 31")
	}
	if c.VoteLockTTL <= 0 {
		problems = append(problems, "VOTE_LOCK_TTL_SECONDS must be positive")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

type source struct {
	file map[string]string
}

func readYAMLFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	parsed := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(parsed))
	for key, value := range parsed {
		if value == nil {
			continue
		}
		values[strings.ToUpper(strings.TrimSpace(key))] = fmt.Sprint(value)
	}
	return values, nil
}

func (s source) getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if value, exists := s.file[key]; exists {
		return value
	}
	return fallback
}

func (s source) getEnvAsInt(key string, fallback int) int {
	valueStr := s.getEnv(key, "")
	if value, err := strconv.Atoi(strings.TrimSpace(valueStr)); err == nil {
		return value
	}
	return fallback
}

func (s source) getEnvAsBool(key string, fallback bool) bool {
	valueStr := s.getEnv(key, "")
	if value, err := strconv.ParseBool(strings.TrimSpace(valueStr)); err == nil {
		return value
	}
	return fallback
}
