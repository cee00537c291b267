package app

import (
	"strconv"

	"github.com/rs/zerolog/log"
)

// Config collects every runtime setting the services need. Built once in main
// and passed by reference; nothing reads the environment after startup.
type Config struct {
	TelegramToken   string
	MainAdminID     int64
	SheetID         string
	CredentialsFile string

	// Column names in the main sheet.
	ColFirstName string
	ColLastName  string
	ColBirthDate string

	// Columns whose values carry the date display/parse contract.
	DateColumns []string

	// Reserved sheet names.
	UsersSheet     string
	AccessLogSheet string

	SessionStorage        string // "memory" or "redis"
	RedisURL              string
	SessionTimeoutMinutes int

	Environment string
	ServiceURL  string
	Port        int
}

// LoadConfig reads the full configuration from the environment. Missing
// required values are fatal, matching GetRequiredEnv behavior.
func LoadConfig() *Config {
	cfg := &Config{
		TelegramToken:   GetRequiredEnv("TELEGRAM_TOKEN"),
		SheetID:         GetRequiredEnv("SHEET_ID"),
		CredentialsFile: GetEnvWithDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json"),

		ColFirstName: GetEnvWithDefault("COL_FIRST_NAME", "Имя"),
		ColLastName:  GetEnvWithDefault("COL_LAST_NAME", "Фамилия"),
		ColBirthDate: GetEnvWithDefault("COL_BIRTH_DATE", "Дата рождения"),

		UsersSheet:     "Users",
		AccessLogSheet: "AccessLog",

		SessionStorage: GetEnvWithDefault("SESSION_STORAGE", "memory"),
		RedisURL:       GetEnvWithDefault("REDIS_URL", ""),

		Environment: GetEnvWithDefault("ENV", "development"),
		ServiceURL:  GetEnvWithDefault("SERVICE_URL", ""),
	}
	cfg.DateColumns = []string{cfg.ColBirthDate, "Дата", "Дата регистрации"}

	cfg.MainAdminID = parseInt64Env("MAIN_ADMIN_ID", 0)
	if cfg.MainAdminID == 0 {
		log.Fatal().Msg("MAIN_ADMIN_ID environment variable is required")
	}

	cfg.SessionTimeoutMinutes = int(parseInt64Env("SESSION_TIMEOUT_MINUTES", 30))
	cfg.Port = int(parseInt64Env("PORT", 8080))

	return cfg
}

// IsDateColumn reports whether values in the named column carry the date
// display/parse contract.
func (c *Config) IsDateColumn(name string) bool {
	for _, col := range c.DateColumns {
		if col == name {
			return true
		}
	}
	return false
}

// IsProduction reports whether the app runs with the production profile.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseInt64Env(key string, defaultValue int64) int64 {
	raw := GetEnvWithDefault(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Not an integer, using default")
		return defaultValue
	}
	return v
}
