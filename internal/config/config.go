package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// PathEnv names the variable holding an optional YAML config file.
const PathEnv = "AGENDA_CONFIG"

// Config stores runtime configuration. Values come from built-in defaults,
// then the optional YAML file, then environment variables (a .env file in
// the working directory is loaded first).
type Config struct {
	Port                 string        `koanf:"port"`
	TwilioAccountSID     string        `koanf:"twilio_account_sid"`
	TwilioAuthToken      string        `koanf:"twilio_auth_token"`
	TwilioWhatsAppNumber string        `koanf:"twilio_whatsapp_number"`
	OpenAIAPIKey         string        `koanf:"openai_api_key"`
	OpenAIModel          string        `koanf:"openai_model"`
	OpenAIBaseURL        string        `koanf:"openai_base_url"`
	DatabaseURL          string        `koanf:"database_url"`
	SQLitePath           string        `koanf:"sqlite_path"`
	Timezone             string        `koanf:"local_timezone"`
	TelegramToken        string        `koanf:"telegram_token"`
	TelegramAllowed      string        `koanf:"telegram_allowed_ids"`
	SweepInterval        time.Duration `koanf:"sweep_interval"`
	DigestSchedule       string        `koanf:"digest_schedule"`
	MinConfidence        float64       `koanf:"min_confidence"`
	SessionTTL           time.Duration `koanf:"session_ttl"`

	LocalTimezone      *time.Location `koanf:"-"`
	TelegramAllowedIDs []int64        `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"port":            "8080",
		"openai_model":    "gpt-4o-mini",
		"sqlite_path":     "agenda.db",
		"local_timezone":  "Local",
		"sweep_interval":  "1m",
		"digest_schedule": "0 8 * * *",
		"min_confidence":  0.6,
		"session_ttl":     "24h",
	}
}

// envKeys lists the environment variables read into the config.
var envKeys = map[string]bool{
	"PORT":                   true,
	"TWILIO_ACCOUNT_SID":     true,
	"TWILIO_AUTH_TOKEN":      true,
	"TWILIO_WHATSAPP_NUMBER": true,
	"OPENAI_API_KEY":         true,
	"OPENAI_MODEL":           true,
	"OPENAI_BASE_URL":        true,
	"DATABASE_URL":           true,
	"SQLITE_PATH":            true,
	"LOCAL_TIMEZONE":         true,
	"TELEGRAM_TOKEN":         true,
	"TELEGRAM_ALLOWED_IDS":   true,
	"SWEEP_INTERVAL":         true,
	"DIGEST_SCHEDULE":        true,
	"MIN_CONFIDENCE":         true,
	"SESSION_TTL":            true,
}

// Load reads configuration values and prepares defaults where applicable.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFile(os.Getenv(PathEnv))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider("", ".", func(s string) string {
		if !envKeys[s] || os.Getenv(s) == "" {
			return ""
		}
		return strings.ToLower(s)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finish() error {
	location, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("config: invalid LOCAL_TIMEZONE %q, defaulting to system local: %v", c.Timezone, err)
		location = time.Local
	}
	c.LocalTimezone = location

	if c.SweepInterval < time.Second {
		return fmt.Errorf("sweep_interval must be at least 1s, got %s", c.SweepInterval)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be between 0 and 1, got %v", c.MinConfidence)
	}

	ids, err := parseIDs(c.TelegramAllowed)
	if err != nil {
		return fmt.Errorf("telegram_allowed_ids: %w", err)
	}
	c.TelegramAllowedIDs = ids
	return nil
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, field := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
