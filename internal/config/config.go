package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	LogMode  string

	BankDir  string // question banks, one JSON file per module
	AssetDir string // audio, images and uploaded recordings

	ResultsDriver string // memory|sqlite|postgres|redis
	DBDSN         string
	RedisAddr     string
	RedisPrefix   string

	SessionSecret   string
	SessionTTL      time.Duration
	RoundIdleTTL    time.Duration
	JanitorInterval time.Duration

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string

	// Grammar check (chat-completion proxy)
	GrammarKeyURL  string
	OpenAIKey      string
	OpenAIBaseURL  string
	OpenAIModel    string
	GrammarTimeout time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	logMode := "dev"
	if mode == ModeOnline {
		logMode = "prod"
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		LogMode:  envOr("LOG_MODE", logMode),

		BankDir:  envOr("BANK_DIR", "./public"),
		AssetDir: envOr("ASSET_DIR", "./data"),

		ResultsDriver: envOr("RESULTS_DRIVER", "memory"),
		DBDSN:         os.Getenv("DB_DSN"),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPrefix:   envOr("REDIS_PREFIX", "detprep"),

		SessionSecret:   envOr("SESSION_SECRET", "detprep-dev-secret"),
		SessionTTL:      envDuration("SESSION_TTL", 12*time.Hour),
		RoundIdleTTL:    envDuration("ROUND_IDLE_TTL", 2*time.Hour),
		JanitorInterval: envDuration("JANITOR_INTERVAL", 10*time.Minute),

		AdminUser:     envOr("ADMIN_USER", "admin"),
		AdminPassHash: os.Getenv("ADMIN_PASS_HASH"),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000"),

		GrammarKeyURL:  envOr("GRAMMAR_KEY_URL", "https://api-secret.vercel.app/api/get-api-key"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  strings.TrimRight(envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		OpenAIModel:    envOr("OPENAI_MODEL", "gpt-3.5-turbo"),
		GrammarTimeout: envDuration("GRAMMAR_TIMEOUT", 60*time.Second),
	}
}

func envOr(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// envDuration accepts Go durations ("90s", "2h") or a bare number of seconds.
func envDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n := envInt(k, 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EnableAdmin reports whether the admin surface can authenticate anyone.
func (c Config) EnableAdmin() bool {
	return envBool("ENABLE_ADMIN", c.AdminPassHash != "")
}
