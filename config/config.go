package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "ppbooks/noveltybot/pkg/errors"
)

const (
	// DefaultNoveltyURL is page 1 of the "sorted by date" novelty listing
	DefaultNoveltyURL = "https://pp-books.com.ua/novynka/?orderby=date&paged=1"

	// LedgerBackendFile stores the ledger as a JSON document on disk
	LedgerBackendFile = "file"
	// LedgerBackendRedis stores the ledger in a Redis set
	LedgerBackendRedis = "redis"
)

// Config represents the application configuration
type Config struct {
	// Telegram configuration
	TelegramToken  string
	TelegramChatID string
	TelegramAPIURL string

	// Crawler configuration
	NoveltyURL   string
	FetchTimeout time.Duration
	ItemDelay    time.Duration

	// Ledger configuration
	LedgerBackend  string
	LedgerPath     string
	RedisAddr      string
	RedisDB        int
	RedisLedgerKey string

	// Memcache configuration, empty address disables the rate-limit guard
	MemcacheAddr   string
	RateLimitBlock time.Duration

	FailOnDegraded bool

	// Environment
	Environment string

	// parseErrors holds malformed numeric or boolean variables, reported by Validate
	parseErrors []error
}

// LoadConfig loads the configuration from environment variables with defaults.
// Malformed values are kept aside and reported by Validate.
func LoadConfig() *Config {
	var parseErrors []error
	getInt := func(key, defaultValue string) int {
		value, err := strconv.Atoi(strings.TrimSpace(getEnv(key, defaultValue)))
		if err != nil {
			parseErrors = append(parseErrors, apperrors.NewConfiguration(key+" must be an integer", err))
		}
		return value
	}

	redisDB := getInt("REDIS_DB", "0")
	fetchTimeout := getInt("FETCH_TIMEOUT_SECONDS", "10")
	itemDelay := getInt("ITEM_DELAY_MS", "1000")
	blockSeconds := getInt("RATE_LIMIT_BLOCK_SECONDS", "600")
	failOnDegraded, err := strconv.ParseBool(strings.TrimSpace(getEnv("FAIL_ON_DEGRADED", "false")))
	if err != nil {
		parseErrors = append(parseErrors, apperrors.NewConfiguration("FAIL_ON_DEGRADED must be a boolean", err))
	}

	return &Config{
		TelegramToken:  strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		TelegramChatID: strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")),
		TelegramAPIURL: strings.TrimRight(getEnv("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
		NoveltyURL:     getEnv("NOVELTY_URL", DefaultNoveltyURL),
		FetchTimeout:   time.Duration(fetchTimeout) * time.Second,
		ItemDelay:      time.Duration(itemDelay) * time.Millisecond,
		LedgerBackend:  strings.ToLower(getEnv("LEDGER_BACKEND", LedgerBackendFile)),
		LedgerPath:     getEnv("LEDGER_PATH", "sent_items.json"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:        redisDB,
		RedisLedgerKey: getEnv("REDIS_LEDGER_KEY", "noveltybot:sent"),
		MemcacheAddr:   os.Getenv("MEMCACHE_ADDR"),
		RateLimitBlock: time.Duration(blockSeconds) * time.Second,
		FailOnDegraded: failOnDegraded,
		Environment:    getEnv("NOVELTY_ENVIRONMENT", "development"),
		parseErrors:    parseErrors,
	}
}

// Validate checks that the configuration can drive a run
func (c *Config) Validate() error {
	if len(c.parseErrors) > 0 {
		return c.parseErrors[0]
	}
	if c.TelegramToken == "" {
		return apperrors.NewConfiguration("TELEGRAM_BOT_TOKEN is required", nil)
	}
	if c.TelegramChatID == "" {
		return apperrors.NewConfiguration("TELEGRAM_CHAT_ID is required", nil)
	}
	if c.NoveltyURL == "" {
		return apperrors.NewConfiguration("NOVELTY_URL must not be empty", nil)
	}
	if c.FetchTimeout <= 0 {
		return apperrors.NewConfiguration("FETCH_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.ItemDelay < 0 {
		return apperrors.NewConfiguration("ITEM_DELAY_MS must not be negative", nil)
	}

	switch c.LedgerBackend {
	case LedgerBackendFile:
		if c.LedgerPath == "" {
			return apperrors.NewConfiguration("LEDGER_PATH must not be empty", nil)
		}
	case LedgerBackendRedis:
		if c.RedisAddr == "" || c.RedisLedgerKey == "" {
			return apperrors.NewConfiguration("REDIS_ADDR and REDIS_LEDGER_KEY are required for the redis ledger", nil)
		}
	default:
		return apperrors.NewConfiguration("unknown LEDGER_BACKEND "+strconv.Quote(c.LedgerBackend), nil)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
