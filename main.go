package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ppbooks/noveltybot/config"
	"ppbooks/noveltybot/helpers"
	"ppbooks/noveltybot/internal/crawler"
	"ppbooks/noveltybot/logger"
	"ppbooks/noveltybot/services/cache"
	"ppbooks/noveltybot/services/ledger"
	"ppbooks/noveltybot/services/notifier"
	"ppbooks/noveltybot/services/worker"

	"github.com/joho/godotenv"
)

// rateLimitCacheKey marks the site as blocked after a 429
const rateLimitCacheKey = "ppbooks_rate_limited"

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("listing_url", cfg.NoveltyURL).
		Str("ledger_backend", cfg.LedgerBackend).
		Msg("Starting novelty check")

	// A signal stops the run between items; progress so far is still saved
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	services := initializeServices(cfg)
	summary := newWorker(cfg, services).Run(ctx)

	services.Cleanup()
	stop()

	if cfg.FailOnDegraded && summary.Degraded() {
		log.Warn().Msg("Run was degraded, exiting with status 1")
		os.Exit(1)
	}
}

// Services holds all the initialized services
type Services struct {
	Cache    cache.CacheService
	Ledger   ledger.Ledger
	Notifier notifier.Notifier
	closers  []func() error
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			logger.Warn("Failed to close service: %v", err)
		}
	}
}

// initializeServices initializes all required services
func initializeServices(cfg *config.Config) *Services {
	services := &Services{}

	// Optional rate-limit guard
	if cfg.MemcacheAddr != "" {
		memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := memcacheService.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, rate-limit guard disabled")
		} else {
			services.Cache = memcacheService
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	switch cfg.LedgerBackend {
	case config.LedgerBackendRedis:
		redisLedger := ledger.NewRedisLedger(cfg.RedisAddr, cfg.RedisDB, cfg.RedisLedgerKey)
		services.Ledger = redisLedger
		services.closers = append(services.closers, redisLedger.Close)
		logger.Info("Using Redis ledger at %s (DB: %d, Key: %s)", cfg.RedisAddr, cfg.RedisDB, cfg.RedisLedgerKey)
	default:
		services.Ledger = ledger.NewFileLedger(cfg.LedgerPath)
		logger.Info("Using file ledger at %s", cfg.LedgerPath)
	}

	services.Notifier = notifier.NewTelegramNotifier(
		cfg.TelegramAPIURL,
		cfg.TelegramToken,
		cfg.TelegramChatID,
		notifier.WithTimeout(cfg.FetchTimeout),
	)

	return services
}

// newWorker wires the crawlers and services into a single-pass worker
func newWorker(cfg *config.Config, services *Services) *worker.Worker {
	fetcher := helpers.NewFetcher(cfg.FetchTimeout)
	crawlerConfig := crawler.CrawlerConfig{
		URL:       cfg.NoveltyURL,
		CacheKey:  rateLimitCacheKey,
		BlockTime: cfg.RateLimitBlock,
		Selectors: crawler.DefaultSelectors,
	}

	return worker.NewWorker(
		crawler.NewListingCrawler(crawlerConfig, fetcher, services.Cache),
		crawler.NewDetailCrawler(crawlerConfig, fetcher, services.Cache),
		services.Ledger,
		services.Notifier,
		cfg.ItemDelay,
	)
}
