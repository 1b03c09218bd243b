package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/forecastbot/internal/config"
	"github.com/rewired-gh/forecastbot/internal/logger"
	"github.com/rewired-gh/forecastbot/internal/message"
	"github.com/rewired-gh/forecastbot/internal/metaforecast"
	"github.com/rewired-gh/forecastbot/internal/monitor"
	"github.com/rewired-gh/forecastbot/internal/publisher"
	"github.com/rewired-gh/forecastbot/internal/scheduler"
	"github.com/rewired-gh/forecastbot/internal/telegram"
	"github.com/rewired-gh/forecastbot/internal/twitter"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	envPath    = flag.String("env", ".env", "Path to .env file with credentials")
	change     = flag.Float64("change", monitor.DefaultThreshold, "Probability change threshold for posting (0-1)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	tweet      = flag.Bool("tweet", false, "Actually send posts instead of logging them")
	query      = flag.String("query", "search", "Question set to fetch: search or frontpage")
	once       = flag.Bool("once", false, "Run a single batch even if a schedule is configured")
)

func main() {
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Debug("Configuration loaded from %s (query: %s, threshold: %.3f, dry_run: %v, target: %s)",
		*configPath, cfg.Metaforecast.Query, cfg.Monitor.Threshold, cfg.Publish.DryRun, cfg.Publish.Target)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	poster := newPoster(ctx, cfg)

	pub, err := publisher.New(poster, cfg.Publish.DryRun, cfg.Publish.MinInterval)
	if err != nil {
		logger.Fatal("Failed to initialize publisher: %v", err)
	}
	if pub.DryRun() {
		logger.Info("Dry run: posts will be logged, not sent")
	}

	fetcher, err := metaforecast.NewClient(
		cfg.Metaforecast.Endpoint,
		cfg.Metaforecast.Timeout,
		metaforecast.ClientConfig{
			Query:               metaforecast.Query(cfg.Metaforecast.Query),
			StarsThreshold:      cfg.Metaforecast.StarsThreshold,
			Limit:               cfg.Metaforecast.Limit,
			MaxIdleConns:        cfg.Metaforecast.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.Metaforecast.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.Metaforecast.IdleConnTimeout,
		},
	)
	if err != nil {
		logger.Fatal("Failed to initialize Metaforecast client: %v", err)
	}

	composer := message.NewComposer(cfg.Publish.MaxLength, cfg.Metaforecast.PermalinkBase)

	monCfg := monitor.DefaultConfig()
	monCfg.Threshold = cfg.Monitor.Threshold
	monCfg.FreshnessWindow = cfg.Monitor.FreshnessWindow
	mon := monitor.New(fetcher, composer, pub, monCfg)

	runOnce := func(ctx context.Context) error {
		_, err := mon.Run(ctx)
		return err
	}

	if cfg.Schedule.Cron == "" || *once {
		if err := runOnce(ctx); err != nil {
			logger.Fatal("Run failed: %v", err)
		}
		return
	}

	sched, err := scheduler.New(ctx, cfg.Schedule.Cron, runOnce)
	if err != nil {
		logger.Fatal("Failed to schedule runs: %v", err)
	}
	sched.Start()
	logger.Info("Next run at %s", sched.Next())

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	sched.Stop(stopCtx)
	logger.Info("Service stopped")
}

// applyFlags lets explicitly set command-line flags override the loaded config.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "change":
			cfg.Monitor.Threshold = *change
		case "debug":
			if *debug {
				cfg.Logging.Level = "debug"
			}
		case "tweet":
			cfg.Publish.DryRun = !*tweet
		case "query":
			cfg.Metaforecast.Query = *query
		}
	})
}

// newPoster builds the configured sink and verifies its credentials. Dry runs
// need no sink.
func newPoster(ctx context.Context, cfg *config.Config) publisher.Poster {
	if cfg.Publish.DryRun {
		return nil
	}

	switch cfg.Publish.Target {
	case "telegram":
		client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Debug("Logged in to Telegram as %s", client.Username())
		return client
	default:
		client, err := twitter.NewClient(cfg.Twitter.APIURL, twitter.Credentials{
			ConsumerKey:       cfg.Twitter.ConsumerKey,
			ConsumerSecret:    cfg.Twitter.ConsumerSecret,
			AccessToken:       cfg.Twitter.AccessToken,
			AccessTokenSecret: cfg.Twitter.AccessTokenSecret,
		}, cfg.Twitter.Timeout)
		if err != nil {
			logger.Fatal("Failed to initialize Twitter client: %v", err)
		}
		username, err := client.Username(ctx)
		if err != nil {
			logger.Fatal("Failed to verify Twitter credentials: %v", err)
		}
		logger.Debug("Logged in to Twitter as %s", username)
		return client
	}
}
