// Command positioncore wires the Monitor Engine's adapters together and
// runs it until SIGINT/SIGTERM.
//
// Architecture: Oracle -> Engine -> Executor, with the Durable Store Adapter
// backing both the Registry's rehydrate path and every terminal write.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/positioncore/config"
	"github.com/web3guy0/positioncore/events"
	"github.com/web3guy0/positioncore/metrics"
	"github.com/web3guy0/positioncore/monitor"
	"github.com/web3guy0/positioncore/notify"
	"github.com/web3guy0/positioncore/oracle"
	"github.com/web3guy0/positioncore/registry"
	"github.com/web3guy0/positioncore/store"
	"github.com/web3guy0/positioncore/venue"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Msg("⚡ positioncore starting...")

	db, err := store.Open(cfg.StoreConnection)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open durable store")
	}

	priceOracle := buildOracle()
	if ws, ok := priceOracle.(*oracle.WebsocketOracle); ok {
		ws.Start()
		defer ws.Stop()
	}

	executor, err := buildExecutor()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize swap executor")
	}

	bus := events.NewBus()
	mtr := metrics.New()

	engineCfg := monitor.Config{
		PriceTick:                cfg.PriceTick(),
		SyncTick:                 cfg.SyncTick(),
		PriceFetchTimeout:        cfg.PriceFetchTimeout(),
		Epsilon:                  cfg.Epsilon(),
		TrailingEnabledByDefault: cfg.TrailingStopEnabledByDefault,
		StopGracePeriod:          cfg.StopGracePeriod,
	}
	engine := monitor.New(engineCfg, registry.New(), db, priceOracle, executor, bus, mtr)

	var notifier *notify.TelegramNotifier
	if cfg.TelegramToken != "" {
		notifier, err = notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Error().Err(err).Msg("telegram notifier disabled")
		} else {
			go notifier.Run(bus)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start monitor engine")
	}

	metricsServer := startMetricsServer(mtr)

	log.Info().Msg("✅ monitor engine running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	if notifier != nil {
		notifier.Stop()
	}

	engine.Stop()

	log.Info().Msg("👋 goodbye")
}

// buildOracle picks a Price Oracle Adapter from the environment: a
// websocket feed if ORACLE_WS_URL is set, otherwise an HTTP polling chain
// against CryptoCompare.
func buildOracle() oracle.Oracle {
	if url := os.Getenv("ORACLE_WS_URL"); url != "" {
		log.Info().Str("url", url).Msg("using websocket price oracle")
		return oracle.NewWebsocketOracle(url, 1.0)
	}

	log.Info().Msg("using HTTP polling price oracle (cryptocompare)")
	return oracle.NewPollOracle(
		oracle.HTTPJSONSource(nil, "https://min-api.cryptocompare.com/data/price?fsym=%s&tsyms=USD", oracle.CryptoCompareExtract),
	)
}

// buildExecutor constructs the Swap Executor Adapter. Dry-run is forced
// unless SWAP_PRIVATE_KEY and SWAP_VENUE_URL are both set.
func buildExecutor() (*venue.OnChainExecutor, error) {
	execCfg := venue.DefaultConfig()
	execCfg.BaseURL = os.Getenv("SWAP_VENUE_URL")
	execCfg.PrivateKey = strings.TrimSpace(os.Getenv("SWAP_PRIVATE_KEY"))

	if execCfg.BaseURL != "" && execCfg.PrivateKey != "" {
		execCfg.DryRun = false
	}

	return venue.NewOnChainExecutor(execCfg)
}

// startMetricsServer exposes mtr's collectors on /metrics.
func startMetricsServer(mtr *metrics.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(mtr.Gatherer(), promhttp.HandlerOpts{}))

	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	log.Info().Str("addr", addr).Msg("📈 metrics server listening")
	return srv
}
