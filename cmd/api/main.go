package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"studio/internal/cache"
	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/infra/geoip"
	"studio/internal/metrics"

	repoadapter "studio/internal/adapter/repo"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	jobCache, err := cache.New(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer jobCache.Close()

	adapters, err := infra.BuildAdapters(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build provider adapters")
	}
	if len(adapters) == 0 {
		logger.Warn().Msg("no provider credentials configured; generation routes will reject requests")
	}

	refiner, err := infra.NewRefiner(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build prompt refiner")
	}

	store, err := infra.NewStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	var geo geoip.CountryResolver
	if cfg.GeoIPDBPath != "" {
		geo, err = geoip.NewResolver(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn().Err(err).Msg("geoip database unavailable; stats will not be country tagged")
		}
	}

	app := &handlers.App{
		Log:             logger,
		Jobs:            repoadapter.NewJobRepository(dbpool),
		Assets:          repoadapter.NewAssetRepository(dbpool),
		Stats:           repoadapter.NewStatsRepository(dbpool),
		Cache:           jobCache,
		Metrics:         metrics.New(),
		Adapters:        adapters,
		Refiner:         refiner,
		Geo:             geo,
		Store:           store,
		ProxyClient:     &http.Client{Timeout: 50 * time.Second},
		ProxyAllowHosts: cfg.ProxyAllowHosts,
	}

	staticDir := ""
	if cfg.MinioEndpoint == "" {
		staticDir = cfg.StoragePath
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       staticDir,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
