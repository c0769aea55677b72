package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"SmartHome.dashboard/astro"
	"SmartHome.dashboard/clients"
	"SmartHome.dashboard/config"
	"SmartHome.dashboard/controllers"
	"SmartHome.dashboard/dao"
	"SmartHome.dashboard/routes"
	"SmartHome.dashboard/services"
	"SmartHome.dashboard/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Dashboard stopped with error")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	logger.Info().Float64("lat", cfg.Lat).Float64("lon", cfg.Lon).Str("tz", cfg.TimeZone.String()).Msg("Starting dashboard")
	utils.WaitForNetwork(ctx, utils.DefaultNetworkTargets, cfg.WaitForNetwork)

	var store dao.SnapshotStore = dao.NewFileCache(cfg.CacheFile, component(logger, "cache"))
	if cfg.RedisEnabled() {
		redisClient, err := config.InitRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, using the cache file")
		} else {
			defer redisClient.Close()
			store = dao.NewRedisCache(redisClient, cfg.RedisTTL)
		}
	}

	archive := dao.MultiArchiver{dao.NewJSONLArchive(cfg.ArchiveDir)}
	if cfg.InfluxEnabled() {
		influxClient, err := config.NewInfluxClient(ctx, cfg.InfluxDBURL, cfg.InfluxDBToken)
		if err != nil {
			logger.Warn().Err(err).Msg("InfluxDB unavailable, archiving to JSONL only")
		} else {
			defer influxClient.Close()
			if err := dao.EnsureBucket(ctx, influxClient, cfg.InfluxDBOrg, cfg.InfluxDBBucket); err != nil {
				logger.Warn().Err(err).Msg("Could not ensure the InfluxDB bucket")
			}
			archive = append(archive, dao.NewInfluxArchive(influxClient, cfg.InfluxDBOrg, cfg.InfluxDBBucket))
		}
	}

	var publisher services.Publisher
	if cfg.MQTTEnabled() {
		mqttClient, err := config.NewMQTTClient(cfg.MQTTBroker)
		if err != nil {
			logger.Warn().Err(err).Msg("MQTT unavailable, not publishing updates")
		} else {
			defer mqttClient.Disconnect(250)
			publisher = dao.NewMQTTPublisher(mqttClient, cfg.MQTTTopicPrefix)
		}
	}

	obs := astro.Observer{Lat: cfg.Lat, Lon: cfg.Lon}
	metno := clients.NewMetNoClient(cfg.MetNoAPIURL, cfg.MetNoUserAgent, cfg.Lat, cfg.Lon, cfg.TimeZone)
	solarEdge := clients.NewSolarEdgeClient(cfg.SolarEdgeAPIURL, cfg.SolarEdgeSiteID, cfg.SolarEdgeAPIKey)

	pressure := dao.NewPressureHistory(cfg.PressureHistoryFile)
	daily := dao.NewPVDailyBuffer(cfg.PVDailyFile, cfg.TimeZone, component(logger, "pv-daily"))

	pv := services.NewPVScheduler(services.PVDeps{
		Fetch:       solarEdge.Overview,
		Store:       store,
		Daily:       daily,
		MetNo:       metno,
		Publisher:   publisher,
		Observer:    obs,
		Location:    cfg.TimeZone,
		MaxQueries:  cfg.PVMaxQueries,
		MinInterval: cfg.PVMinInterval,
		Logger:      component(logger, "pv"),
	})

	var netatmo *services.NetatmoService
	if cfg.NetatmoEnabled() {
		netatmoClient := clients.NewNetatmoClient(cfg.NetatmoAPIURL, cfg.ClientID, cfg.ClientSecret)
		tokens := clients.NewTokenSource(netatmoClient, dao.NewTokenStore(cfg.TokenFile), component(logger, "netatmo-auth"))
		netatmo = services.NewNetatmoService(services.NetatmoDeps{
			Client:    netatmoClient,
			Tokens:    tokens,
			Store:     store,
			Pressure:  pressure,
			Archive:   archive,
			Publisher: publisher,
			PVPower:   pv.LastPower,
			Location:  cfg.TimeZone,
			Interval:  cfg.NetatmoInterval,
			Logger:    component(logger, "netatmo"),
		})
	} else {
		logger.Warn().Msg("Netatmo credentials missing, station source disabled")
	}

	astroService := services.NewAstroService(metno, obs, cfg.TimeZone, cfg.AstronomyInterval, store, component(logger, "astro"))

	dashboard := services.NewDashboard(services.DashboardDeps{
		Config: services.DashboardConfig{
			NetatmoInterval:     cfg.NetatmoInterval,
			AstronomyInterval:   cfg.AstronomyInterval,
			PVFlushInterval:     cfg.PVFlushInterval,
			HealthCheckInterval: cfg.HealthCheckInterval,
		},
		Netatmo:  netatmo,
		Astro:    astroService,
		PV:       pv,
		Pressure: pressure,
		Daily:    daily,
		Store:    store,
		Location: cfg.TimeZone,
		Logger:   component(logger, "dashboard"),
	})
	if err := dashboard.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("Restoring cached state was incomplete")
	}

	var auth func(http.Handler) http.Handler
	if cfg.Auth != nil {
		var err error
		if auth, err = utils.EnsureValidToken(*cfg.Auth); err != nil {
			return err
		}
	} else {
		logger.Info().Msg("JWT_SECRET not set, manual refresh endpoint disabled")
	}

	router := routes.SetupRouter(controllers.NewDashboardController(dashboard, logger), auth)
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- dashboard.Run(runCtx) }()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown requested")
	case err, ok := <-serverErr:
		if ok {
			runErr = err
		}
	}

	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("Dashboard loops ended with error")
	}
	if err := dashboard.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
