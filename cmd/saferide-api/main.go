// README: Entry point; loads config, wires services, starts HTTP server and background sweeper.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"saferide/internal/config"
	httptransport "saferide/internal/http"
	"saferide/internal/infra"
	"saferide/internal/maps"
	"saferide/internal/modules/directory"
	"saferide/internal/modules/dispatch"
	"saferide/internal/modules/driver"
	"saferide/internal/modules/monitor"
	"saferide/internal/modules/ride"
	"saferide/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := infra.NewLogger()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		logger.Fatal("SAFERIDE_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Fatal("firebase init", zap.Error(err))
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("db init", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer func() { _ = redisClient.Close() }()

	rmq, err := infra.NewAMQP(cfg.AMQP.URL)
	if err != nil {
		logger.Fatal("amqp init", zap.Error(err))
	}
	defer func() { _ = rmq.Close() }()

	var eta ride.ETAService
	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			logger.Fatal("maps init", zap.Error(err))
		}
		eta = routeSvc
	} else {
		logger.Info("maps api key not set, eta falls back to the fixed default")
	}

	directoryStore := directory.NewStore(dbPool)
	driverStore := driver.NewPGStore(dbPool)
	rideStore := ride.NewPGStore(dbPool)
	alertStore := monitor.NewPGAlertStore(dbPool)

	notifier := notify.NewPublisher(rmq, logger)

	monitorSvc := monitor.NewService(
		alertStore,
		monitor.NewRedisSuppressor(redisClient),
		driverStore,
		directoryStore,
		logger,
	)

	rideSvc := ride.NewService(rideStore, directoryStore, driverStore, eta, notifier, monitorSvc, logger)
	driverSvc := driver.NewService(driverStore, rideStore, monitorSvc, logger)

	engine := dispatch.NewEngine(
		rideStore,
		driverStore,
		directoryStore,
		dispatch.NewEstimator(rideStore),
		dispatch.NewFailureThrottle(redisClient),
		monitorSvc,
		notifier,
		logger,
	)

	handler := httptransport.NewRouter(rideSvc, driverSvc, engine, alertStore, verifier, logger)
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go monitorSvc.RunSweeper(ctx, time.Duration(cfg.Monitor.SweepSeconds)*time.Second)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server exited", zap.Error(err))
	}
}
