// Folio is a personal investment portfolio tracker. It values portfolios in
// the owner's base currency using ECB exchange rates and Yahoo Finance
// quotes, and keeps a snapshot history for charting.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/folioapp/folio/internal/auth"
	"github.com/folioapp/folio/internal/clientdata"
	"github.com/folioapp/folio/internal/clients/ecb"
	"github.com/folioapp/folio/internal/clients/yahoo"
	"github.com/folioapp/folio/internal/config"
	"github.com/folioapp/folio/internal/database"
	"github.com/folioapp/folio/internal/modules/analytics"
	analyticshandlers "github.com/folioapp/folio/internal/modules/analytics/handlers"
	"github.com/folioapp/folio/internal/modules/groups"
	grouphandlers "github.com/folioapp/folio/internal/modules/groups/handlers"
	"github.com/folioapp/folio/internal/modules/holdings"
	"github.com/folioapp/folio/internal/modules/portfolios"
	portfoliohandlers "github.com/folioapp/folio/internal/modules/portfolios/handlers"
	"github.com/folioapp/folio/internal/modules/snapshots"
	stockhandlers "github.com/folioapp/folio/internal/modules/stocks/handlers"
	"github.com/folioapp/folio/internal/modules/users"
	"github.com/folioapp/folio/internal/scheduler"
	"github.com/folioapp/folio/internal/server"
	"github.com/folioapp/folio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Folio")

	// Databases
	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "clientdata.db"),
		Profile: database.ProfileCache,
		Name:    "clientdata",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{portfolioDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Migration failed")
		}
	}

	// External data clients with persistent caching
	cacheRepo := clientdata.NewRepository(cacheDB.Conn())
	ecbClient := ecb.NewClient(cacheRepo, log)
	yahooClient := yahoo.NewClient(cacheRepo, log)

	// Repositories
	userRepo := users.NewRepository(portfolioDB.Conn(), log)
	holdingRepo := holdings.NewRepository(portfolioDB.Conn(), log)
	portfolioRepo := portfolios.NewRepository(portfolioDB.Conn(), holdingRepo, log)
	groupRepo := groups.NewRepository(portfolioDB.Conn(), log)
	snapshotRepo := snapshots.NewRepository(portfolioDB.Conn(), log)

	// Services
	authService := auth.NewService(userRepo, cfg.JWTSecret, cfg.JWTLifetime, log)
	groupService := groups.NewService(groupRepo, log)
	analyticsService := analytics.NewService(portfolioRepo, snapshotRepo, yahooClient, ecbClient, userRepo, log)

	// Background jobs
	sched := scheduler.New(log)
	cleanupJob := clientdata.NewCleanupJob(cacheRepo, log)
	if err := sched.AddJob("@daily", cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cleanup job")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:              log,
		Port:             cfg.Port,
		DevMode:          cfg.DevMode,
		PortfolioDB:      portfolioDB,
		CacheDB:          cacheDB,
		AuthService:      authService,
		AuthHandler:      auth.NewHandler(authService, log),
		GroupHandler:     grouphandlers.NewHandler(groupService, log),
		PortfolioHandler: portfoliohandlers.NewHandler(portfolioRepo, holdingRepo, groupService, log),
		AnalyticsHandler: analyticshandlers.NewHandler(analyticsService, log),
		StockHandler:     stockhandlers.NewHandler(yahooClient, log),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("Server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
