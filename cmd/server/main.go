package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/library-lending/internal/config"
	"github.com/iliyamo/library-lending/internal/database"
	"github.com/iliyamo/library-lending/internal/handler"
	"github.com/iliyamo/library-lending/internal/middleware"
	"github.com/iliyamo/library-lending/internal/queue"
	"github.com/iliyamo/library-lending/internal/repository"
	"github.com/iliyamo/library-lending/internal/router"
	"github.com/iliyamo/library-lending/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(ctx, db); err != nil {
		cancel()
		log.Fatalf("database: %v", err)
	}
	cancel()

	// Redis is optional: a nil client disables caching and rate limiting.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; cache and rate limit disabled")
	}

	store := repository.NewStore(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	policy := service.Policy{
		LoanDays:       cfg.LoanDays,
		FineRatePerDay: cfg.FineRatePerDay,
		ReservationTTL: cfg.ReservationTTL,
		BlockOnFines:   cfg.BlockOnFines,
	}
	lending := service.NewLending(store, policy)
	catalog := service.NewCatalog(store)
	stats := service.NewStats(store)

	authH := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	catalogH := handler.NewCatalogHandler(catalog)
	circH := handler.NewCirculationHandler(lending)
	usersH := handler.NewAdminUserHandler(cfg, userRepo)
	resH := handler.NewReservationHandler(lending)
	dashH := handler.NewDashboardHandler(stats)

	e := echo.New()
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	rlCfg := config.LoadRateLimitConfig()
	e.Use(middleware.NewTokenBucket(rlCfg, rdb))

	cacheCfg := config.LoadCacheConfig()
	cache := middleware.NewRedisCache(cacheCfg, rdb)

	router.RegisterRoutes(e, catalogH, cache)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterStaff(e, catalogH, circH, usersH, dashH, cfg.JWTSecret, cache)
	router.RegisterReader(e, resH, circH, dashH, cfg.JWTSecret)

	// Audit-trail consumer; reconnects on its own and never returns.
	go func() {
		if err := queue.StartCirculationConsumer(); err != nil {
			log.Printf("circulation consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
