package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"management/backend/internal/api/handler"
	"management/backend/internal/api/middleware"
	"management/backend/internal/chathub"
	"management/backend/internal/config"
	"management/backend/internal/database"
	"management/backend/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// events still reach the clients of this instance
		log.Printf("WARNING: Redis unavailable at %s, running without pub/sub: %v", cfg.RedisAddr, err)
		_ = rdb.Close()
		rdb = nil
	}

	log.Println("INFO: Database and Redis connections established, migrations complete.")
	return db, rdb
}

func newRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", handler.UserIDHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// everything else goes through the route tables
	r.NoRoute(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst), h.Dispatch)
	return r
}

func main() {
	log.Println("INFO: Starting management backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, rdb := setupDependencies(ctx, cfg)
	s := storage.NewStorageService(db, rdb)

	hub := chathub.NewManagerService(s)
	go hub.Run(ctx)
	if rdb != nil {
		hub.StartPubSubListener(ctx, s.SubscribeRooms(ctx))
	}

	h := handler.NewHandler(hub, s, cfg.AllowedOrigins)
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        newRouter(cfg, h),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()
	log.Printf("INFO: Listening on :%s (%s)", cfg.Port, cfg.Env)

	<-ctx.Done()
	log.Println("INFO: Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: HTTP shutdown: %v", err)
	}
	select {
	case <-hub.Done():
	case <-shutdownCtx.Done():
		log.Println("WARNING: Chat hub did not stop in time")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Println("INFO: Server stopped")
}
