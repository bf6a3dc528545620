package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/config"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/database"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/events"
	httpapi "github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/http"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/logger"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/mqtt"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/repository"
	"github.com/GetingeDHS/dhs-tdoc-service-tags-management-sub000/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "tags-management")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	// Repositories: Postgres when available, in-memory otherwise so local
	// runs still serve the API.
	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for tags-management")
		} else {
			log.Warn("DB enabled but connection failed, falling back to in-memory repositories",
				zap.Error(err))
		}
	}
	var tagsRepo repository.TagsRepository
	var unitsRepo repository.UnitsRepository
	if db != nil {
		tagsRepo = repository.NewPostgresTagsRepository(db)
		unitsRepo = repository.NewPostgresUnitsRepository(db)
	} else {
		tagsRepo = repository.NewMemoryTagsRepository()
		unitsRepo = repository.NewMemoryUnitsRepository()
	}

	var publisher events.Publisher = events.NopPublisher{}
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		publisher = events.NewRedisPublisher(redisClient, cfg.Events.Stream, cfg.Events.MaxLen, log)
		log.Info("Movement events enabled", zap.String("stream", cfg.Events.Stream))
	}

	tagService := service.NewTagService(tagsRepo, unitsRepo, publisher, log)

	router := httpapi.NewRouter(log)
	router.RegisterTagRoutes(httpapi.NewTagsHandler(tagService, log))
	router.RegisterHealthRoutes()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var listener *mqtt.ScanListener
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Warn("MQTT enabled but connection failed, scan listener disabled", zap.Error(err))
		} else {
			defer client.Disconnect()
			listener = mqtt.NewScanListener(&cfg.MQTT, client, tagService, log)
			go func() {
				_ = listener.Start(ctx)
			}()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if listener != nil {
		_ = listener.Stop(shutdownCtx)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
