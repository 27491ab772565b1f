package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"chatcall/backend/internal/api/handler"
	"chatcall/backend/internal/chathub"
	"chatcall/backend/internal/config"
	"chatcall/backend/internal/monitoring"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	history := chathub.NewHistoryStore(cfg.HistoryReplayLimit)
	hub := chathub.NewManagerService(history, metrics, log)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("connecting to Redis")
		}
		hub.SetBridge(chathub.NewBridge(rdb, log))
		log.Info().Str("addr", cfg.RedisAddr).Msg("cross-instance bridge enabled")
	}

	go hub.Run()

	if cfg.MonitoringPort != 0 {
		go monitoring.NewServer(cfg.MonitoringPort, registry, log).Run()
	}

	h := handler.NewHandler(hub, cfg.StaticDir, log)

	r := gin.Default()
	r.GET("/", h.HomePage)
	r.GET("/chat", h.ChatPage)
	r.GET("/call", h.CallPage)
	r.GET("/healthz", h.Healthz)
	r.GET("/ws", h.ServeWebSocket)
	r.Static("/static", filepath.Join(cfg.StaticDir, "static"))

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Info().Int("port", cfg.Port).Msg("server listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
