package main

import (
	"context"
	"time"

	"github.com/miroirapp/miroir/internal/app"
	"github.com/miroirapp/miroir/internal/cache"
	"github.com/miroirapp/miroir/internal/chat"
	"github.com/miroirapp/miroir/internal/config"
	"github.com/miroirapp/miroir/internal/db"
	"github.com/miroirapp/miroir/internal/logger"
	"github.com/miroirapp/miroir/internal/match"
	"github.com/miroirapp/miroir/internal/notify"
	"github.com/miroirapp/miroir/internal/presence"
	"github.com/miroirapp/miroir/internal/server"
	"github.com/miroirapp/miroir/internal/ws"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	registry := presence.NewRegistry()
	dispatcher := notify.NewAsyncDispatcher(&notify.LogSink{Logger: log}, log)
	defer dispatcher.Close()

	appCtx := app.New(database, redisCache, registry, dispatcher, log)

	hub := ws.NewHub(redisCache.Client, registry, log)
	chatSvc := chat.NewService(appCtx, hub, cfg.Chat.PushTimeout)
	matchSvc := match.NewService(appCtx, cfg.Mirror.Retention)

	// periodic expiry sweep for stale pending requests
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for now := range ticker.C {
			if _, err := matchSvc.ExpirePending(context.Background(), now); err != nil {
				log.Error("expiry sweep failed", "err", err)
			}
		}
	}()

	registrars := []server.Registrar{
		ws.NewRegistrar(hub, chatSvc),
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting realtime gateway", "addr", addr)

	if err := server.StartHTTPServer(cfg, registrars...); err != nil {
		log.Error("gateway stopped", "err", err)
	}
}
