package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/miroirapp/miroir/internal/cache"
	"github.com/miroirapp/miroir/internal/notify"
	"github.com/miroirapp/miroir/internal/presence"
)

// AppContext holds shared dependencies (DB, Redis, presence, dispatcher,
// logger) injected into every service.
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Presence   *presence.Registry
	Dispatcher notify.Dispatcher
	Logger     *slog.Logger
}

// New creates a new AppContext.
func New(
	db *gorm.DB,
	rdb *cache.RedisCache,
	registry *presence.Registry,
	dispatcher notify.Dispatcher,
	logger *slog.Logger,
) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Presence:   registry,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
}
