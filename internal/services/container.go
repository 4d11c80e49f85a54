package services

import (
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/engageflow/backend/internal/ai"
	"github.com/engageflow/backend/internal/config"
	"github.com/engageflow/backend/internal/dispatch"
	"github.com/engageflow/backend/internal/engine"
	"github.com/engageflow/backend/internal/engine/limiter"
	"github.com/engageflow/backend/internal/platform"
	"github.com/engageflow/backend/internal/websocket"
)

// Container holds all service instances
type Container struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Hub    *websocket.Hub

	// Engine
	Limiter    limiter.Limiter
	Matcher    *engine.Matcher
	Selector   *engine.Selector
	Dispatcher *dispatch.Dispatcher

	// Services
	Rule  *RuleService
	Log   *LogService
	Event *EventService
	Stats *StatsService
}

func NewContainer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, hub *websocket.Hub, sender platform.Client, gen ai.Generator) *Container {
	container := &Container{
		Config: cfg,
		DB:     db,
		Redis:  redisClient,
		Hub:    hub,
	}

	// Single-node deployments work without Redis; the in-memory limiter
	// gives the same semantics within one process.
	if redisClient != nil {
		container.Limiter = limiter.NewRedis(redisClient)
	} else {
		container.Limiter = limiter.NewMemory()
	}

	container.Rule = NewRuleService(container)
	container.Log = NewLogService(container)

	container.Matcher = engine.NewMatcher(container.Limiter)
	container.Selector = engine.NewSelector(gen, container.Rule)
	container.Dispatcher = dispatch.New(sender, container.Log, cfg.DispatchWorkers)

	container.Event = NewEventService(container)
	container.Stats = NewStatsService(container)

	return container
}
