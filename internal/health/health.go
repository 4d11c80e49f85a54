package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/engageflow/backend/internal/dispatch"
)

// Checker answers liveness and readiness probes. Readiness flips on
// after migrations and workers have started.
type Checker struct {
	db         *gorm.DB
	redis      *redis.Client
	dispatcher *dispatch.Dispatcher

	isReady     bool
	readyMu     sync.RWMutex
	startupTime time.Time
}

func NewChecker(db *gorm.DB, redisClient *redis.Client, dispatcher *dispatch.Dispatcher) *Checker {
	return &Checker{
		db:          db,
		redis:       redisClient,
		dispatcher:  dispatcher,
		startupTime: time.Now(),
	}
}

func (c *Checker) SetReady(ready bool) {
	c.readyMu.Lock()
	defer c.readyMu.Unlock()
	c.isReady = ready
}

func (c *Checker) IsReady() bool {
	c.readyMu.RLock()
	defer c.readyMu.RUnlock()
	return c.isReady
}

type Check struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type CheckStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Healthz is the liveness probe: is the process alive?
func (c *Checker) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
	})
}

// Readyz is the readiness probe: can the service accept traffic?
func (c *Checker) Readyz(ctx *gin.Context) {
	if !c.IsReady() {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"timestamp": time.Now().UTC(),
			"message":   "service is starting up",
		})
		return
	}

	status := c.collect()
	if status.Status != "healthy" {
		ctx.JSON(http.StatusServiceUnavailable, status)
		return
	}
	status.Status = "ready"
	ctx.JSON(http.StatusOK, status)
}

// Health reports detailed dependency status.
func (c *Checker) Health(ctx *gin.Context) {
	status := c.collect()
	if status.Status != "healthy" {
		ctx.JSON(http.StatusServiceUnavailable, status)
		return
	}
	ctx.JSON(http.StatusOK, status)
}

func (c *Checker) collect() CheckStatus {
	checks := map[string]Check{
		"database":   c.checkDatabase(),
		"redis":      c.checkRedis(),
		"dispatcher": c.checkDispatcher(),
	}

	status := CheckStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(c.startupTime).Round(time.Second).String(),
		Checks:    checks,
	}
	for _, check := range checks {
		if check.Status != "healthy" {
			status.Status = "degraded"
			break
		}
	}
	return status
}

func (c *Checker) checkDatabase() Check {
	if c.db == nil {
		return Check{Status: "unhealthy", Message: "database not configured"}
	}

	start := time.Now()
	sqlDB, err := c.db.DB()
	if err != nil {
		return Check{Status: "unhealthy", Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return Check{Status: "unhealthy", Message: err.Error()}
	}
	return Check{Status: "healthy", Duration: time.Since(start).String()}
}

func (c *Checker) checkRedis() Check {
	if c.redis == nil {
		return Check{Status: "healthy", Message: "redis not configured (optional)"}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.redis.Ping(ctx).Err(); err != nil {
		return Check{Status: "unhealthy", Message: err.Error()}
	}
	return Check{Status: "healthy", Duration: time.Since(start).String()}
}

func (c *Checker) checkDispatcher() Check {
	if c.dispatcher == nil {
		return Check{Status: "unhealthy", Message: "dispatcher not running"}
	}
	return Check{
		Status:  "healthy",
		Message: fmt.Sprintf("%d pending dispatches", c.dispatcher.PendingTotal()),
	}
}

func (c *Checker) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", c.Healthz)
	r.GET("/readyz", c.Readyz)
	r.GET("/health", c.Health)
}
