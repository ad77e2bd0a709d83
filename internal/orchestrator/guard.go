package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/agentops/pkg/util"
)

const lockKeyPrefix = "workflow:lock:"

// RunGuard enforces at most one in-flight run per ticket id. The in-process
// map covers a single instance; when a Redis client is configured the lock
// also holds across replicas.
type RunGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewRunGuard builds a guard. client may be nil for single-instance
// deployments and tests.
func NewRunGuard(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RunGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunGuard{
		client:   client,
		ttl:      ttl,
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// TryAcquire claims the ticket or fails with AlreadyProcessing. It never
// waits.
func (g *RunGuard) TryAcquire(ctx context.Context, ticketID string) error {
	g.mu.Lock()
	if g.inFlight[ticketID] {
		g.mu.Unlock()
		return apperrors.NewAlreadyProcessing(ticketID)
	}
	g.inFlight[ticketID] = true
	g.mu.Unlock()

	if g.client != nil {
		ok, err := g.client.SetNX(ctx, lockKeyPrefix+ticketID, "1", g.ttl).Result()
		if err != nil {
			g.logger.Warn("redis lock unavailable, relying on local guard", zap.Error(err))
			return nil
		}
		if !ok {
			g.mu.Lock()
			delete(g.inFlight, ticketID)
			g.mu.Unlock()
			return apperrors.NewAlreadyProcessing(ticketID)
		}
	}
	return nil
}

// Release frees the ticket for future runs.
func (g *RunGuard) Release(ctx context.Context, ticketID string) {
	g.mu.Lock()
	delete(g.inFlight, ticketID)
	g.mu.Unlock()

	if g.client != nil {
		if err := g.client.Del(ctx, lockKeyPrefix+ticketID).Err(); err != nil {
			g.logger.Warn("redis lock release failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}
}
