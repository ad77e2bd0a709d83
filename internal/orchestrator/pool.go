package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/agentops/pkg/util"
)

type job struct {
	ticketID string
	opts     RunOptions
}

// Pool runs tickets on a bounded set of workers fed from a bounded queue.
// Enqueue never blocks; a full queue is reported back to the caller.
type Pool struct {
	orc    *Orchestrator
	logger *zap.Logger
	queue  chan job

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	size      int
}

// NewPool builds a pool with the given worker count and queue capacity.
func NewPool(orc *Orchestrator, size, queueSize int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pool{
		orc:    orc,
		logger: logger,
		queue:  make(chan job, queueSize),
		size:   size,
	}
}

// Start launches the workers. Safe to call once; later calls are no-ops.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.size; i++ {
			p.wg.Add(1)
			go p.worker(ctx, i)
		}
	})
}

// Enqueue schedules a ticket run. It fails fast when the queue is full.
func (p *Pool) Enqueue(ticketID string, opts RunOptions) error {
	select {
	case p.queue <- job{ticketID: ticketID, opts: opts}:
		return nil
	default:
		return apperrors.NewValidationError("workflow queue is full", map[string]any{"ticket_id": ticketID})
	}
}

// Stop closes the queue and waits for in-flight runs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			outcome, err := p.orc.Run(ctx, j.ticketID, j.opts)
			if err != nil {
				p.logger.Error("background run failed",
					zap.Int("worker", id),
					zap.String("ticket_id", j.ticketID),
					zap.Error(err))
				continue
			}
			p.logger.Info("background run finished",
				zap.Int("worker", id),
				zap.String("ticket_id", j.ticketID),
				zap.String("status", string(outcome.Status)),
				zap.String("escalation_reason", outcome.EscalationReason))
		}
	}
}
