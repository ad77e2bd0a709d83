package tools

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/agentops/internal/compliance"
	"github.com/spec-kit/agentops/internal/domain"
	"github.com/spec-kit/agentops/internal/observability"
	apperrors "github.com/spec-kit/agentops/pkg/util"
)

// Handler executes one remediation action. The returned detail is recorded
// on the invocation; an error marks the attempt as failed.
type Handler func(ctx context.Context, parameters map[string]any) (string, error)

type registration struct {
	description string
	handler     Handler
}

// Registry executes named remediation actions after policy approval. It
// holds no cross-ticket mutable state beyond the registration table.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]registration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *zap.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		tools:   make(map[string]registration),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a tool under the given name, replacing any previous
// registration.
func (r *Registry) Register(name, description string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = registration{description: description, handler: handler}
}

// Names lists registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Execute performs exactly one attempt of the named tool. It requires an
// approved compliance decision matching this exact action; execution
// failures are returned on the invocation, never as a fatal error — the
// orchestrator decides whether to try an alternative.
func (r *Registry) Execute(ctx context.Context, toolName string, parameters map[string]any, approval *domain.ComplianceDecision) (domain.ToolInvocation, error) {
	r.mu.RLock()
	reg, ok := r.tools[toolName]
	r.mu.RUnlock()
	if !ok {
		return domain.ToolInvocation{}, apperrors.NewUnknownTool(toolName)
	}

	digest := domain.ActionDigest(toolName, parameters)
	if approval == nil || !approval.Approved || approval.EvaluatedAction != toolName || approval.ActionDigest != digest {
		return domain.ToolInvocation{}, apperrors.NewComplianceNotApproved(toolName)
	}

	invocation := domain.ToolInvocation{
		ID:         uuid.NewString(),
		ToolName:   toolName,
		Parameters: compliance.MaskParameters(parameters),
		ExecutedAt: time.Now(),
	}

	detail, err := reg.handler(ctx, parameters)
	if err != nil {
		invocation.Status = domain.InvocationFailure
		invocation.Detail = err.Error()
		r.logger.Warn("tool execution failed",
			zap.String("tool", toolName),
			zap.String("detail", invocation.Detail))
	} else {
		invocation.Status = domain.InvocationSuccess
		invocation.Detail = detail
		r.logger.Info("tool executed",
			zap.String("tool", toolName),
			zap.String("detail", detail))
	}
	r.metrics.RecordToolExecution(toolName, invocation.Status == domain.InvocationSuccess)

	return invocation, nil
}
