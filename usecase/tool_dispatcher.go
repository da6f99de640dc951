package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/wajah/domain/repositories"
	"github.com/satriahrh/wajah/internal/metrics"
)

// ToolHandler executes one tool call and returns the text sent back to the
// model.
type ToolHandler func(ctx context.Context, args map[string]any) (string, error)

// ToolDispatcher routes tool invocations to handlers
type ToolDispatcher struct {
	handlers map[string]ToolHandler
	logger   *zap.Logger
}

// NewToolDispatcher creates a dispatcher with no tools
func NewToolDispatcher(logger *zap.Logger) *ToolDispatcher {
	return &ToolDispatcher{
		handlers: make(map[string]ToolHandler),
		logger:   logger,
	}
}

// Register binds name to h, replacing any previous handler
func (d *ToolDispatcher) Register(name string, h ToolHandler) {
	d.handlers[name] = h
}

// Dispatch runs every call in order and returns exactly one result per call,
// carrying the call's id. Unknown tools answer "ok"; handler errors and
// panics become error results.
func (d *ToolDispatcher) Dispatch(ctx context.Context, calls []repositories.ToolInvocation) []repositories.ToolResult {
	results := make([]repositories.ToolResult, len(calls))
	for i, call := range calls {
		results[i] = d.invoke(ctx, call)
	}
	return results
}

func (d *ToolDispatcher) invoke(ctx context.Context, call repositories.ToolInvocation) (result repositories.ToolResult) {
	result = repositories.ToolResult{ID: call.ID, Name: call.Name}

	h, ok := d.handlers[call.Name]
	if !ok {
		d.logger.Debug("Unknown tool", zap.String("tool", call.Name))
		metrics.ToolCalls.WithLabelValues("unknown", "ok").Inc()
		result.Output = "ok"
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Tool handler panicked",
				zap.String("tool", call.Name),
				zap.String("callId", call.ID),
				zap.Any("panic", r))
			metrics.ToolCalls.WithLabelValues(call.Name, "panic").Inc()
			result.Output = ""
			result.Error = fmt.Sprintf("tool %s failed: %v", call.Name, r)
		}
	}()

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}

	output, err := h(ctx, args)
	if err != nil {
		d.logger.Warn("Tool call failed",
			zap.String("tool", call.Name),
			zap.String("callId", call.ID),
			zap.Error(err))
		metrics.ToolCalls.WithLabelValues(call.Name, "error").Inc()
		result.Error = err.Error()
		return result
	}

	metrics.ToolCalls.WithLabelValues(call.Name, "ok").Inc()
	result.Output = output
	return result
}

func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func numberArg(args map[string]any, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		var f float64
		if _, err := fmt.Sscan(v, &f); err == nil {
			return f
		}
	}
	return fallback
}
