// Package sandbox runs model-authored JavaScript against a narrow face API.
// Scripts have no access to the network, the filesystem or timers.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// DefaultTimeout bounds the wall time of a single script
const DefaultTimeout = 500 * time.Millisecond

// MaxScriptLength bounds the source size of a single script
const MaxScriptLength = 16 * 1024

var (
	ErrTimeout  = errors.New("script timed out")
	ErrTooLarge = errors.New("script is too large")
)

// FaceAPI is what scripts can do to the face
type FaceAPI interface {
	SetExpression(name string) bool
	ShowSticker(icon, position string, seconds float64)
	DisplayThought(kind, content string)
}

// Runner executes scripts in a fresh interpreter per call
type Runner struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner creates a runner. A non-positive timeout uses DefaultTimeout.
func NewRunner(timeout time.Duration, logger *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{timeout: timeout, logger: logger}
}

// Run evaluates code and returns the string form of its completion value
func (r *Runner) Run(ctx context.Context, code string, api FaceAPI) (string, error) {
	if len(code) > MaxScriptLength {
		return "", ErrTooLarge
	}

	vm := goja.New()
	var logs []string

	face := vm.NewObject()
	_ = face.Set("setExpression", func(name string) bool {
		return api.SetExpression(name)
	})
	_ = face.Set("sticker", func(icon, position string, seconds float64) {
		api.ShowSticker(icon, position, seconds)
	})
	_ = face.Set("think", func(content string) {
		api.DisplayThought("text", content)
	})
	_ = face.Set("show", func(kind, content string) {
		api.DisplayThought(kind, content)
	})
	if err := vm.Set("face", face); err != nil {
		return "", fmt.Errorf("failed to expose face api: %w", err)
	}

	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		logs = append(logs, strings.Join(parts, " "))
		return goja.Undefined()
	})
	if err := vm.Set("console", console); err != nil {
		return "", fmt.Errorf("failed to expose console: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()

	value, err := vm.RunString(code)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			r.logger.Warn("Script interrupted", zap.Duration("timeout", r.timeout))
			return "", ErrTimeout
		}
		return "", fmt.Errorf("script error: %w", err)
	}

	result := "ok"
	if value != nil && !goja.IsUndefined(value) && !goja.IsNull(value) {
		result = value.String()
	}
	if len(logs) > 0 {
		result = strings.Join(logs, "\n") + "\n" + result
	}

	r.logger.Debug("Script finished", zap.Int("logLines", len(logs)))
	return result, nil
}
