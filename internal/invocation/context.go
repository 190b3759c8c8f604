// Package invocation provides the per-call context handed to timer functions.
package invocation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context is the capability set a function receives for one invocation.
// Log and Warn are fire-and-forget: sink failures are never surfaced to the function.
type Context interface {
	InvocationID() string
	FunctionName() string
	Log(msg string)
	Warn(msg string)
}

type slogContext struct {
	id       string
	function string
	logger   *slog.Logger
	ctx      context.Context
}

// New returns a Context that writes through logger with ctx, so handlers
// such as Sentry's see the invocation's context.
// Each entry carries the function name and a fresh invocation id.
func New(ctx context.Context, logger *slog.Logger, functionName string) Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &slogContext{
		id:       id,
		function: functionName,
		ctx:      ctx,
		logger: logger.With(
			slog.String("function", functionName),
			slog.String("invocation_id", id),
		),
	}
}

func (c *slogContext) InvocationID() string { return c.id }
func (c *slogContext) FunctionName() string { return c.function }

func (c *slogContext) Log(msg string) {
	c.logger.Log(c.ctx, slog.LevelInfo, msg)
}

func (c *slogContext) Warn(msg string) {
	c.logger.Log(c.ctx, slog.LevelWarn, msg)
}
