package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guillermoBallester/sqlpeek/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type callState struct {
	tool  string
	start time.Time
	span  trace.Span
}

// callTracker pairs before/after hook invocations by request id.
type callTracker struct {
	calls sync.Map // id -> *callState
}

func (c *callTracker) begin(id any, state *callState) {
	c.calls.Store(id, state)
}

// end returns the state stored by begin, or a zero state when begin never ran
// for id (for example a request rejected before dispatch).
func (c *callTracker) end(id any) (*callState, time.Duration) {
	v, ok := c.calls.LoadAndDelete(id)
	if !ok {
		return &callState{}, 0
	}
	state := v.(*callState)
	return state, time.Since(state.start)
}

// ToolCallHooks logs every tool call with its duration and error flag, and
// records a span and a duration sample when tracer and inst are set.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	hooks := &server.Hooks{}
	tracker := &callTracker{}

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		state := &callState{tool: req.Params.Name, start: time.Now()}
		if tracer != nil {
			_, state.span = tracer.Start(ctx, "mcp.tool.call",
				trace.WithAttributes(attribute.String("mcp.tool", req.Params.Name)),
			)
		}
		tracker.begin(id, state)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		state, duration := tracker.end(id)

		isErr := false
		if r, ok := result.(*mcp.CallToolResult); ok && r.IsError {
			isErr = true
		}

		level := slog.LevelInfo
		if isErr {
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "tool call",
			slog.String("rpc.method", "tools/call"),
			slog.String("mcp.tool", req.Params.Name),
			slog.Duration("duration", duration),
			slog.Bool("error", isErr),
		)

		if inst != nil {
			inst.RecordToolDuration(ctx, float64(duration.Microseconds())/1000)
		}

		if state.span != nil {
			if isErr {
				state.span.SetStatus(codes.Error, "tool returned error")
				state.span.RecordError(fmt.Errorf("tool %s returned error", req.Params.Name))
			}
			state.span.End()
		}
	})

	hooks.AddOnError(func(ctx context.Context, id any, _ mcp.MCPMethod, message any, err error) {
		state, duration := tracker.end(id)

		tool := state.tool
		if req, ok := message.(*mcp.CallToolRequest); ok {
			tool = req.Params.Name
		}
		if tool != "" {
			logger.LogAttrs(ctx, slog.LevelError, "tool call",
				slog.String("rpc.method", "tools/call"),
				slog.String("mcp.tool", tool),
				slog.Duration("duration", duration),
				slog.Bool("error", true),
				slog.String("error.message", err.Error()),
			)
		}

		if state.span != nil {
			state.span.RecordError(err)
			state.span.SetStatus(codes.Error, err.Error())
			state.span.End()
		}
	})

	return hooks
}
