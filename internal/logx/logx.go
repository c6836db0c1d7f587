package logx

import (
	"context"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/checkin/schema"
)

type contextKey int

const targetKey contextKey = iota

// WithTarget annotates the logger with the target URL if present.
func WithTarget(ctx context.Context, target string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if target != "" {
		if current, ok := ctx.Value(targetKey).(string); ok && current == target {
			return log
		}
		log = log.With("target", target)
	}
	return log
}

// WithProcess annotates the logger with the owned process identity.
func WithProcess(log pslog.Logger, proc schema.OwnedProcess) pslog.Logger {
	if proc.PID > 0 {
		log = log.With("pid", proc.PID)
	}
	if proc.Via != "" {
		log = log.With("via", string(proc.Via))
	}
	return log
}

// WithReport annotates the logger with the terminal run outcome.
func WithReport(log pslog.Logger, report schema.RunReport) pslog.Logger {
	if report.Outcome != "" {
		log = log.With("outcome", string(report.Outcome))
	}
	if !report.NextAvailableAt.IsZero() {
		log = log.With("next_available_at", report.NextAvailableAt.Format(time.RFC3339))
	}
	return log
}

// ContextWithTarget stores the target marker on the context for log de-duplication.
func ContextWithTarget(ctx context.Context, target string) context.Context {
	if ctx == nil || target == "" {
		return ctx
	}
	return context.WithValue(ctx, targetKey, target)
}

// ContextWithTargetLogger attaches the logger and target marker to the context.
func ContextWithTargetLogger(ctx context.Context, log pslog.Logger, target string) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithTarget(ctx, target)
}
