package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
	"github.com/aussiebroadwan/clientauth/internal/auth/metrics"
	"github.com/aussiebroadwan/clientauth/pkg/slogx"
)

var tracer = otel.Tracer("clientauth/service")

// begin opens a span and an operation-scoped logger. The returned func
// records the outcome and must be deferred.
func (s *AuthService) begin(ctx context.Context, op string) (context.Context, func(domain.AuthResponse, error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "auth."+op, trace.WithSpanKind(trace.SpanKindInternal))
	ctx = slogx.With(ctx, "op", op)
	if sc := span.SpanContext(); sc.IsValid() {
		ctx = slogx.With(ctx, "trace_id", sc.TraceID().String())
	}

	return ctx, func(resp domain.AuthResponse, err error) {
		out := outcome(resp, err)
		span.SetAttributes(
			attribute.String("auth.outcome", out),
			attribute.Bool("auth.mfa_enabled", resp.MFAEnabled),
		)
		if out == metrics.OutcomeError {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slogx.FromContext(ctx).Error("operation failed", "error", err)
		}
		span.End()
		s.Metrics.ObserveOperation(op, out, time.Since(start))
	}
}

func outcome(resp domain.AuthResponse, err error) string {
	switch {
	case err == nil && resp.SecondFactorRequired():
		return metrics.OutcomeMFA
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrRefreshRejected), domain.KindOf(err) != "":
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
