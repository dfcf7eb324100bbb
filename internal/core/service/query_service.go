package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guillermoBallester/sqlpeek/internal/core/domain"
	"github.com/guillermoBallester/sqlpeek/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// QueryService runs the statements typed at the console. It is the unit of
// work that the timer and the explain tap wrap.
type QueryService struct {
	validator port.QueryValidator // nil allows every statement
	executor  port.QueryExecutor
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewQueryService(validator port.QueryValidator, executor port.QueryExecutor, logger *slog.Logger, tracer trace.Tracer) *QueryService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &QueryService{
		validator: validator,
		executor:  executor,
		logger:    logger,
		tracer:    tracer,
	}
}

// Execute validates the statement when a validator is configured and then
// delegates to the executor.
func (s *QueryService) Execute(ctx context.Context, sql string) (*port.Result, error) {
	op := domain.OperationName(sql)
	ctx, span := s.tracer.Start(ctx, "QueryService.Execute",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation.name", op),
			attribute.String("db.statement", sql),
		),
	)
	defer span.End()

	if s.validator != nil {
		if err := s.validator.Validate(sql); err != nil {
			s.logger.WarnContext(ctx, "query validation rejected",
				slog.String("db.operation.name", op),
				slog.String("db.statement", sql),
				slog.String("error.type", "validation_error"),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("validation: %w", err)
		}
	}

	start := time.Now()
	result, err := s.executor.Execute(ctx, sql)
	duration := time.Since(start)

	if err != nil {
		s.logger.DebugContext(ctx, "query failed",
			slog.String("db.operation.name", op),
			slog.Duration("duration", duration),
			slog.String("error.message", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.logger.DebugContext(ctx, "query executed",
		slog.String("db.operation.name", op),
		slog.Duration("duration", duration),
		slog.Int("db.response.rows", len(result.Rows)),
	)
	span.SetAttributes(attribute.Int("db.response.rows", len(result.Rows)))

	return result, nil
}
