package postgres

import (
	"context"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/trackline/log"
)

type (
	myQueryTracer struct {
		log   *log.Logger
		level log.Level
	}
	startKey struct{}
)

var _ pgx.QueryTracer = (*myQueryTracer)(nil)

// NewMyTracer logs every executed statement with the given level.
func NewMyTracer(logger *log.Logger, level log.Level) pgx.QueryTracer {
	return &myQueryTracer{log: logger.Named("sql"), level: level}
}

func NewOtlpTracer() pgx.QueryTracer {
	return otelpgx.NewTracer()
}

func (tracer *myQueryTracer) TraceQueryStart(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryStartData,
) context.Context {
	if !tracer.log.Enabled(tracer.level) {
		return ctx
	}
	tracer.log.Log(tracer.level, "Executing",
		log.String("sql", data.SQL),
		log.Any("args", data.Args))
	return context.WithValue(ctx, startKey{}, time.Now())
}

//nolint:whitespace // can't make the linters happy
func (tracer *myQueryTracer) TraceQueryEnd(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryEndData,
) {
	start, ok := ctx.Value(startKey{}).(time.Time)
	if !ok {
		return
	}
	fields := []log.Field{
		log.String("tag", data.CommandTag.String()),
		log.Duration("duration", time.Since(start)),
	}
	if data.Err != nil {
		fields = append(fields, log.ErrorField(data.Err))
	}
	tracer.log.Log(tracer.level, "Executed", fields...)
}
