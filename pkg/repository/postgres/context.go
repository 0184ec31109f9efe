package postgres

import (
	"context"

	"github.com/mpapenbr/trackline/pkg/repository"
)

type txContextKey struct{}

func newContext(ctx context.Context, q repository.Querier) context.Context {
	return context.WithValue(ctx, txContextKey{}, q)
}

func fromContext(ctx context.Context) repository.Querier {
	if ctx == nil {
		return nil
	}
	if q, ok := ctx.Value(txContextKey{}).(repository.Querier); ok {
		return q
	}
	return nil
}
