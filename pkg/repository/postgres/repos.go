//nolint:whitespace // can't make both editor and linter happy
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/trackline/pkg/model"
	"github.com/mpapenbr/trackline/pkg/repository"
	"github.com/mpapenbr/trackline/pkg/repository/api"
	bestlapRepos "github.com/mpapenbr/trackline/pkg/repository/bestlap"
	trackRepos "github.com/mpapenbr/trackline/pkg/repository/track"
)

type (
	pgRepositories struct {
		track   *trackRepo
		bestLap *bestLapRepo
		tx      *txManager
	}
	// executor returns the transaction of the context if present
	executor struct {
		pool *pgxpool.Pool
	}
	trackRepo struct {
		executor
	}
	bestLapRepo struct {
		executor
	}
	txManager struct {
		pool *pgxpool.Pool
	}
)

var (
	_ api.Repositories       = (*pgRepositories)(nil)
	_ api.TrackRepository    = (*trackRepo)(nil)
	_ api.BestLapRepository  = (*bestLapRepo)(nil)
	_ api.TransactionManager = (*txManager)(nil)
)

func NewRepositories(pool *pgxpool.Pool) api.Repositories {
	return &pgRepositories{
		track:   &trackRepo{executor{pool: pool}},
		bestLap: &bestLapRepo{executor{pool: pool}},
		tx:      &txManager{pool: pool},
	}
}

func (r *pgRepositories) Track() api.TrackRepository     { return r.track }
func (r *pgRepositories) BestLap() api.BestLapRepository { return r.bestLap }
func (r *pgRepositories) Tx() api.TransactionManager     { return r.tx }

func (e executor) conn(ctx context.Context) repository.Querier {
	if q := fromContext(ctx); q != nil {
		return q
	}
	return e.pool
}

// the contract with the repositories is:
// the transaction is put into the context, the repositories use it if present
func (t *txManager) RunInTx(
	ctx context.Context,
	fn func(ctx context.Context) error,
) error {
	if fromContext(ctx) != nil {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(newContext(ctx, tx))
	})
}

func (r *trackRepo) Upsert(ctx context.Context, track *model.Track) error {
	return trackRepos.Upsert(ctx, r.conn(ctx), track)
}

func (r *trackRepo) LoadByID(ctx context.Context, id string) (*model.Track, error) {
	return trackRepos.LoadByID(ctx, r.conn(ctx), id)
}

func (r *trackRepo) LoadAll(ctx context.Context) ([]*model.Track, error) {
	return trackRepos.LoadAll(ctx, r.conn(ctx))
}

func (r *trackRepo) DeleteByID(ctx context.Context, id string) (int, error) {
	return trackRepos.DeleteByID(ctx, r.conn(ctx), id)
}

func (r *bestLapRepo) Load(ctx context.Context, trackID, playerID string) (
	*model.BestLap, error,
) {
	return bestlapRepos.Load(ctx, r.conn(ctx), trackID, playerID)
}

func (r *bestLapRepo) Store(ctx context.Context, lap *model.BestLap) error {
	return bestlapRepos.Store(ctx, r.conn(ctx), lap)
}

func (r *bestLapRepo) LoadByTrack(ctx context.Context, trackID string) (
	[]*model.BestLap, error,
) {
	return bestlapRepos.LoadByTrack(ctx, r.conn(ctx), trackID)
}

func (r *bestLapRepo) DeleteByTrack(ctx context.Context, trackID string) (int, error) {
	return bestlapRepos.DeleteByTrack(ctx, r.conn(ctx), trackID)
}
