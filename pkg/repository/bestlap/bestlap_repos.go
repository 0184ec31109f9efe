//nolint:whitespace // can't make both editor and linter happy
package bestlap

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/trackline/pkg/model"
	"github.com/mpapenbr/trackline/pkg/repository"
	"github.com/mpapenbr/trackline/pkg/repository/api"
)

const selectBestLap = `
	select track_id, player_id, lap_ms, path, recorded_at
	from best_lap
	`

// Store inserts the best lap of a player on a track. An existing entry is
// replaced only by a faster lap, otherwise api.ErrNotImproved is returned.
func Store(ctx context.Context, conn repository.Querier, lap *model.BestLap) error {
	if lap.RecordedAt.IsZero() {
		lap.RecordedAt = time.Now()
	}
	cmdTag, err := conn.Exec(ctx, `
	insert into best_lap (track_id, player_id, lap_ms, path, recorded_at)
	values ($1, $2, $3, $4, $5)
	on conflict (track_id, player_id) do update set
		lap_ms=excluded.lap_ms,
		path=excluded.path,
		recorded_at=excluded.recorded_at
	where best_lap.lap_ms > excluded.lap_ms
	`,
		lap.TrackID, lap.PlayerID, lap.LapMs, lap.Path, lap.RecordedAt,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return api.ErrNotImproved
	}
	return nil
}

func Load(ctx context.Context, conn repository.Querier, trackID, playerID string) (
	*model.BestLap, error,
) {
	row := conn.QueryRow(ctx, selectBestLap+" where track_id=$1 and player_id=$2",
		trackID, playerID)
	item, err := scanBestLap(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	return item, err
}

func LoadByTrack(ctx context.Context, conn repository.Querier, trackID string) (
	[]*model.BestLap, error,
) {
	rows, err := conn.Query(ctx,
		selectBestLap+" where track_id=$1 order by lap_ms asc, player_id asc",
		trackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := []*model.BestLap{}
	for rows.Next() {
		item, err := scanBestLap(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

// deletes all entries of a track, returns number of rows deleted.
func DeleteByTrack(ctx context.Context, conn repository.Querier, trackID string) (
	int, error,
) {
	cmdTag, err := conn.Exec(ctx, "delete from best_lap where track_id=$1", trackID)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

func scanBestLap(row pgx.Row) (*model.BestLap, error) {
	var item model.BestLap
	if err := row.Scan(
		&item.TrackID, &item.PlayerID, &item.LapMs, &item.Path, &item.RecordedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}
