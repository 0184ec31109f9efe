//nolint:whitespace // can't make both editor and linter happy
package track

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/trackline/pkg/checkpoint"
	"github.com/mpapenbr/trackline/pkg/geom"
	"github.com/mpapenbr/trackline/pkg/model"
	"github.com/mpapenbr/trackline/pkg/repository"
	"github.com/mpapenbr/trackline/pkg/repository/api"
)

const selectTrack = `
	select id, name, boundaries, options, created_at, updated_at
	from track
	`

// Upsert inserts or updates the track. The timestamps of track are set to
// the stored values.
func Upsert(ctx context.Context, conn repository.Querier, track *model.Track) error {
	boundaries := track.Boundaries
	if boundaries == nil {
		boundaries = []geom.Ring{}
	}
	row := conn.QueryRow(ctx, `
	insert into track (id, name, boundaries, options)
	values ($1, $2, $3, $4)
	on conflict (id) do update set
		name=excluded.name,
		boundaries=excluded.boundaries,
		options=excluded.options,
		updated_at=now()
	returning created_at, updated_at
	`,
		track.ID, track.Name, boundaries, track.Options,
	)
	return row.Scan(&track.CreatedAt, &track.UpdatedAt)
}

func LoadByID(ctx context.Context, conn repository.Querier, id string) (
	*model.Track, error,
) {
	row := conn.QueryRow(ctx, selectTrack+" where id=$1", id)
	item, err := scanTrack(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	return item, err
}

func LoadAll(ctx context.Context, conn repository.Querier) ([]*model.Track, error) {
	rows, err := conn.Query(ctx, selectTrack+" order by id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := []*model.Track{}
	for rows.Next() {
		item, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

// deletes an entry from the database, returns number of rows deleted.
func DeleteByID(ctx context.Context, conn repository.Querier, id string) (int, error) {
	cmdTag, err := conn.Exec(ctx, "delete from track where id=$1", id)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

func scanTrack(row pgx.Row) (*model.Track, error) {
	var item model.Track
	var options checkpoint.Config
	if err := row.Scan(
		&item.ID, &item.Name, &item.Boundaries, &options,
		&item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	item.Options = options
	return &item, nil
}
