// Package nats stores best laps in a NATS JetStream key value bucket.
package nats

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/trackline/log"
	"github.com/mpapenbr/trackline/pkg/model"
	"github.com/mpapenbr/trackline/pkg/repository/api"
)

const (
	DefaultBucket    = "trackline_bestlaps"
	maxStoreAttempts = 5
)

type (
	Option            func(*BestLapRepository)
	BestLapRepository struct {
		conn   *nats.Conn
		bucket string
		l      *log.Logger
		kv     jetstream.KeyValue
	}
)

var _ api.BestLapRepository = (*BestLapRepository)(nil)

func WithBucket(bucket string) Option {
	return func(r *BestLapRepository) {
		r.bucket = bucket
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *BestLapRepository) {
		r.l = l
	}
}

// WithKeyValue uses an existing bucket instead of creating one on conn.
func WithKeyValue(kv jetstream.KeyValue) Option {
	return func(r *BestLapRepository) {
		r.kv = kv
	}
}

func NewBestLapRepository(
	ctx context.Context,
	conn *nats.Conn,
	opts ...Option,
) (*BestLapRepository, error) {
	ret := &BestLapRepository{
		conn:   conn,
		bucket: DefaultBucket,
		l:      log.Default().Named("nats.bestlap"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.kv == nil {
		if err := ret.init(ctx); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (r *BestLapRepository) init(ctx context.Context) error {
	js, err := jetstream.New(r.conn)
	if err != nil {
		return err
	}
	r.kv, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      r.bucket,
		Description: "best laps per track and player",
	})
	return err
}

func (r *BestLapRepository) Load(ctx context.Context, trackID, playerID string) (
	*model.BestLap, error,
) {
	kve, err := r.kv.Get(ctx, Key(trackID, playerID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, api.ErrNotFound
		}
		return nil, err
	}
	return decode(kve.Value())
}

func (r *BestLapRepository) Store(ctx context.Context, lap *model.BestLap) error {
	if lap.RecordedAt.IsZero() {
		lap.RecordedAt = time.Now()
	}
	data, err := json.Marshal(lap)
	if err != nil {
		return err
	}
	key := Key(lap.TrackID, lap.PlayerID)
	for range maxStoreAttempts {
		err = r.storeIfFaster(ctx, key, lap.LapMs, data)
		if !errors.Is(err, jetstream.ErrKeyExists) {
			break
		}
		r.l.Debug("best lap changed concurrently, retrying", log.String("key", key))
	}
	if err != nil && !errors.Is(err, api.ErrNotImproved) {
		r.l.Error("could not store best lap", log.ErrorField(err))
	}
	return err
}

// storeIfFaster writes data if no entry exists or the stored lap is slower.
// The write is bound to the revision read before, a concurrent change
// yields jetstream.ErrKeyExists.
func (r *BestLapRepository) storeIfFaster(
	ctx context.Context,
	key string,
	lapMs int64,
	data []byte,
) error {
	kve, err := r.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		_, err = r.kv.Create(ctx, key, data)
		return err
	}
	if err != nil {
		return err
	}
	if cur, decErr := decode(kve.Value()); decErr == nil && cur.LapMs <= lapMs {
		return api.ErrNotImproved
	}
	_, err = r.kv.Update(ctx, key, data, kve.Revision())
	return err
}

func (r *BestLapRepository) LoadByTrack(ctx context.Context, trackID string) (
	[]*model.BestLap, error,
) {
	keys, err := r.trackKeys(ctx, trackID)
	if err != nil {
		return nil, err
	}
	ret := []*model.BestLap{}
	for _, key := range keys {
		kve, err := r.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue // deleted meanwhile
			}
			return nil, err
		}
		item, err := decode(kve.Value())
		if err != nil {
			r.l.Warn("skipping invalid entry", log.String("key", key), log.ErrorField(err))
			continue
		}
		ret = append(ret, item)
	}
	model.SortBestLaps(ret)
	return ret, nil
}

func (r *BestLapRepository) DeleteByTrack(ctx context.Context, trackID string) (int, error) {
	keys, err := r.trackKeys(ctx, trackID)
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		if err := r.kv.Delete(ctx, key); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

func (r *BestLapRepository) trackKeys(ctx context.Context, trackID string) ([]string, error) {
	lister, err := r.kv.ListKeysFiltered(ctx, encode(trackID)+".*")
	if err != nil {
		return nil, err
	}
	ret := []string{}
	for key := range lister.Keys() {
		ret = append(ret, key)
	}
	return ret, nil
}

// Key builds the bucket key for a track and player. IDs are encoded since
// keys only permit a restricted character set.
func Key(trackID, playerID string) string {
	return fmt.Sprintf("%s.%s", encode(trackID), encode(playerID))
}

// ParseKey is the inverse of Key.
func ParseKey(key string) (trackID, playerID string, err error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid key %q", key)
	}
	t, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", "", err
	}
	p, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", err
	}
	return string(t), string(p), nil
}

func encode(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decode(data []byte) (*model.BestLap, error) {
	var item model.BestLap
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
