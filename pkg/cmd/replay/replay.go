// Package replay feeds recorded position samples into a lap timing session
// and prints the completed laps.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aarondl/opt/null"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/trackline/log"
	cmdutil "github.com/mpapenbr/trackline/pkg/cmd/util"
	"github.com/mpapenbr/trackline/pkg/config"
	"github.com/mpapenbr/trackline/pkg/db/postgres"
	"github.com/mpapenbr/trackline/pkg/lap"
	"github.com/mpapenbr/trackline/pkg/repository/api"
	"github.com/mpapenbr/trackline/pkg/repository/memory"
	natsrepo "github.com/mpapenbr/trackline/pkg/repository/nats"
	pgrepo "github.com/mpapenbr/trackline/pkg/repository/postgres"
	"github.com/mpapenbr/trackline/pkg/service"
	"github.com/mpapenbr/trackline/pkg/trackdoc"
)

type replayArgs struct {
	file         string
	boundsPath   string
	samples      string
	trackID      string
	playerID     string
	minLap       time.Duration
	requireAll   bool
	allCrossings bool
	store        string
	addr         string
	token        string
	speed        float64
	batch        int
}

//nolint:funlen // by design
func NewReplayCmd() *cobra.Command {
	args := replayArgs{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "replays recorded position samples and reports the laps",
		Long: `Replays a CSV file of position samples (t_ms,x,y) on a track.
The track is read from --file or loaded from the store by --track-id.
With --addr the samples are sent to a running server instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, sqlLogger := cmdutil.SetupLogger()
			return args.run(cmd.Context(), cmd.OutOrStdout(), sqlLogger)
		},
	}
	cmd.Flags().StringVarP(&args.file, "file", "f", "", "track document")
	cmd.Flags().StringVar(&args.boundsPath, "path", "",
		"JSONPath of the boundaries within the track document")
	cmd.Flags().StringVarP(&args.samples, "samples", "s", "", "CSV file with samples")
	cmd.Flags().StringVar(&args.trackID, "track-id", "",
		"id of the track (overrides the id of --file)")
	cmd.Flags().StringVar(&args.playerID, "player-id", "replay", "player id of the session")
	cmd.Flags().DurationVar(&args.minLap, "min-lap",
		time.Duration(lap.DefaultMinLapMs)*time.Millisecond, "minimum lap duration")
	cmd.Flags().BoolVar(&args.requireAll, "require-all", true,
		"require all checkpoints for a valid lap")
	cmd.Flags().BoolVar(&args.allCrossings, "all-crossings", false,
		"process every checkpoint crossed by a movement")
	cmd.Flags().StringVar(&args.store, "store", config.StoreMemory,
		"where tracks and best laps are kept (memory, none, postgres, nats)")
	cmd.Flags().StringVar(&config.BestLapBucket, "bestlap-bucket", natsrepo.DefaultBucket,
		"NATS key value bucket for best laps")
	cmd.Flags().StringVar(&args.addr, "addr", "",
		"send the samples to the server at this address")
	cmd.Flags().StringVarP(&args.token, "token", "t", "",
		"admin token used to upload the track to the server")
	cmd.Flags().Float64Var(&args.speed, "speed", 0,
		"replay speed factor (0 means: go as fast as possible)")
	cmd.Flags().IntVar(&args.batch, "batch", 50, "samples per update")
	cmd.Flags().StringVar(&config.LogLevel, "log-level", "warn",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.SQLLogLevel, "sql-log-level", "info",
		"controls the log level for sql methods")
	cmd.Flags().StringVar(&config.LogFormat, "log-format", "text",
		"controls the log output format")
	_ = cmd.MarkFlagRequired("samples")
	return cmd
}

func (a *replayArgs) lapConfig() lap.Config {
	opts := []lap.Option{
		lap.WithMinLap(a.minLap),
		lap.WithRequireAllCheckpoints(a.requireAll),
	}
	if a.allCrossings {
		opts = append(opts, lap.WithAllCrossings())
	}
	return lap.NewConfig(opts...)
}

//nolint:cyclop // by design
func (a *replayArgs) run(ctx context.Context, w io.Writer, sqlLogger *log.Logger) error {
	if a.file == "" && a.trackID == "" {
		return errors.New("either --file or --track-id is required")
	}
	samples, err := ReadSamplesFile(a.samples)
	if err != nil {
		return err
	}
	t, cleanup, err := a.target(ctx, sqlLogger)
	if err != nil {
		return err
	}
	defer cleanup()

	trackID := a.trackID
	if a.file != "" {
		opts := []trackdoc.Option{}
		if a.boundsPath != "" {
			opts = append(opts, trackdoc.WithBoundsPath(a.boundsPath))
		}
		if trackID != "" {
			opts = append(opts, trackdoc.WithID(trackID))
		}
		doc, err := trackdoc.ReadFile(a.file, opts...)
		if err != nil {
			return err
		}
		if err := t.storeTrack(ctx, doc.Track()); err != nil {
			return err
		}
		trackID = doc.ID
	}
	return a.replay(ctx, w, t, trackID, samples)
}

//nolint:funlen // by design
func (a *replayArgs) target(ctx context.Context, sqlLogger *log.Logger) (
	target, func(), error,
) {
	noop := func() {}
	if a.addr != "" {
		t, err := newRemoteTarget(a.addr, a.token)
		return t, noop, err
	}
	var repos api.Repositories
	cleanup := noop
	switch a.store {
	case config.StoreMemory, config.StoreNone, "":
		repos = memory.NewRepositories()
	case config.StorePostgres:
		cmdutil.WaitForRequiredServices(ctx, true, false)
		repos = pgrepo.NewRepositories(cmdutil.NewPool(sqlLogger, false))
		cleanup = postgres.CloseDB
	case config.StoreNats:
		cmdutil.WaitForRequiredServices(ctx, false, true)
		nc, err := cmdutil.ConnectNats()
		if err != nil {
			return nil, noop, err
		}
		kv, err := natsrepo.NewBestLapRepository(ctx, nc,
			natsrepo.WithBucket(config.BestLapBucket))
		if err != nil {
			nc.Close()
			return nil, noop, err
		}
		repos = api.WithBestLaps(memory.NewRepositories(), kv)
		cleanup = func() { _ = nc.Drain() }
	default:
		return nil, noop, fmt.Errorf("unknown store %q", a.store)
	}
	tracks := service.NewTrackService(repos)
	return &localTarget{
		tracks:   tracks,
		sessions: service.NewSessionService(tracks, repos.BestLap()),
	}, cleanup, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (a *replayArgs) replay(
	ctx context.Context,
	w io.Writer,
	t target,
	trackID string,
	samples []service.Sample,
) error {
	id, err := t.start(ctx, trackID, a.playerID, a.lapConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := t.stop(context.WithoutCancel(ctx), id); err != nil {
			log.Warn("could not stop session", log.ErrorField(err))
		}
	}()
	fmt.Fprintf(w, "track %s, player %s, %d samples\n", trackID, a.playerID, len(samples))

	batch := max(a.batch, 1)
	laps := 0
	best := null.FromPtr[int64](nil)
	for i := 0; i < len(samples); i += batch {
		chunk := samples[i:min(i+batch, len(samples))]
		if err := a.pace(ctx, samples, i, chunk); err != nil {
			return err
		}
		upd, err := t.update(ctx, id, chunk)
		if err != nil {
			return err
		}
		if upd.Skipped > 0 {
			log.Warn("samples out of order skipped", log.Int("count", upd.Skipped))
		}
		for _, e := range upd.Laps {
			laps++
			marker := ""
			if e.Improved {
				marker = " *"
			}
			fmt.Fprintf(w, "lap %3d  %s  (%ss)  best %s%s\n",
				e.Lap,
				lap.FormatLapTime(null.From(e.LapMs)),
				lap.Seconds(e.LapMs).StringFixed(3),
				lap.FormatLapTime(e.BestLapMs),
				marker)
			best = e.BestLapMs
		}
	}
	fmt.Fprintf(w, "%d laps, best %s\n", laps, lap.FormatLapTime(best))
	return nil
}

// pace waits until chunk is due relative to the previous chunk.
//
//nolint:whitespace // can't make both editor and linter happy
func (a *replayArgs) pace(
	ctx context.Context, samples []service.Sample, i int, chunk []service.Sample,
) error {
	if a.speed <= 0 || i == 0 {
		return nil
	}
	delta := chunk[len(chunk)-1].TimeMs - samples[i-1].TimeMs
	if delta <= 0 {
		return nil
	}
	wait := time.Duration(float64(delta)/a.speed) * time.Millisecond
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
