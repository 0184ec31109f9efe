package checkpoints

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/trackline/log"
	"github.com/mpapenbr/trackline/pkg/checkpoint"
	cmdutil "github.com/mpapenbr/trackline/pkg/cmd/util"
	"github.com/mpapenbr/trackline/pkg/config"
	"github.com/mpapenbr/trackline/pkg/trackdoc"
	"github.com/mpapenbr/trackline/pkg/utils"
)

type (
	cmdArgs struct {
		file   string
		path   string
		out    string
		n      int
		stride int
		watch  bool
	}
	result struct {
		Track       string                  `json:"track"`
		Config      checkpoint.Config       `json:"config"`
		Checkpoints []checkpoint.Checkpoint `json:"checkpoints"`
	}
)

func NewCheckpointsCmd() *cobra.Command {
	args := cmdArgs{}
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "generates the checkpoints of a track document",
		Long: `Reads the boundaries of a track document and writes the generated
checkpoints as JSON. With --watch the checkpoints are regenerated whenever
the document changes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdutil.SetupLogger()
			if args.watch {
				return args.watchFile(cmd.Context())
			}
			return args.run()
		},
	}
	cmd.Flags().StringVarP(&args.file, "file", "f", "", "track document")
	cmd.Flags().StringVar(&args.path, "path", "",
		"JSONPath of the boundaries within the document (default $.bounds)")
	cmd.Flags().StringVarP(&args.out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&args.n, "n", 0, "number of resampled points per ring")
	cmd.Flags().IntVar(&args.stride, "stride", 0, "use every stride-th pair as checkpoint")
	cmd.Flags().BoolVarP(&args.watch, "watch", "w", false, "regenerate on change")
	cmd.Flags().StringVar(&config.LogLevel, "log-level", "info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.LogFormat, "log-format", "text",
		"controls the log output format")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *cmdArgs) run() error {
	if a.out == "" {
		return a.generate(os.Stdout)
	}
	f, err := os.Create(a.out)
	if err != nil {
		return err
	}
	if err := a.generate(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *cmdArgs) generate(w io.Writer) error {
	var opts []trackdoc.Option
	if a.path != "" {
		opts = append(opts, trackdoc.WithBoundsPath(a.path))
	}
	doc, err := trackdoc.ReadFile(a.file, opts...)
	if err != nil {
		return err
	}
	gen := checkpoint.NewGenerator(a.generatorOptions(doc)...)
	if err := gen.Config().Validate(); err != nil {
		return err
	}
	start := time.Now()
	cps := gen.Generate(doc.Boundaries)
	log.Info("checkpoints generated",
		log.String("track", doc.ID),
		log.Int("checkpoints", len(cps)),
		log.Duration("duration", time.Since(start)))
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result{Track: doc.ID, Config: gen.Config(), Checkpoints: cps})
}

func (a *cmdArgs) generatorOptions(doc *trackdoc.Document) []checkpoint.Option {
	opts := []checkpoint.Option{
		checkpoint.WithConfig(doc.Options),
		checkpoint.WithLogger(log.Default().Named("checkpoint")),
	}
	if a.n > 0 {
		opts = append(opts, checkpoint.WithN(a.n))
	}
	if a.stride > 0 {
		opts = append(opts, checkpoint.WithStride(a.stride))
	}
	return opts
}

func (a *cmdArgs) watchFile(ctx context.Context) error {
	if err := a.run(); err != nil {
		log.Warn("could not generate checkpoints", log.ErrorField(err))
	}
	return utils.WatchFiles(ctx, log.Default().Named("watch"), []string{a.file},
		200*time.Millisecond,
		func(name string) {
			if err := a.run(); err != nil {
				log.Warn("could not generate checkpoints", log.ErrorField(err))
			}
		})
}
