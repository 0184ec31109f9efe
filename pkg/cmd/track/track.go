// Package track provides commands to manage the tracks stored in the database.
package track

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/trackline/log"
	cmdutil "github.com/mpapenbr/trackline/pkg/cmd/util"
	"github.com/mpapenbr/trackline/pkg/config"
	"github.com/mpapenbr/trackline/pkg/db/postgres"
	pgrepo "github.com/mpapenbr/trackline/pkg/repository/postgres"
	"github.com/mpapenbr/trackline/pkg/service"
	"github.com/mpapenbr/trackline/pkg/trackdoc"
)

func NewTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "manage tracks in the database",
	}
	cmd.PersistentFlags().StringVar(&config.LogLevel, "log-level", "info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.PersistentFlags().StringVar(&config.SQLLogLevel, "sql-log-level", "info",
		"controls the log level for sql methods")
	cmd.PersistentFlags().StringVar(&config.LogFormat, "log-format", "text",
		"controls the log output format")
	cmd.AddCommand(newImportCmd(), newListCmd(), newDeleteCmd())
	return cmd
}

func newImportCmd() *cobra.Command {
	var boundsPath, id string
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "imports track documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracks(cmd.Context(), func(tracks *service.TrackService) error {
				opts := []trackdoc.Option{}
				if boundsPath != "" {
					opts = append(opts, trackdoc.WithBoundsPath(boundsPath))
				}
				if id != "" {
					opts = append(opts, trackdoc.WithID(id))
				}
				return importFiles(cmd.Context(), cmd.OutOrStdout(), tracks, args, opts...)
			})
		},
	}
	cmd.Flags().StringVar(&boundsPath, "path", "",
		"JSONPath of the boundaries within the documents")
	cmd.Flags().StringVar(&id, "id", "", "store the track with this id")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "lists the stored tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracks(cmd.Context(), func(tracks *service.TrackService) error {
				return listTracks(cmd.Context(), cmd.OutOrStdout(), tracks)
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "deletes tracks and their best laps",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracks(cmd.Context(), func(tracks *service.TrackService) error {
				for _, id := range args {
					if err := tracks.Delete(cmd.Context(), id); err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				}
				return nil
			})
		},
	}
}

func withTracks(ctx context.Context, fn func(tracks *service.TrackService) error) error {
	_, sqlLogger := cmdutil.SetupLogger()
	cmdutil.WaitForRequiredServices(ctx, true, false)
	pool := cmdutil.NewPool(sqlLogger, false)
	defer postgres.CloseDB()
	return fn(service.NewTrackService(pgrepo.NewRepositories(pool)))
}

//nolint:whitespace // can't make both editor and linter happy
func importFiles(
	ctx context.Context,
	w io.Writer,
	tracks *service.TrackService,
	files []string,
	opts ...trackdoc.Option,
) error {
	for _, file := range files {
		doc, err := trackdoc.ReadFile(file, opts...)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if err := tracks.Store(ctx, doc.Track()); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		cps, err := tracks.Checkpoints(ctx, doc.ID)
		if err != nil {
			log.Warn("could not compute checkpoints", log.ErrorField(err))
		}
		fmt.Fprintf(w, "imported %s (%s): %d rings, %d checkpoints\n",
			doc.ID, doc.Name, len(doc.Boundaries), len(cps))
	}
	return nil
}

func listTracks(ctx context.Context, w io.Writer, tracks *service.TrackService) error {
	all, err := tracks.Tracks(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRINGS\tUPDATED")
	for _, t := range all {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			t.ID, t.Name, len(t.Boundaries), t.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
