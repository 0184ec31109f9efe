package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mpapenbr/trackline/log"
	"github.com/mpapenbr/trackline/pkg/service"
	"github.com/mpapenbr/trackline/pkg/trackdoc"
	"github.com/mpapenbr/trackline/pkg/utils"
)

type trackDir struct {
	dir    string
	tracks *service.TrackService
	l      *log.Logger
}

func newTrackDir(dir string, tracks *service.TrackService) *trackDir {
	return &trackDir{
		dir:    dir,
		tracks: tracks,
		l:      log.Default().Named("server.trackdir"),
	}
}

// importAll stores every track document in the directory.
func (t *trackDir) importAll(ctx context.Context) error {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isTrackFile(e.Name()) {
			continue
		}
		t.importFile(ctx, filepath.Join(t.dir, e.Name()))
	}
	return nil
}

// watch imports documents that are written to the directory until ctx is
// done.
func (t *trackDir) watch(ctx context.Context) error {
	return utils.WatchFiles(ctx, t.l, []string{t.dir}, 500*time.Millisecond,
		func(name string) {
			if isTrackFile(name) {
				t.importFile(ctx, name)
			}
		})
}

func (t *trackDir) importFile(ctx context.Context, file string) {
	id := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	doc, err := trackdoc.ReadFile(file, trackdoc.WithDefaultID(id))
	if err != nil {
		t.l.Warn("could not read track document",
			log.String("file", file), log.ErrorField(err))
		return
	}
	if err := t.tracks.Store(ctx, doc.Track()); err != nil {
		t.l.Warn("could not store track",
			log.String("file", file), log.String("track", doc.ID), log.ErrorField(err))
		return
	}
	t.l.Info("track imported",
		log.String("file", file), log.String("track", doc.ID),
		log.Int("rings", len(doc.Boundaries)))
}

func isTrackFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}
