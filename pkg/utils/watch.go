package utils

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/trackline/log"
)

// WatchFiles calls onChange with the file name whenever one of the files (or
// a file within a watched directory) is written or created. Events for the
// same file within debounce are reported once. WatchFiles blocks until ctx is
// done.
//
//nolint:gocognit,cyclop // by design
func WatchFiles(
	ctx context.Context,
	l *log.Logger,
	paths []string,
	debounce time.Duration,
	onChange func(name string),
) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	for _, p := range paths {
		if err := watcher.Add(p); err != nil {
			return err
		}
		l.Debug("watching", log.String("path", p))
	}

	pending := map[string]*time.Timer{}
	fire := make(chan string)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				l.Info("watcher events channel closed")
				return nil
			}
			l.Debug("change detected",
				log.String("file", event.Name), log.Stringer("op", event.Op))
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Clean(event.Name)
			if t, ok := pending[name]; ok {
				t.Reset(debounce)
				continue
			}
			pending[name] = time.AfterFunc(debounce, func() {
				select {
				case fire <- name:
				case <-ctx.Done():
				}
			})
		case name := <-fire:
			delete(pending, name)
			onChange(name)
		case err, ok := <-watcher.Errors:
			if !ok {
				l.Info("watcher errors channel closed")
				return nil
			}
			l.Error("watcher error", log.ErrorField(err))
		}
	}
}
