package main

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Discord-CSS-Datamining/discord-css-differ/internal/encode"
)

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch file",
		Short: "Parse a stylesheet again every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd.Context(), args[0])
		},
	}
}

// watch parses path once and then after every write until ctx is done.
// The parent directory is watched so that editors replacing the file by
// rename are noticed.
func (a *app) watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ioError(err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return ioError(err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return ioError(err)
	}
	a.logger.Info("watching", "file", path)
	a.reparse(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				a.reparse(path)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watch error", "error", err)
		}
	}
}

// reparse parses path and logs the outcome. Faults are logged, not returned,
// so that watching continues.
func (a *app) reparse(path string) {
	src, err := a.read([]string{path})
	if err != nil {
		a.logger.Warn("cannot read stylesheet", "file", path, "error", err)
		return
	}

	ss, err := a.parse(src)
	if err != nil {
		a.logger.Warn("parse failed", "file", src.name, "error", err)
		return
	}
	sum, err := encode.Fingerprint(ss)
	if err != nil {
		a.logger.Warn("cannot fingerprint", "file", src.name, "error", err)
		return
	}
	a.logger.Info("parsed", "file", src.name, "rules", len(ss.Rules), "opaque", len(ss.Opaque), "fingerprint", sum)
}
