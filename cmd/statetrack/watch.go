package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/statetrack/internal/logging"
)

func runWatch(ctx context.Context, g *globals, args []string, stdout, stderr io.Writer) int {
	d, code, ok := parseDiff("watch", g, args, stdout, stderr)
	if !ok {
		return code
	}
	if err := d.Watch(ctx, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitEqual
}

// Watch prints the current differences, then prints them again every time a
// change to either file alters them. Events closer together than d.debounce
// are coalesced into one comparison. It returns nil when ctx is done.
//
// Parent directories are watched so that saves which rename over a file are
// seen.
func (d *differ) Watch(ctx context.Context, stdout, stderr io.Writer) error {
	log := logging.For("watch")

	files := make(map[string]bool, 2)
	for _, f := range []string{d.a, d.b} {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		files[abs] = true
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := make(map[string]bool, 2)
	for f := range files {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	last, err := d.Diff()
	if err != nil {
		return err
	}
	printDiff(stdout, last)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !files[filepath.Clean(ev.Name)] || !relevant(ev) {
				continue
			}
			log.Debug("%s changed (%s)", ev.Name, ev.Op)
			if timer == nil {
				timer = time.NewTimer(d.debounce)
			} else {
				timer.Reset(d.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			out, err := d.Diff()
			if err != nil {
				// Files are often briefly invalid while being written.
				fmt.Fprintf(stderr, "Error: %v\n", err)
				continue
			}
			if out == last {
				continue
			}
			last = out
			printDiff(stdout, out)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error: %v", err)
		}
	}
}

// relevant reports whether ev may have changed a file's contents.
func relevant(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func printDiff(w io.Writer, out string) {
	if out == "" {
		fmt.Fprintln(w, "no differences")
		return
	}
	fmt.Fprintln(w, out)
}
