package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/dshills/statetrack"
)

// differ compares two document files.
type differ struct {
	a, b     string
	path     string
	opts     []statetrack.Option
	renderer *renderer
	debounce time.Duration
}

// parseDiff parses the arguments shared by diff and watch.
func parseDiff(name string, g *globals, args []string, stdout, stderr io.Writer) (*differ, int, bool) {
	var path string
	var noColor, inline bool
	debounce := 100 * time.Millisecond

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&path, "path", "p", "", "Compare only the sub-document at this gjson path")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&inline, "inline", false, "Show character-level differences between strings")
	if name == "watch" {
		fs.DurationVar(&debounce, "debounce", debounce, "Wait this long after the last file event before comparing again")
	}
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: statetrack %s [options] A B\n\n", name)
		fmt.Fprint(stderr, fs.FlagUsages())
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, exitEqual, false
		}
		return nil, exitError, false
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return nil, exitError, false
	}

	opts, err := g.options()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, exitError, false
	}

	return &differ{
		a:        fs.Arg(0),
		b:        fs.Arg(1),
		path:     path,
		opts:     opts,
		renderer: newRenderer(!noColor && isTerminal(stdout), inline),
		debounce: debounce,
	}, exitEqual, true
}

// Diff loads both documents and renders their differences. The rendering is
// empty when they are equal.
func (d *differ) Diff() (string, error) {
	x, err := loadDocument(d.a, d.path)
	if err != nil {
		return "", err
	}
	y, err := loadDocument(d.b, d.path)
	if err != nil {
		return "", err
	}
	vd, err := statetrack.DiffBy(x, y, d.opts...)
	if err != nil {
		return "", err
	}
	return d.renderer.Render(vd), nil
}

func runDiff(g *globals, args []string, stdout, stderr io.Writer) int {
	d, code, ok := parseDiff("diff", g, args, stdout, stderr)
	if !ok {
		return code
	}

	out, err := d.Diff()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	if out == "" {
		return exitEqual
	}
	fmt.Fprintln(stdout, out)
	return exitDiff
}
