// Package main is the entry point for the statetrack command, which diffs and
// watches YAML or JSON documents with the statetrack engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/dshills/statetrack"
	"github.com/dshills/statetrack/settings"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	exitEqual = 0
	exitDiff  = 1
	exitError = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// globals are the flags accepted before the command name.
type globals struct {
	config   string
	handling string
	logLevel string
}

// options builds the engine options from the global flags.
func (g *globals) options() ([]statetrack.Option, error) {
	var opts []statetrack.Option
	if g.config != "" {
		s, found, err := settings.Load(g.config)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("settings file %s: %w", g.config, os.ErrNotExist)
		}
		opts = append(opts, statetrack.WithSettings(s))
	}
	if g.handling != "" {
		h, err := settings.ParseReferenceHandling(g.handling)
		if err != nil {
			return nil, err
		}
		opts = append(opts, statetrack.WithReferenceHandling(h))
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var g globals
	var showVersion bool

	fs := pflag.NewFlagSet("statetrack", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.StringVarP(&g.config, "config", "c", "", "Settings file (TOML or YAML)")
	fs.StringVar(&g.handling, "reference-handling", "", "Reference handling (throw, references, structural, structural-with-reference-loops)")
	fs.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error); logging is off when empty")
	fs.BoolVarP(&showVersion, "version", "v", false, "Show version information")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitEqual
		}
		return exitError
	}

	if showVersion {
		fmt.Fprintf(stdout, "statetrack %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return exitEqual
	}

	switch g.logLevel {
	case "":
	case "debug", "info", "warn", "error":
		statetrack.SetLogOutput(stderr, g.logLevel)
		defer statetrack.SetLogOutput(nil, "")
	default:
		fmt.Fprintf(stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", g.logLevel)
		return exitError
	}

	rest := fs.Args()
	if len(rest) == 0 {
		usage(stderr, fs)
		return exitError
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "diff":
		return runDiff(&g, cmdArgs, stdout, stderr)
	case "watch":
		return runWatch(ctx, &g, cmdArgs, stdout, stderr)
	case "settings":
		return runSettings(cmdArgs, stdout, stderr)
	case "help":
		usage(stdout, fs)
		return exitEqual
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n", cmd)
		usage(stderr, fs)
		return exitError
	}
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "statetrack - diff and watch object graphs\n\n")
	fmt.Fprintf(w, "Usage: statetrack [options] <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  diff A B       Print the differences between two YAML or JSON documents\n")
	fmt.Fprintf(w, "  watch A B      Like diff, then print the differences again whenever a file changes\n")
	fmt.Fprintf(w, "  settings FILE  Print the settings resolved from FILE\n\n")
	fmt.Fprintf(w, "Options:\n")
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprintf(w, "\nExit status is 0 when the documents are equal, 1 when they differ, 2 on error.\n")
}

// runSettings prints the settings loaded from a file.
func runSettings(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintf(stderr, "Error: settings takes exactly one file\n")
		return exitError
	}
	s, found, err := settings.Load(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	if !found {
		fmt.Fprintf(stderr, "Error: settings file %s does not exist\n", args[0])
		return exitError
	}

	fmt.Fprintf(stdout, "reference handling: %s\n", s.ReferenceHandling())
	list := func(label string, names []string) {
		for _, n := range names {
			fmt.Fprintf(stdout, "%s: %s\n", label, n)
		}
	}
	list("ignore type", s.IgnoredTypes())
	list("ignore member", s.IgnoredMembers())
	list("immutable type", s.ImmutableTypes())
	return exitEqual
}
