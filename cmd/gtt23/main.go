// Command gtt23 inspects, queries and builds GTT23 Tor trace datasets.
//
// Usage:
//
//	gtt23 [-log-level LEVEL] COMMAND [flags] [FILE]
//
// Commands that read a dataset take its path as the last argument, or from
// GTT23_FILE when it is omitted. Defaults for the other flags come from the
// GTT23_* environment variables and a .env file in the working directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/robert-malhotra/go-gtt23/internal/config"
)

// errUsage is returned after a usage message has been printed.
var errUsage = errors.New("invalid usage")

func main() {
	if err := mainImpl(); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "gtt23: %v\n", err)
		}
		os.Exit(1)
	}
}

func mainImpl() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Usage = func() { usage(flag.CommandLine.Output()) }
	flag.Parse()

	level, err := config.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	if flag.NArg() == 0 {
		usage(os.Stderr)
		return errUsage
	}
	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "gtt23: unknown command %q\n\n", name)
		usage(os.Stderr)
		return errUsage
	}

	a := &app{cfg: cfg, logger: logger, out: os.Stdout}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	run := cmd.setup(a, fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: gtt23 %s %s\n\n%s\n\nflags:\n", name, cmd.args, cmd.summary)
		fs.PrintDefaults()
	}
	if err := fs.Parse(flag.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}
	return run(fs.Args())
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "usage: gtt23 [-log-level LEVEL] COMMAND [flags] [FILE]\n\ncommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-11s %s\n", name, commands[name].summary)
	}
}
