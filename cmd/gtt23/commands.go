package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-gtt23/gtt23"
	"github.com/robert-malhotra/go-gtt23/internal/builder"
	"github.com/robert-malhotra/go-gtt23/internal/config"
	"github.com/robert-malhotra/go-gtt23/tor"
)

// app is the state shared by the commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
}

// command registers its flags on fs and returns the function to run with
// the remaining arguments.
type command struct {
	args    string
	summary string
	setup   func(a *app, fs *flag.FlagSet) func(args []string) error
}

var commands = map[string]command{
	"info":       {"[FILE]", "Print the schema, record count and note of a dataset", setupInfo},
	"dump":       {"[-offset N | -uuid U] [-format json|yaml] [FILE]", "Print one trace", setupDump},
	"scan":       {"[filters] [-limit N] [FILE]", "Decode matching traces and report anomalies", setupScan},
	"labels":     {"[FILE]", "List the website labels with their trace counts", setupLabels},
	"build":      {"-o OUT [-compress CODEC] INPUT...", "Build a dataset from JSONL circuit logs", setupBuild},
	"copy":       {"-o OUT [-compress CODEC] [FILE]", "Rewrite a dataset with other storage options", setupCopy},
	"synth":      {"-o OUT [-n N] [-seed S]", "Write a synthetic dataset", setupSynth},
	"jsonschema": {"", "Print the JSON Schema of dumped traces", setupJSONSchema},
}

// open opens the dataset named by args, falling back to GTT23_FILE.
func (a *app) open(args []string, opts ...gtt23.Option) (*gtt23.Dataset, error) {
	path := a.cfg.File
	switch len(args) {
	case 0:
		if path == "" {
			return nil, errors.New("no dataset given and GTT23_FILE is not set")
		}
	case 1:
		path = args[0]
	default:
		return nil, fmt.Errorf("unexpected arguments: %v", args[1:])
	}

	base := []gtt23.Option{gtt23.WithLogger(a.logger), gtt23.WithBatchSize(a.cfg.BatchSize)}
	if a.cfg.StrictTimestamps {
		base = append(base, gtt23.WithStrictTimestamps())
	}
	return gtt23.Open(path, append(base, opts...)...)
}

func setupInfo(a *app, fs *flag.FlagSet) func([]string) error {
	return func(args []string) error {
		d, err := a.open(args)
		if err != nil {
			return err
		}
		defer d.Close()

		info := d.Info()
		s := d.Schema()
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "schema\t%s v%d\n", info.Name, info.Version)
		fmt.Fprintf(w, "records\t%d\n", info.Records)
		fmt.Fprintf(w, "labels\t%d\n", len(info.Labels))
		if info.Note != "" {
			fmt.Fprintf(w, "note\t%s\n", info.Note)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "ATTRIBUTE\tTYPE\tDESCRIPTION")
		for _, at := range s.Attrs {
			t := gtt23.ElementType{Kind: at.Kind, Size: at.Size}.String()
			if at.Optional {
				t += " (optional)"
			}
			fmt.Fprintf(w, "/@%s\t%s\t%s\n", at.Name, t, at.Doc)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "DATASET\tTYPE\tDESCRIPTION")
		fmt.Fprintf(w, "%s\tstring\twebsite label vocabulary\n", s.Vocabulary)
		for _, c := range s.Columns {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.Path, c.Type, c.Doc)
		}
		return w.Flush()
	}
}

func setupDump(a *app, fs *flag.FlagSet) func([]string) error {
	offset := fs.Uint64("offset", 0, "Offset of the trace")
	id := fs.String("uuid", "", "UUID of the trace; overrides -offset")
	format := fs.String("format", "json", "Output format (json, yaml)")
	return func(args []string) error {
		if *format != "json" && *format != "yaml" {
			return fmt.Errorf("unknown format %q", *format)
		}
		d, err := a.open(args)
		if err != nil {
			return err
		}
		defer d.Close()

		var t *gtt23.Trace
		if *id != "" {
			u, err := uuid.Parse(*id)
			if err != nil {
				return fmt.Errorf("invalid -uuid: %w", err)
			}
			t, err = d.ByUUID(u)
			if err != nil {
				return err
			}
		} else if t, err = d.Decode(*offset); err != nil {
			return err
		}
		return writeTrace(a.out, t, *format)
	}
}

func writeTrace(w io.Writer, t *gtt23.Trace, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// scanStats summarizes one scan.
type scanStats struct {
	ok           uint64
	corrupt      uint64
	nonMonotonic uint64
	cells        uint64
}

func setupScan(a *app, fs *flag.FlagSet) func([]string) error {
	label := fs.String("label", "", "Only traces with this website label")
	relay := fs.Uint("relay", 0, "Only traces measured at this exit relay")
	dayFrom := fs.Uint("day-from", 0, "Only traces measured on or after this day")
	dayTo := fs.Uint("day-to", 255, "Only traces measured on or before this day")
	port := fs.Uint("port", 0, "Only traces to this destination port")
	limit := fs.Uint64("limit", 0, "Stop after this many traces (0 for no limit)")
	strict := fs.Bool("strict", false, "Report decreasing timestamps as corrupt records")
	return func(args []string) error {
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

		reg := prometheus.NewRegistry()
		opts := []gtt23.Option{gtt23.WithRegisterer(reg)}
		if *strict {
			opts = append(opts, gtt23.WithStrictTimestamps())
		}
		d, err := a.open(args, opts...)
		if err != nil {
			return err
		}
		defer d.Close()

		var filters []gtt23.Filter
		if set["label"] {
			id, ok := d.LabelID(*label)
			if !ok {
				return fmt.Errorf("unknown label %q", *label)
			}
			filters = append(filters, gtt23.Eq(gtt23.FieldLabel, uint64(id)))
		}
		if set["relay"] {
			filters = append(filters, gtt23.Eq(gtt23.FieldRelay, uint64(*relay)))
		}
		if set["day-from"] || set["day-to"] {
			filters = append(filters, gtt23.Between(gtt23.FieldDay, uint64(*dayFrom), uint64(*dayTo)))
		}
		if set["port"] {
			filters = append(filters, gtt23.Eq(gtt23.FieldPort, uint64(*port)))
		}

		stats, err := a.scan(d, filters, *limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "traces\t%d\n", stats.ok)
		fmt.Fprintf(w, "corrupt\t%d\n", stats.corrupt)
		fmt.Fprintf(w, "non-monotonic\t%d\n", stats.nonMonotonic)
		fmt.Fprintf(w, "cells\t%d\n", stats.cells)
		if err := writeMetrics(w, reg); err != nil {
			return err
		}
		return w.Flush()
	}
}

// scan decodes the records matching filters and logs progress at most once
// per configured interval.
func (a *app) scan(d *gtt23.Dataset, filters []gtt23.Filter, limit uint64) (scanStats, error) {
	var stats scanStats
	progress := rate.Sometimes{Interval: a.cfg.ProgressInterval}
	began := time.Now()

	for t, err := range d.Select(filters...) {
		if errors.Is(err, gtt23.ErrClosed) {
			return stats, err
		}
		if err != nil {
			stats.corrupt++
			a.logger.Warn("corrupt record", "error", err)
		} else {
			stats.ok++
			stats.cells += uint64(t.Len())
			if t.CheckMonotonic() != nil {
				stats.nonMonotonic++
			}
		}
		progress.Do(func() {
			a.logger.Info("scanning", "traces", stats.ok, "corrupt", stats.corrupt, "elapsed", time.Since(began))
		})
		if limit > 0 && stats.ok+stats.corrupt >= limit {
			break
		}
	}
	a.logger.Info("scan done", "traces", stats.ok, "corrupt", stats.corrupt, "duration", time.Since(began))
	return stats, nil
}

// writeMetrics prints every counter gathered from reg.
func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	if len(families) > 0 {
		fmt.Fprintln(w)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += fmt.Sprintf("{%s=%q}", lp.GetName(), lp.GetValue())
			}
			fmt.Fprintf(w, "%s\t%g\n", name, m.GetCounter().GetValue())
		}
	}
	return nil
}

func setupLabels(a *app, fs *flag.FlagSet) func([]string) error {
	return func(args []string) error {
		d, err := a.open(args)
		if err != nil {
			return err
		}
		defer d.Close()

		x, err := d.Index(gtt23.FieldLabel)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
		for i, label := range d.Labels() {
			fmt.Fprintf(w, "%d\t%s\t\n", x.Count(uint64(i)), label)
		}
		return w.Flush()
	}
}

// compressionFlags registers the flags shared by the writing commands.
func compressionFlags(a *app, fs *flag.FlagSet) func() ([]builder.Option, error) {
	codec := fs.String("compress", a.cfg.Compression, "Column compression (none, deflate, zstd)")
	level := fs.Int("level", 0, "Compression level (0 for the codec default)")
	chunk := fs.Uint64("chunk", builder.DefaultChunk, "Records per chunk")
	return func() ([]builder.Option, error) {
		c, err := builder.ParseCodec(*codec)
		if err != nil {
			return nil, err
		}
		return []builder.Option{builder.WithCompression(c, *level), builder.WithChunk(*chunk)}, nil
	}
}

func setupBuild(a *app, fs *flag.FlagSet) func([]string) error {
	out := fs.String("o", "", "Output dataset path")
	note := fs.String("note", "", "Free-text description stored in the dataset")
	writeOpts := compressionFlags(a, fs)
	return func(args []string) error {
		if *out == "" {
			return errors.New("-o is required")
		}
		if len(args) == 0 {
			return errors.New("no input files")
		}
		opts, err := writeOpts()
		if err != nil {
			return err
		}

		b := builder.New()
		b.SetNote(*note)
		for _, path := range args {
			in, err := builder.OpenInput(path)
			if err != nil {
				return err
			}
			n, err := b.ReadJSONL(in)
			in.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			a.logger.Info("read circuits", "input", path, "records", n)
		}
		return a.write(b, *out, opts)
	}
}

func setupSynth(a *app, fs *flag.FlagSet) func([]string) error {
	out := fs.String("o", "", "Output dataset path")
	n := fs.Int("n", 1000, "Number of traces")
	seed := fs.Uint64("seed", 1, "Random seed")
	writeOpts := compressionFlags(a, fs)
	return func(args []string) error {
		if *out == "" {
			return errors.New("-o is required")
		}
		if len(args) > 0 {
			return fmt.Errorf("unexpected arguments: %v", args)
		}
		if *n < 0 {
			return fmt.Errorf("-n must not be negative, got %d", *n)
		}
		opts, err := writeOpts()
		if err != nil {
			return err
		}
		return a.write(builder.Synthetic(*n, *seed), *out, opts)
	}
}

func setupCopy(a *app, fs *flag.FlagSet) func([]string) error {
	out := fs.String("o", "", "Output dataset path")
	note := fs.String("note", "", "Replace the note of the source dataset")
	writeOpts := compressionFlags(a, fs)
	return func(args []string) error {
		if *out == "" {
			return errors.New("-o is required")
		}
		opts, err := writeOpts()
		if err != nil {
			return err
		}
		d, err := a.open(args)
		if err != nil {
			return err
		}
		defer d.Close()

		b, skipped, err := a.copyRecords(d)
		if err != nil {
			return err
		}
		b.SetNote(d.Info().Note)
		if *note != "" {
			b.SetNote(*note)
		}
		if skipped > 0 {
			a.logger.Warn("skipped corrupt records", "count", skipped)
		}
		return a.write(b, *out, opts)
	}
}

// copyRecords loads every readable record of d into a Builder that keeps
// the source vocabulary order.
func (a *app) copyRecords(d *gtt23.Dataset) (*builder.Builder, uint64, error) {
	b := builder.New()
	b.AddLabels(d.Labels()...)

	var skipped uint64
	progress := rate.Sometimes{Interval: a.cfg.ProgressInterval}
	for t, err := range d.All() {
		if errors.Is(err, gtt23.ErrClosed) {
			return nil, skipped, err
		}
		if err != nil {
			skipped++
			a.logger.Warn("corrupt record", "error", err)
			continue
		}
		b.Add(toRecord(t))
		progress.Do(func() {
			a.logger.Info("copying", "records", b.Len(), "of", d.Len())
		})
	}
	return b, skipped, nil
}

func toRecord(t *gtt23.Trace) builder.Record {
	dirs := make([]int8, len(t.Directions))
	for i, d := range t.Directions {
		dirs[i] = int8(d)
	}
	return builder.Record{
		ID:            t.ID,
		UUID:          t.UUID,
		Domain:        t.Domain,
		Label:         t.Label,
		Relay:         t.Relay,
		Day:           t.Day,
		Port:          t.Port,
		Times:         t.Times,
		Sizes:         t.Sizes,
		Directions:    dirs,
		CellCommands:  t.CellCommands,
		RelayCommands: t.RelayCommands,
	}
}

func (a *app) write(b *builder.Builder, path string, opts []builder.Option) error {
	began := time.Now()
	if err := b.Write(path, opts...); err != nil {
		return err
	}
	a.logger.Info("wrote dataset",
		"path", path,
		"records", b.Len(),
		"labels", len(b.Labels()),
		"duration", time.Since(began))
	return nil
}

func setupJSONSchema(a *app, fs *flag.FlagSet) func([]string) error {
	return func(args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unexpected arguments: %v", args)
		}
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(traceSchema())
	}
}

// traceSchema returns the JSON Schema of a dumped trace.
func traceSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case reflect.TypeFor[uuid.UUID]():
				return &jsonschema.Schema{Type: "string", Format: "uuid"}
			case reflect.TypeFor[tor.CellCommand]():
				return enumSchema(tor.CellCommands())
			case reflect.TypeFor[tor.RelayCommand]():
				return enumSchema(tor.RelayCommands())
			}
			return nil
		},
	}
	s := r.Reflect(&gtt23.Trace{})
	s.Title = "GTT23 trace"
	return s
}

// enumSchema is a string schema limited to the names of values.
func enumSchema[T fmt.Stringer](values []T) *jsonschema.Schema {
	names := make([]any, len(values))
	for i, v := range values {
		names[i] = v.String()
	}
	return &jsonschema.Schema{Type: "string", Enum: names}
}
