// Package builder writes GTT23 containers.
//
// It is the write side used for test fixtures, synthetic datasets and the
// conversion of raw measurement logs; the gtt23 package itself only reads.
package builder

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/robert-malhotra/go-gtt23/internal/hdf5"
	"github.com/robert-malhotra/go-gtt23/tor"
)

// Schema identification written to every container.
const (
	SchemaName    = "gtt23"
	SchemaVersion = 1
)

// MaxDomainLen is the width of the stored domain strings.
const MaxDomainLen = 44

// Record is one trace to be written. An empty Domain is written as the
// label. Nil command slices are written as RELAY/DATA cells.
type Record struct {
	ID            uint64
	UUID          uuid.UUID
	Domain        string
	Label         string
	Relay         uint32
	Day           uint8
	Port          uint16
	Times         []float64
	Sizes         []uint16
	Directions    []int8
	CellCommands  []tor.CellCommand
	RelayCommands []tor.RelayCommand
}

// check rejects values the container cannot hold.
func (r *Record) check() error {
	if len(r.domain()) > MaxDomainLen {
		return fmt.Errorf("domain %q longer than %d bytes", r.domain(), MaxDomainLen)
	}
	for i, c := range r.CellCommands {
		if !c.Valid() {
			return fmt.Errorf("cell %d: cell command %d: %w", i, uint8(c), tor.ErrUnknownCommand)
		}
	}
	for i, c := range r.RelayCommands {
		if !c.Valid() {
			return fmt.Errorf("cell %d: relay command %d: %w", i, uint8(c), tor.ErrUnknownCommand)
		}
	}
	return nil
}

func (r *Record) domain() string {
	if r.Domain == "" {
		return r.Label
	}
	return r.Domain
}

// commands returns the stored command codes of r.
func (r *Record) commands() (cmds, relCmds []uint8) {
	if r.CellCommands == nil {
		cmds = make([]uint8, len(r.Times))
		for i := range cmds {
			cmds[i] = uint8(tor.CellRelay)
		}
	} else {
		cmds = make([]uint8, len(r.CellCommands))
		for i, c := range r.CellCommands {
			cmds[i] = uint8(c)
		}
	}
	if r.RelayCommands == nil {
		relCmds = make([]uint8, len(r.Times))
		for i := range relCmds {
			relCmds[i] = uint8(tor.RelayData)
		}
	} else {
		relCmds = make([]uint8, len(r.RelayCommands))
		for i, c := range r.RelayCommands {
			relCmds[i] = uint8(c)
		}
	}
	return cmds, relCmds
}

// Builder accumulates records in memory and writes them as one container.
type Builder struct {
	records []Record
	labels  []string
	labelID map[string]uint32
	lengths map[int]uint32
	note    string
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{
		labelID: make(map[string]uint32),
		lengths: make(map[int]uint32),
	}
}

// Add appends r and returns its offset. The label joins the vocabulary the
// first time it is seen, and a missing UUID is generated.
func (b *Builder) Add(r Record) int {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	b.AddLabels(r.Label)
	b.records = append(b.records, r)
	return len(b.records) - 1
}

// AddLabels appends labels not yet in the vocabulary, in order. Labels
// added this way are written even when no record uses them.
func (b *Builder) AddLabels(labels ...string) {
	for _, l := range labels {
		if _, ok := b.labelID[l]; !ok {
			b.labelID[l] = uint32(len(b.labels))
			b.labels = append(b.labels, l)
		}
	}
}

// SetLength overrides the declared cell count of the record at offset.
func (b *Builder) SetLength(offset int, n uint32) {
	b.lengths[offset] = n
}

// SetNote sets the free-text note attribute.
func (b *Builder) SetNote(note string) {
	b.note = note
}

// Len returns the number of records added.
func (b *Builder) Len() int {
	return len(b.records)
}

// Labels returns the vocabulary in first-seen order.
func (b *Builder) Labels() []string {
	return append([]string(nil), b.labels...)
}

// Write writes the container to path. The file is assembled under a
// temporary name and renamed into place once complete. A record with a
// domain wider than MaxDomainLen or an unknown command code fails the
// write before any file is created.
func (b *Builder) Write(path string, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	for i := range b.records {
		if err := b.records[i].check(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	tmp := path + ".tmp"
	f, err := hdf5.Create(tmp)
	if err != nil {
		return err
	}
	if err := b.write(f.Root(), o); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func (b *Builder) write(root *hdf5.Group, o *options) error {
	n := len(b.records)
	type attr struct {
		name  string
		value any
	}
	attrs := []attr{
		{"schema", SchemaName},
		{"version", int64(SchemaVersion)},
		{"record_count", int64(n)},
		{"label_count", int64(len(b.labels))},
	}
	if b.note != "" {
		attrs = append(attrs, attr{"note", b.note})
	}
	for _, a := range attrs {
		if err := root.SetAttr(a.name, a.value); err != nil {
			return fmt.Errorf("writing attribute %s: %w", a.name, err)
		}
	}

	if _, err := root.CreateStringDataset("labels", b.labels); err != nil {
		return fmt.Errorf("writing labels: %w", err)
	}

	var (
		ids     = make([]uint64, n)
		uuids   = make([]string, n)
		domains = make([]string, n)
		labels  = make([]uint32, n)
		relays  = make([]uint32, n)
		days    = make([]uint8, n)
		ports   = make([]uint16, n)
		lengths = make([]uint32, n)
		times   = make([][]float64, n)
		sizes   = make([][]uint16, n)
		dirs    = make([][]int8, n)
		cmds    = make([][]uint8, n)
		relCmds = make([][]uint8, n)
	)
	for i, r := range b.records {
		ids[i] = r.ID
		uuids[i] = strings.ReplaceAll(r.UUID.String(), "-", "")
		domains[i] = r.domain()
		labels[i] = b.labelID[r.Label]
		relays[i] = r.Relay
		days[i] = r.Day
		ports[i] = r.Port
		lengths[i] = uint32(len(r.Times))
		if l, ok := b.lengths[i]; ok {
			lengths[i] = l
		}
		times[i] = r.Times
		sizes[i] = r.Sizes
		dirs[i] = r.Directions
		cmds[i], relCmds[i] = r.commands()
	}

	traces, err := root.CreateGroup("traces")
	if err != nil {
		return err
	}
	dsOpts := o.datasetOptions()
	scalars := []struct {
		name string
		data any
	}{
		{"id", ids},
		{"label", labels},
		{"relay", relays},
		{"day", days},
		{"port", ports},
		{"length", lengths},
	}
	if _, err := traces.CreateStringDataset("uuid", uuids, append(dsOpts, hdf5.WithStringWidth(32))...); err != nil {
		return fmt.Errorf("writing /traces/uuid: %w", err)
	}
	if _, err := traces.CreateStringDataset("domain", domains, append(dsOpts, hdf5.WithStringWidth(MaxDomainLen))...); err != nil {
		return fmt.Errorf("writing /traces/domain: %w", err)
	}
	for _, s := range scalars {
		if _, err := traces.CreateDataset(s.name, s.data, dsOpts...); err != nil {
			return fmt.Errorf("writing /traces/%s: %w", s.name, err)
		}
	}

	cells, err := root.CreateGroup("cells")
	if err != nil {
		return err
	}
	sequences := []struct {
		name string
		data any
	}{
		{"time", times},
		{"size", sizes},
		{"direction", dirs},
		{"cell_cmd", cmds},
		{"relay_cmd", relCmds},
	}
	for _, s := range sequences {
		if _, err := cells.CreateVarLenDataset(s.name, s.data, dsOpts...); err != nil {
			return fmt.Errorf("writing /cells/%s: %w", s.name, err)
		}
	}
	return nil
}
