package gtt23

import (
	"errors"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robert-malhotra/go-gtt23/internal/builder"
	"github.com/robert-malhotra/go-gtt23/internal/hdf5"
	"github.com/robert-malhotra/go-gtt23/tor"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// scenarioRecords are three traces with labels [A, A, B], relays [1, 2, 1]
// and lengths [2, 3, 1]. Only record 1 sets its domain and commands.
func scenarioRecords() []builder.Record {
	return []builder.Record{
		{ID: 100, Label: "A", Relay: 1, Day: 1, Port: 443,
			Times: []float64{0, 0.5}, Sizes: []uint16{514, 514}, Directions: []int8{1, -1}},
		{ID: 101, Domain: "www.a.example", Label: "A", Relay: 2, Day: 2, Port: 80,
			Times: []float64{0, 0.25, 1}, Sizes: []uint16{514, 498, 514}, Directions: []int8{1, -1, -1},
			CellCommands:  []tor.CellCommand{tor.CellCreate2, tor.CellCreated2, tor.CellRelay},
			RelayCommands: []tor.RelayCommand{tor.RelayNotPresent, tor.RelayNotPresent, tor.RelayConnected}},
		{ID: 102, Label: "B", Relay: 1, Day: 3, Port: 443,
			Times: []float64{2}, Sizes: []uint16{514}, Directions: []int8{1}},
	}
}

// writeRecords writes records to a fresh container and returns its path.
func writeRecords(t *testing.T, records []builder.Record, opts ...builder.Option) string {
	t.Helper()

	b := builder.New()
	b.SetNote("test fixture")
	for _, r := range records {
		b.Add(r)
	}
	path := filepath.Join(t.TempDir(), "gtt23.h5")
	if err := b.Write(path, opts...); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return path
}

func openPath(t *testing.T, path string, opts ...Option) *Dataset {
	t.Helper()

	d, err := Open(path, append([]Option{WithLogger(quiet)}, opts...)...)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func openScenario(t *testing.T, opts ...Option) *Dataset {
	t.Helper()
	return openPath(t, writeRecords(t, scenarioRecords()), opts...)
}

// rawColumn is one dataset of a hand-written container.
type rawColumn struct {
	group string
	name  string
	data  any
}

type rawAttr struct {
	name  string
	value any
}

// rawLayout is a container written directly through the engine, so tests
// can produce layouts the builder never would. widths fixes the width of
// string columns by path.
type rawLayout struct {
	attrs   []rawAttr
	columns []rawColumn
	widths  map[string]int
}

func validLayout() *rawLayout {
	return &rawLayout{
		attrs: []rawAttr{
			{AttrSchema, "gtt23"},
			{AttrVersion, int64(1)},
			{AttrRecordCount, int64(2)},
			{AttrLabelCount, int64(2)},
		},
		columns: []rawColumn{
			{"", "labels", []string{"x.org", "y.org"}},
			{"traces", "id", []uint64{1, 2}},
			{"traces", "uuid", []string{"0123456789abcdef0123456789abcdef", "fedcba9876543210fedcba9876543210"}},
			{"traces", "domain", []string{"www.x.org", "y.org"}},
			{"traces", "label", []uint32{0, 1}},
			{"traces", "relay", []uint32{5, 6}},
			{"traces", "day", []uint8{1, 2}},
			{"traces", "port", []uint16{443, 80}},
			{"traces", "length", []uint32{1, 2}},
			{"cells", "time", [][]float64{{0.1}, {0.2, 0.3}}},
			{"cells", "size", [][]uint16{{514}, {514, 514}}},
			{"cells", "direction", [][]int8{{1}, {1, -1}}},
			{"cells", "cell_cmd", [][]uint8{{3}, {10, 3}}},
			{"cells", "relay_cmd", [][]uint8{{2}, {0, 4}}},
		},
		widths: map[string]int{PathDomain: MaxDomainLen},
	}
}

func (l *rawLayout) setAttr(name string, value any) {
	for i, a := range l.attrs {
		if a.name == name {
			l.attrs[i].value = value
			return
		}
	}
	l.attrs = append(l.attrs, rawAttr{name, value})
}

func (l *rawLayout) dropAttr(name string) {
	for i, a := range l.attrs {
		if a.name == name {
			l.attrs = append(l.attrs[:i], l.attrs[i+1:]...)
			return
		}
	}
}

func (l *rawLayout) setColumn(path string, data any) {
	for i, c := range l.columns {
		if "/"+filepath.Join(c.group, c.name) == path {
			l.columns[i].data = data
			return
		}
	}
	panic("unknown column " + path)
}

func (l *rawLayout) dropColumn(path string) {
	for i, c := range l.columns {
		if "/"+filepath.Join(c.group, c.name) == path {
			l.columns = append(l.columns[:i], l.columns[i+1:]...)
			return
		}
	}
	panic("unknown column " + path)
}

func (l *rawLayout) write(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "raw.h5")
	f, err := hdf5.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	root := f.Root()
	for _, a := range l.attrs {
		if err := root.SetAttr(a.name, a.value); err != nil {
			t.Fatalf("SetAttr(%s): %v", a.name, err)
		}
	}

	groups := map[string]*hdf5.Group{"": root}
	for _, c := range l.columns {
		g, ok := groups[c.group]
		if !ok {
			if g, err = root.CreateGroup(c.group); err != nil {
				t.Fatalf("CreateGroup(%s): %v", c.group, err)
			}
			groups[c.group] = g
		}
		switch data := c.data.(type) {
		case []string:
			var opts []hdf5.DatasetOption
			if w, ok := l.widths["/"+filepath.Join(c.group, c.name)]; ok {
				opts = append(opts, hdf5.WithStringWidth(w))
			}
			_, err = g.CreateStringDataset(c.name, data, opts...)
		case [][]float64, [][]uint16, [][]uint32, [][]int8, [][]uint8:
			_, err = g.CreateVarLenDataset(c.name, data)
		default:
			_, err = g.CreateDataset(c.name, data)
		}
		if err != nil {
			t.Fatalf("creating %s/%s: %v", c.group, c.name, err)
		}
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func TestOpen(t *testing.T) {
	d := openScenario(t)

	if d.Len() != 3 {
		t.Errorf("Len = %d, want 3", d.Len())
	}
	if want := []string{"A", "B"}; !reflect.DeepEqual(d.Labels(), want) {
		t.Errorf("Labels = %v, want %v", d.Labels(), want)
	}
	info := d.Info()
	if info.Name != "gtt23" || info.Version != 1 || info.Records != 3 || info.Note != "test fixture" {
		t.Errorf("Info = %+v", info)
	}
	if id, ok := d.LabelID("B"); !ok || id != 1 {
		t.Errorf("LabelID(B) = %d, %v", id, ok)
	}
	if _, ok := d.LabelID("C"); ok {
		t.Error("LabelID(C) should not exist")
	}

	// Callers cannot alter the vocabulary through returned slices.
	d.Labels()[0] = "changed"
	d.Info().Labels[1] = "changed"
	if want := []string{"A", "B"}; !reflect.DeepEqual(d.Labels(), want) {
		t.Errorf("Labels after mutation = %v", d.Labels())
	}
}

func TestOpenCompressed(t *testing.T) {
	for _, codec := range []builder.Codec{builder.CodecDeflate, builder.CodecZstd} {
		t.Run(string(codec), func(t *testing.T) {
			path := writeRecords(t, scenarioRecords(), builder.WithCompression(codec, 0), builder.WithChunk(2))
			d := openPath(t, path)
			for trace, err := range d.All() {
				if err != nil {
					t.Fatalf("record error: %v", err)
				}
				want := scenarioRecords()[trace.Offset]
				if trace.ID != want.ID || !reflect.DeepEqual(trace.Times, want.Times) {
					t.Errorf("record %d = %+v", trace.Offset, trace)
				}
			}
		})
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Open(filepath.Join(dir, "missing.h5")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file: got %v, want ErrNotFound", err)
	}

	garbage := filepath.Join(dir, "garbage.h5")
	if err := os.WriteFile(garbage, []byte("GTT23 but not really"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(garbage); !errors.Is(err, ErrFormat) {
		t.Errorf("garbage file: got %v, want ErrFormat", err)
	}
}

func TestOpenValidRawLayout(t *testing.T) {
	d := openPath(t, validLayout().write(t))
	tr, err := d.Decode(1)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tr.Label != "y.org" || tr.Domain != "y.org" || tr.Relay != 6 || tr.Length != 2 || tr.UUID.String() != "fedcba98-7654-3210-fedc-ba9876543210" {
		t.Errorf("trace = %+v", tr)
	}
	if c := tr.Cell(1); c.CellCommand != tor.CellRelay || c.RelayCommand != tor.RelayConnected {
		t.Errorf("cell 1 = %+v", c)
	}
}

func TestSchemaMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(l *rawLayout)
		path   string
	}{
		{"wrong schema name", func(l *rawLayout) { l.setAttr(AttrSchema, "gtt22") }, "/@schema"},
		{"wrong version", func(l *rawLayout) { l.setAttr(AttrVersion, int64(2)) }, "/@version"},
		{"narrow version", func(l *rawLayout) { l.setAttr(AttrVersion, int32(1)) }, "/@version"},
		{"missing record count", func(l *rawLayout) { l.dropAttr(AttrRecordCount) }, "/@record_count"},
		{"negative record count", func(l *rawLayout) { l.setAttr(AttrRecordCount, int64(-1)) }, "/@record_count"},
		{"note not a string", func(l *rawLayout) { l.setAttr(AttrNote, int64(7)) }, "/@note"},
		{"record count disagrees", func(l *rawLayout) { l.setAttr(AttrRecordCount, int64(3)) }, PathID},
		{"label count disagrees", func(l *rawLayout) { l.setAttr(AttrLabelCount, int64(3)) }, PathLabels},
		{"duplicate labels", func(l *rawLayout) { l.setColumn(PathLabels, []string{"x.org", "x.org"}) }, PathLabels},
		{"labels not strings", func(l *rawLayout) { l.setColumn(PathLabels, []uint32{0, 1}) }, PathLabels},
		{"missing vocabulary", func(l *rawLayout) { l.dropColumn(PathLabels) }, PathLabels},
		{"missing relay", func(l *rawLayout) { l.dropColumn(PathRelay) }, PathRelay},
		{"narrow relay", func(l *rawLayout) { l.setColumn(PathRelay, []uint16{5, 6}) }, PathRelay},
		{"signed id", func(l *rawLayout) { l.setColumn(PathID, []int64{1, 2}) }, PathID},
		{"dashed uuid", func(l *rawLayout) {
			l.setColumn(PathUUID, []string{"01234567-89ab-cdef-0123-456789abcdef", "fedcba98-7654-3210-fedc-ba9876543210"})
		}, PathUUID},
		{"flat time", func(l *rawLayout) { l.setColumn(PathTime, []float64{0.1, 0.2}) }, PathTime},
		{"wide size", func(l *rawLayout) { l.setColumn(PathSize, [][]uint32{{514}, {514, 514}}) }, PathSize},
		{"direction count disagrees", func(l *rawLayout) { l.setColumn(PathDirection, [][]int8{{1}, {1}, {1}}) }, PathDirection},
		{"wide domain", func(l *rawLayout) { l.widths[PathDomain] = 64 }, PathDomain},
		{"missing domain", func(l *rawLayout) { l.dropColumn(PathDomain) }, PathDomain},
		{"signed cell_cmd", func(l *rawLayout) { l.setColumn(PathCellCommand, [][]int8{{3}, {10, 3}}) }, PathCellCommand},
		{"missing relay_cmd", func(l *rawLayout) { l.dropColumn(PathRelayCommand) }, PathRelayCommand},
		{"missing cells group", func(l *rawLayout) {
			for _, p := range []string{PathTime, PathSize, PathDirection, PathCellCommand, PathRelayCommand} {
				l.dropColumn(p)
			}
		}, "/cells"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validLayout()
			tt.mutate(l)
			path := l.write(t)

			_, err := Open(path, WithLogger(quiet))
			if !errors.Is(err, ErrSchemaMismatch) {
				t.Fatalf("got %v, want ErrSchemaMismatch", err)
			}
			var mismatch *SchemaMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("got %T, want *SchemaMismatchError", err)
			}
			if mismatch.Path != tt.path {
				t.Errorf("mismatch at %s (%v), want %s", mismatch.Path, err, tt.path)
			}
		})
	}
}

func TestCloseIdempotent(t *testing.T) {
	d, err := Open(writeRecords(t, scenarioRecords()), WithLogger(quiet))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if _, err := d.Decode(0); !errors.Is(err, ErrClosed) {
		t.Errorf("Decode: got %v, want ErrClosed", err)
	}
	if _, err := d.DecodeRange(0, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("DecodeRange: got %v, want ErrClosed", err)
	}
	if _, err := d.Index(FieldLabel); !errors.Is(err, ErrClosed) {
		t.Errorf("Index: got %v, want ErrClosed", err)
	}
	if _, err := d.Count(Eq(FieldDay, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Count: got %v, want ErrClosed", err)
	}

	iterators := map[string]iter.Seq2[*Trace, error]{
		"All":     d.All(),
		"ByLabel": d.ByLabel("A"),
		"Unknown": d.ByLabel("nope"),
		"ByRelay": d.ByRelay(1),
	}
	for name, seq := range iterators {
		var errs []error
		for tr, err := range seq {
			if tr != nil {
				t.Errorf("%s yielded a trace after Close", name)
			}
			errs = append(errs, err)
		}
		if len(errs) != 1 || !errors.Is(errs[0], ErrClosed) {
			t.Errorf("%s yielded %v, want one ErrClosed", name, errs)
		}
	}
}

func TestCloseDuringIteration(t *testing.T) {
	d, err := Open(writeRecords(t, scenarioRecords()), WithLogger(quiet), WithBatchSize(1))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var got []error
	for _, err := range d.All() {
		got = append(got, err)
		d.Close()
	}
	if len(got) != 2 || got[0] != nil || !errors.Is(got[1], ErrClosed) {
		t.Errorf("errors = %v, want [nil ErrClosed]", got)
	}
}

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := openScenario(t, WithRegisterer(reg))

	for range d.ByLabel("A") {
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"gtt23_records_decoded_total",
		"gtt23_records_corrupt_total",
		"gtt23_records_nonmonotonic_total",
		"gtt23_index_builds_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered (have %v)", want, names)
		}
	}
}
