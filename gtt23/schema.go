package gtt23

import (
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/robert-malhotra/go-gtt23/internal/container"
)

// ElementType and Kind describe stored element types.
type (
	ElementType = container.ElementType
	Kind        = container.Kind
)

const (
	KindInt      = container.KindInt
	KindUint     = container.KindUint
	KindFloat    = container.KindFloat
	KindString   = container.KindString
	KindSequence = container.KindSequence
)

// Container paths of the fixed layout.
const (
	PathLabels    = "/labels"
	PathID        = "/traces/id"
	PathUUID      = "/traces/uuid"
	PathDomain    = "/traces/domain"
	PathLabel     = "/traces/label"
	PathRelay     = "/traces/relay"
	PathDay       = "/traces/day"
	PathPort      = "/traces/port"
	PathLength    = "/traces/length"
	PathTime      = "/cells/time"
	PathSize      = "/cells/size"
	PathDirection = "/cells/direction"

	PathCellCommand  = "/cells/cell_cmd"
	PathRelayCommand = "/cells/relay_cmd"
)

// MaxDomainLen is the stored width of /traces/domain in bytes.
const MaxDomainLen = 44

// Root attribute names.
const (
	AttrSchema      = "schema"
	AttrVersion     = "version"
	AttrRecordCount = "record_count"
	AttrLabelCount  = "label_count"
	AttrNote        = "note"
)

// Attr describes a root attribute. A zero Size accepts any width.
type Attr struct {
	Name     string
	Kind     Kind
	Size     int
	Optional bool
	Doc      string
}

// Column describes a per-record dataset. Every column is one-dimensional
// with one element per record.
type Column struct {
	Path string
	Type ElementType
	Doc  string
}

// Schema is the declarative description of a GTT23 container.
type Schema struct {
	Name       string
	Version    int64
	Attrs      []Attr
	Vocabulary string
	Columns    []Column
}

// Info is the result of validating a container against a Schema.
type Info struct {
	Name    string
	Version int64
	Records uint64
	Labels  []string
	Note    string
}

func scalar(kind Kind, size int) ElementType {
	return ElementType{Kind: kind, Size: size}
}

func sequence(kind Kind, size int) ElementType {
	base := scalar(kind, size)
	return ElementType{Kind: KindSequence, Base: &base}
}

// DefaultSchema returns the schema of GTT23 containers, version 1.
func DefaultSchema() *Schema {
	return &Schema{
		Name:    "gtt23",
		Version: 1,
		Attrs: []Attr{
			{Name: AttrSchema, Kind: KindString, Doc: "schema name, always gtt23"},
			{Name: AttrVersion, Kind: KindInt, Size: 8, Doc: "schema version"},
			{Name: AttrRecordCount, Kind: KindInt, Size: 8, Doc: "number of trace records"},
			{Name: AttrLabelCount, Kind: KindInt, Size: 8, Doc: "number of distinct website labels"},
			{Name: AttrNote, Kind: KindString, Optional: true, Doc: "free-text description"},
		},
		Vocabulary: PathLabels,
		Columns: []Column{
			{Path: PathID, Type: scalar(KindUint, 8), Doc: "stable trace identifier"},
			{Path: PathUUID, Type: scalar(KindString, 32), Doc: "trace UUID, 32 hex digits"},
			{Path: PathDomain, Type: scalar(KindString, MaxDomainLen), Doc: "contacted domain, null padded"},
			{Path: PathLabel, Type: scalar(KindUint, 4), Doc: "index into " + PathLabels},
			{Path: PathRelay, Type: scalar(KindUint, 4), Doc: "exit relay identifier"},
			{Path: PathDay, Type: scalar(KindUint, 1), Doc: "measurement day"},
			{Path: PathPort, Type: scalar(KindUint, 2), Doc: "destination port"},
			{Path: PathLength, Type: scalar(KindUint, 4), Doc: "declared number of cells"},
			{Path: PathTime, Type: sequence(KindFloat, 8), Doc: "cell timestamps in seconds"},
			{Path: PathSize, Type: sequence(KindUint, 2), Doc: "cell sizes in bytes"},
			{Path: PathDirection, Type: sequence(KindInt, 1), Doc: "+1 client to server, -1 server to client, 0 padding"},
			{Path: PathCellCommand, Type: sequence(KindUint, 1), Doc: "link cell command codes"},
			{Path: PathRelayCommand, Type: sequence(KindUint, 1), Doc: "relay command codes, 0 for non-relay cells"},
		},
	}
}

// Validate checks store against the schema in one pass and stops at the
// first violation, returned as a *SchemaMismatchError. Read failures other
// than missing objects are returned as they are.
func (s *Schema) Validate(store container.Store) (*Info, error) {
	attrs := make(map[string]container.Attribute, len(s.Attrs))
	for _, a := range s.Attrs {
		p := "/@" + a.Name
		v, err := store.Attribute(p)
		if errors.Is(err, container.ErrNotFound) {
			if a.Optional {
				continue
			}
			return nil, mismatch(p, a.describe(), "missing")
		}
		if err != nil {
			return nil, err
		}
		if v.Type.Kind != a.Kind || (a.Size != 0 && v.Type.Size != a.Size) {
			return nil, mismatch(p, a.describe(), v.Type.String())
		}
		attrs[a.Name] = v
	}

	info := &Info{}
	if name, _ := attrs[AttrSchema].Text(); name != s.Name {
		return nil, mismatch("/@"+AttrSchema, strconv.Quote(s.Name), strconv.Quote(name))
	}
	info.Name = s.Name
	if version, _ := attrs[AttrVersion].Int(); version != s.Version {
		return nil, mismatch("/@"+AttrVersion, strconv.FormatInt(s.Version, 10), strconv.FormatInt(version, 10))
	}
	info.Version = s.Version
	records, _ := attrs[AttrRecordCount].Int()
	if records < 0 {
		return nil, mismatch("/@"+AttrRecordCount, "non-negative count", strconv.FormatInt(records, 10))
	}
	info.Records = uint64(records)
	labelCount, _ := attrs[AttrLabelCount].Int()
	if labelCount < 0 {
		return nil, mismatch("/@"+AttrLabelCount, "non-negative count", strconv.FormatInt(labelCount, 10))
	}
	if note, ok := attrs[AttrNote]; ok {
		info.Note, _ = note.Text()
	}

	labels, err := s.readVocabulary(store, uint64(labelCount))
	if err != nil {
		return nil, err
	}
	info.Labels = labels

	members := make(map[string]map[string]bool)
	for _, c := range s.Columns {
		group, name := path.Split(c.Path)
		group = path.Clean(group)
		listed, ok := members[group]
		if !ok {
			listed, err = listGroup(store, group)
			if err != nil {
				return nil, err
			}
			members[group] = listed
		}
		if !listed[name] {
			return nil, mismatch(c.Path, c.Type.String()+" dataset", "missing")
		}

		d, err := describe(store, c.Path, c.Type.String())
		if err != nil {
			return nil, err
		}
		if !sameType(d.Type, c.Type) {
			return nil, mismatch(c.Path, c.Type.String(), d.Type.String())
		}
		if d.Dims[0] != info.Records {
			return nil, mismatch(c.Path, fmt.Sprintf("%d records", info.Records), fmt.Sprintf("%d records", d.Dims[0]))
		}
	}

	return info, nil
}

// readVocabulary checks and reads the label vocabulary dataset.
func (s *Schema) readVocabulary(store container.Store, n uint64) ([]string, error) {
	d, err := describe(store, s.Vocabulary, "string")
	if err != nil {
		return nil, err
	}
	if d.Type.Kind != KindString {
		return nil, mismatch(s.Vocabulary, "string", d.Type.String())
	}
	if d.Dims[0] != n {
		return nil, mismatch(s.Vocabulary, fmt.Sprintf("%d labels", n), fmt.Sprintf("%d labels", d.Dims[0]))
	}

	var labels []string
	if err := store.ReadArray(s.Vocabulary, container.Range{End: n}, &labels); err != nil {
		return nil, fmt.Errorf("reading label vocabulary: %w", err)
	}
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if seen[l] {
			return nil, mismatch(s.Vocabulary, "distinct labels", "duplicate "+strconv.Quote(l))
		}
		seen[l] = true
	}
	return labels, nil
}

// listGroup returns the member names of a group.
func listGroup(store container.Store, group string) (map[string]bool, error) {
	names, err := store.Members(group)
	if errors.Is(err, container.ErrNotFound) {
		return nil, mismatch(group, "group", "missing")
	}
	if err != nil {
		return nil, err
	}
	listed := make(map[string]bool, len(names))
	for _, n := range names {
		listed[n] = true
	}
	return listed, nil
}

// describe returns the info of a one-dimensional dataset.
func describe(store container.Store, p, expected string) (container.Info, error) {
	d, err := store.Describe(p)
	if errors.Is(err, container.ErrNotFound) {
		return d, mismatch(p, expected+" dataset", "missing")
	}
	if err != nil {
		return d, err
	}
	if len(d.Dims) != 1 {
		return d, mismatch(p, "1 dimension", fmt.Sprintf("%d dimensions", len(d.Dims)))
	}
	return d, nil
}

func sameType(got, want ElementType) bool {
	if got.Kind != want.Kind || got.Size != want.Size {
		return false
	}
	if want.Base == nil || got.Base == nil {
		return want.Base == got.Base
	}
	return sameType(*got.Base, *want.Base)
}

func (a Attr) describe() string {
	t := ElementType{Kind: a.Kind, Size: a.Size}
	if a.Size == 0 {
		return a.Kind.String() + " attribute"
	}
	return t.String() + " attribute"
}

func mismatch(p, expected, found string) error {
	return &SchemaMismatchError{Path: p, Expected: expected, Found: found}
}
