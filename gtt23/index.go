package gtt23

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/robert-malhotra/go-gtt23/internal/container"
)

// Field is a per-record column that can be indexed and filtered on.
type Field uint8

const (
	FieldLabel Field = iota + 1
	FieldRelay
	FieldDay
	FieldPort
	FieldLength
)

var fieldNames = map[Field]string{
	FieldLabel:  "label",
	FieldRelay:  "relay",
	FieldDay:    "day",
	FieldPort:   "port",
	FieldLength: "length",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// ParseField returns the Field named s.
func ParseField(s string) (Field, error) {
	for f, name := range fieldNames {
		if strings.EqualFold(name, s) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", s)
}

// path returns the column holding the field.
func (f Field) path() (string, error) {
	switch f {
	case FieldLabel:
		return PathLabel, nil
	case FieldRelay:
		return PathRelay, nil
	case FieldDay:
		return PathDay, nil
	case FieldPort:
		return PathPort, nil
	case FieldLength:
		return PathLength, nil
	default:
		return "", fmt.Errorf("unknown field %d", uint8(f))
	}
}

// Index maps the distinct values of one field to the offsets of the records
// holding them. Label values are vocabulary indexes.
type Index struct {
	field   Field
	keys    []uint64
	offsets map[uint64][]uint64
}

// Field returns the indexed field.
func (x *Index) Field() Field {
	return x.field
}

// Keys returns the distinct values in the order they first occur.
func (x *Index) Keys() []uint64 {
	return slices.Clone(x.keys)
}

// Offsets returns the ascending offsets of the records whose field equals
// key, or nil if no record does.
func (x *Index) Offsets(key uint64) []uint64 {
	return slices.Clone(x.offsets[key])
}

// Count returns the number of records whose field equals key.
func (x *Index) Count(key uint64) int {
	return len(x.offsets[key])
}

// Len returns the number of distinct values.
func (x *Index) Len() int {
	return len(x.keys)
}

// between returns the ascending offsets of the records whose field lies in
// [lo, hi].
func (x *Index) between(lo, hi uint64) []uint64 {
	var out []uint64
	matched := 0
	for _, k := range x.keys {
		if k >= lo && k <= hi {
			out = append(out, x.offsets[k]...)
			matched++
		}
	}
	if matched > 1 {
		slices.Sort(out)
	}
	return out
}

// Index returns the index of field, building it on first use with one bulk
// read of the column. Indexes live until the Dataset is closed.
func (d *Dataset) Index(field Field) (*Index, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if x, ok := d.indexes[field]; ok {
		return x, nil
	}

	path, err := field.path()
	if err != nil {
		return nil, err
	}

	began := time.Now()
	values, err := d.readKeys(field, path)
	if err != nil {
		return nil, fmt.Errorf("building %s index: %w", field, err)
	}

	x := &Index{field: field, offsets: make(map[uint64][]uint64)}
	for off, v := range values {
		if _, ok := x.offsets[v]; !ok {
			x.keys = append(x.keys, v)
		}
		x.offsets[v] = append(x.offsets[v], uint64(off))
	}

	d.indexes[field] = x
	d.metrics.indexBuilds.WithLabelValues(field.String()).Inc()
	d.logger.Info("built index",
		"field", field.String(),
		"keys", x.Len(),
		"records", len(values),
		"duration", time.Since(began))
	return x, nil
}

// readKeys reads a whole unsigned column widened to uint64.
func (d *Dataset) readKeys(field Field, path string) ([]uint64, error) {
	r := container.Range{End: d.info.Records}
	switch field {
	case FieldDay:
		return readWidened[uint8](d.store, path, r)
	case FieldPort:
		return readWidened[uint16](d.store, path, r)
	default:
		return readWidened[uint32](d.store, path, r)
	}
}

func readWidened[T uint8 | uint16 | uint32 | uint64](store container.Store, path string, r container.Range) ([]uint64, error) {
	var raw []T
	if err := store.ReadArray(path, r, &raw); err != nil {
		return nil, err
	}
	out := make([]uint64, len(raw))
	for i, v := range raw {
		out[i] = uint64(v)
	}
	return out, nil
}
