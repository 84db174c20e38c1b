package gtt23

import (
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/robert-malhotra/go-gtt23/internal/container"
)

// Filter selects the records whose Field lies in the inclusive window
// [Min, Max].
type Filter struct {
	Field Field
	Min   uint64
	Max   uint64
}

// Eq returns a filter matching field == v.
func Eq(field Field, v uint64) Filter {
	return Filter{Field: field, Min: v, Max: v}
}

// Between returns a filter matching lo <= field <= hi.
func Between(field Field, lo, hi uint64) Filter {
	return Filter{Field: field, Min: lo, Max: hi}
}

func (f Filter) String() string {
	if f.Min == f.Max {
		return fmt.Sprintf("%s=%d", f.Field, f.Min)
	}
	return fmt.Sprintf("%s in [%d, %d]", f.Field, f.Min, f.Max)
}

// All yields every record in offset order without building an index.
//
// Like every iterator of a Dataset it is lazy and restartable: each range
// over it starts again at the first record, and records are decoded in
// batches only as they are consumed. Corrupt records are yielded as errors
// and iteration continues with the next record.
func (d *Dataset) All() iter.Seq2[*Trace, error] {
	return func(yield func(*Trace, error) bool) {
		if d.closed {
			yield(nil, ErrClosed)
			return
		}
		n := d.info.Records
		step := uint64(d.batch)
		for start := uint64(0); start < n; start += step {
			if !d.yieldRange(start, min(start+step, n), yield) {
				return
			}
		}
	}
}

// ByLabel yields the records with the given website label in offset order.
// An unknown label yields nothing.
func (d *Dataset) ByLabel(label string) iter.Seq2[*Trace, error] {
	id, ok := d.labelID[label]
	if !ok {
		return func(yield func(*Trace, error) bool) {
			if d.closed {
				yield(nil, ErrClosed)
			}
		}
	}
	return d.Select(Eq(FieldLabel, uint64(id)))
}

// ByRelay yields the records measured at the given exit relay.
func (d *Dataset) ByRelay(relay uint32) iter.Seq2[*Trace, error] {
	return d.Select(Eq(FieldRelay, uint64(relay)))
}

// ByDay yields the records measured on the given day.
func (d *Dataset) ByDay(day uint8) iter.Seq2[*Trace, error] {
	return d.Select(Eq(FieldDay, uint64(day)))
}

// ByPort yields the records with the given destination port.
func (d *Dataset) ByPort(port uint16) iter.Seq2[*Trace, error] {
	return d.Select(Eq(FieldPort, uint64(port)))
}

// ByDayRange yields the records measured between the days first and last,
// inclusive.
func (d *Dataset) ByDayRange(first, last uint8) iter.Seq2[*Trace, error] {
	return d.Select(Between(FieldDay, uint64(first), uint64(last)))
}

// Select yields the records matching every filter, in offset order. The
// index of each filtered field is built on first use. Without filters it
// behaves like All.
func (d *Dataset) Select(filters ...Filter) iter.Seq2[*Trace, error] {
	if len(filters) == 0 {
		return d.All()
	}
	return func(yield func(*Trace, error) bool) {
		offsets, err := d.match(filters)
		if err != nil {
			yield(nil, err)
			return
		}
		d.yieldOffsets(offsets, yield)
	}
}

// Count returns the number of records matching every filter.
func (d *Dataset) Count(filters ...Filter) (uint64, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if len(filters) == 0 {
		return d.info.Records, nil
	}
	offsets, err := d.match(filters)
	if err != nil {
		return 0, err
	}
	return uint64(len(offsets)), nil
}

// ByUUID decodes the record with the given UUID. The UUID table is built on
// first use with one bulk read of the uuid column.
func (d *Dataset) ByUUID(id uuid.UUID) (*Trace, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.uuids == nil {
		if err := d.buildUUIDs(); err != nil {
			return nil, err
		}
	}
	offset, ok := d.uuids[id]
	if !ok {
		return nil, fmt.Errorf("uuid %s: %w", id, ErrNotFound)
	}
	return d.Decode(offset)
}

func (d *Dataset) buildUUIDs() error {
	var raw []string
	if err := d.store.ReadArray(PathUUID, container.Range{End: d.info.Records}, &raw); err != nil {
		return fmt.Errorf("reading uuids: %w", err)
	}
	uuids := make(map[uuid.UUID]uint64, len(raw))
	for off, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			// Decode reports the record as corrupt.
			continue
		}
		if _, dup := uuids[id]; !dup {
			uuids[id] = uint64(off)
		}
	}
	d.uuids = uuids
	return nil
}

// match returns the ascending offsets satisfying all filters.
func (d *Dataset) match(filters []Filter) ([]uint64, error) {
	var result []uint64
	for i, f := range filters {
		x, err := d.Index(f.Field)
		if err != nil {
			return nil, err
		}
		offsets := x.between(f.Min, f.Max)
		if i == 0 {
			result = offsets
		} else {
			result = intersect(result, offsets)
		}
		if len(result) == 0 {
			return nil, nil
		}
	}
	return result, nil
}

// yieldOffsets decodes the ascending offsets in batches of contiguous runs.
func (d *Dataset) yieldOffsets(offsets []uint64, yield func(*Trace, error) bool) {
	for i := 0; i < len(offsets); {
		j := i + 1
		for j < len(offsets) && j-i < d.batch && offsets[j] == offsets[j-1]+1 {
			j++
		}
		if !d.yieldRange(offsets[i], offsets[j-1]+1, yield) {
			return
		}
		i = j
	}
}

// yieldRange decodes [start, end) and yields each result. It reports
// whether iteration should continue.
func (d *Dataset) yieldRange(start, end uint64, yield func(*Trace, error) bool) bool {
	if d.closed {
		yield(nil, ErrClosed)
		return false
	}
	results, err := d.decodeRange(start, end)
	if err != nil {
		yield(nil, err)
		return false
	}
	for _, r := range results {
		if !yield(r.Trace, r.Err) {
			return false
		}
	}
	return true
}

// intersect merges two ascending offset lists.
func intersect(a, b []uint64) []uint64 {
	var out []uint64
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
