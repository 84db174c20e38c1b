package gtt23

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/robert-malhotra/go-gtt23/internal/container"
	"github.com/robert-malhotra/go-gtt23/tor"
)

// Result is the outcome of decoding one record. Exactly one of Trace and
// Err is set.
type Result struct {
	Offset uint64
	Trace  *Trace
	Err    error
}

// columns holds the raw column values of a contiguous record range.
type columns struct {
	start   uint64
	ids     []uint64
	uuids   []string
	domains []string
	labels  []uint32
	relays  []uint32
	days    []uint8
	ports   []uint16
	lengths []uint32
	times   [][]float64
	sizes   [][]uint16
	dirs    [][]int8
	cmds    [][]uint8
	relCmds [][]uint8
}

// Decode reads and validates the record at offset.
//
// An offset at or beyond Len returns ErrOutOfRange. Inconsistent records
// return a *CorruptRecordError.
func (d *Dataset) Decode(offset uint64) (*Trace, error) {
	if err := d.checkRange(offset, offset+1); err != nil {
		return nil, err
	}
	results, err := d.decodeRange(offset, offset+1)
	if err != nil {
		return nil, err
	}
	return results[0].Trace, results[0].Err
}

// DecodeRange decodes the records in [start, end). The columns are read in
// bulk; records that fail validation are reported in their Result and do
// not affect the others. An empty range returns an empty slice.
func (d *Dataset) DecodeRange(start, end uint64) ([]Result, error) {
	if err := d.checkRange(start, end); err != nil {
		return nil, err
	}
	if start == end {
		return []Result{}, nil
	}
	return d.decodeRange(start, end)
}

// decodeRange decodes a non-empty, in-bounds range. The returned error is
// set only when the dataset was closed.
func (d *Dataset) decodeRange(start, end uint64) ([]Result, error) {
	r := container.Range{Start: start, End: end}
	c, err := d.readColumns(r)
	if errors.Is(err, ErrClosed) {
		return nil, err
	}
	if err != nil {
		if r.Len() == 1 {
			return []Result{d.finish(start, nil, &CorruptRecordError{Offset: start, Reason: "unreadable", Err: err})}, nil
		}
		// Narrow a failed bulk read down to the records that cause it.
		d.logger.Debug("bulk read failed, decoding records individually", "range", r.String(), "error", err)
		results := make([]Result, 0, r.Len())
		for off := start; off < end; off++ {
			rs, err := d.decodeRange(off, off+1)
			if err != nil {
				return nil, err
			}
			results = append(results, rs...)
		}
		return results, nil
	}

	results := make([]Result, r.Len())
	for i := range results {
		t, err := d.decodeRecord(c, i)
		results[i] = d.finish(start+uint64(i), t, err)
	}
	return results, nil
}

// readColumns bulk-reads every column over r.
func (d *Dataset) readColumns(r container.Range) (*columns, error) {
	c := &columns{start: r.Start}
	reads := []struct {
		path string
		dest any
	}{
		{PathID, &c.ids},
		{PathUUID, &c.uuids},
		{PathDomain, &c.domains},
		{PathLabel, &c.labels},
		{PathRelay, &c.relays},
		{PathDay, &c.days},
		{PathPort, &c.ports},
		{PathLength, &c.lengths},
		{PathTime, &c.times},
		{PathSize, &c.sizes},
		{PathDirection, &c.dirs},
		{PathCellCommand, &c.cmds},
		{PathRelayCommand, &c.relCmds},
	}
	for _, rd := range reads {
		if err := d.store.ReadArray(rd.path, r, rd.dest); err != nil {
			return nil, err
		}
		if n := reflect.ValueOf(rd.dest).Elem().Len(); uint64(n) != r.Len() {
			return nil, fmt.Errorf("%s: read %d elements for range %s", rd.path, n, r)
		}
	}
	return c, nil
}

// decodeRecord builds the i-th record of c and checks its invariants.
func (d *Dataset) decodeRecord(c *columns, i int) (*Trace, error) {
	offset := c.start + uint64(i)
	corrupt := func(format string, args ...any) error {
		return &CorruptRecordError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
	}

	labelID := c.labels[i]
	if int64(labelID) >= int64(len(d.info.Labels)) {
		return nil, corrupt("label index %d outside vocabulary of %d", labelID, len(d.info.Labels))
	}
	id, err := uuid.Parse(c.uuids[i])
	if err != nil {
		return nil, corrupt("invalid uuid %q", c.uuids[i])
	}

	n := int(c.lengths[i])
	times, sizes, rawDirs := c.times[i], c.sizes[i], c.dirs[i]
	rawCmds, rawRelCmds := c.cmds[i], c.relCmds[i]
	if len(times) != n || len(sizes) != n || len(rawDirs) != n || len(rawCmds) != n || len(rawRelCmds) != n {
		return nil, corrupt("declared length %d, found time=%d size=%d direction=%d cell_cmd=%d relay_cmd=%d",
			n, len(times), len(sizes), len(rawDirs), len(rawCmds), len(rawRelCmds))
	}
	dirs := make([]Direction, n)
	for j, v := range rawDirs {
		dir := Direction(v)
		if !dir.Valid() {
			return nil, corrupt("cell %d has direction %d", j, v)
		}
		dirs[j] = dir
	}
	cmds := make([]tor.CellCommand, n)
	relCmds := make([]tor.RelayCommand, n)
	for j := range n {
		cmd, err := tor.ParseCellCommand(uint64(rawCmds[j]))
		if err != nil {
			return nil, corrupt("cell %d has %v", j, err)
		}
		rel, err := tor.ParseRelayCommand(uint64(rawRelCmds[j]))
		if err != nil {
			return nil, corrupt("cell %d has %v", j, err)
		}
		cmds[j], relCmds[j] = cmd, rel
	}

	t := &Trace{
		Offset:        offset,
		ID:            c.ids[i],
		UUID:          id,
		Domain:        c.domains[i],
		Label:         d.info.Labels[labelID],
		LabelID:       labelID,
		Relay:         c.relays[i],
		Day:           c.days[i],
		Port:          c.ports[i],
		Length:        n,
		Times:         times,
		Sizes:         sizes,
		Directions:    dirs,
		CellCommands:  cmds,
		RelayCommands: relCmds,
	}

	if err := t.CheckMonotonic(); err != nil {
		d.metrics.nonMonotonic.Inc()
		if d.strict {
			return nil, &CorruptRecordError{Offset: offset, Reason: "timestamps decrease", Err: err}
		}
		d.logger.Debug("non-monotonic timestamps", "offset", offset, "error", err)
	}
	return t, nil
}

// finish records metrics for one decoded record and wraps it in a Result.
func (d *Dataset) finish(offset uint64, t *Trace, err error) Result {
	if err != nil {
		d.metrics.corrupt.Inc()
		d.logger.Debug("corrupt record", "offset", offset, "error", err)
		return Result{Offset: offset, Err: err}
	}
	d.metrics.decoded.Inc()
	return Result{Offset: offset, Trace: t}
}
