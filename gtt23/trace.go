package gtt23

import (
	"iter"
	"strconv"

	"github.com/google/uuid"

	"github.com/robert-malhotra/go-gtt23/tor"
)

// Direction is the travel direction of a cell.
type Direction int8

const (
	ServerToClient Direction = -1
	Padding        Direction = 0
	ClientToServer Direction = 1
)

func (d Direction) String() string {
	switch d {
	case ClientToServer:
		return "client-to-server"
	case ServerToClient:
		return "server-to-client"
	case Padding:
		return "padding"
	default:
		return "direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// Valid reports whether d is one of the three defined directions.
func (d Direction) Valid() bool {
	return d >= ServerToClient && d <= ClientToServer
}

// Cell is one element of a trace.
type Cell struct {
	Time         float64          `json:"time" yaml:"time"`
	Size         uint16           `json:"size" yaml:"size"`
	Direction    Direction        `json:"direction" yaml:"direction"`
	CellCommand  tor.CellCommand  `json:"cell_cmd" yaml:"cell_cmd"`
	RelayCommand tor.RelayCommand `json:"relay_cmd" yaml:"relay_cmd"`
}

// Trace is one decoded trace record. Length always equals the length of
// every per-cell slice.
type Trace struct {
	Offset        uint64             `json:"offset" yaml:"offset"`
	ID            uint64             `json:"id" yaml:"id"`
	UUID          uuid.UUID          `json:"uuid" yaml:"uuid"`
	Domain        string             `json:"domain" yaml:"domain"`
	Label         string             `json:"label" yaml:"label"`
	LabelID       uint32             `json:"label_id" yaml:"label_id"`
	Relay         uint32             `json:"relay" yaml:"relay"`
	Day           uint8              `json:"day" yaml:"day"`
	Port          uint16             `json:"port" yaml:"port"`
	Length        int                `json:"length" yaml:"length"`
	Times         []float64          `json:"times" yaml:"times,flow"`
	Sizes         []uint16           `json:"sizes" yaml:"sizes,flow"`
	Directions    []Direction        `json:"directions" yaml:"directions,flow"`
	CellCommands  []tor.CellCommand  `json:"cell_cmds" yaml:"cell_cmds,flow"`
	RelayCommands []tor.RelayCommand `json:"relay_cmds" yaml:"relay_cmds,flow"`
}

// Len returns the number of cells.
func (t *Trace) Len() int {
	return t.Length
}

// Cell returns the i-th cell. It panics if i is out of range.
func (t *Trace) Cell(i int) Cell {
	return Cell{
		Time:         t.Times[i],
		Size:         t.Sizes[i],
		Direction:    t.Directions[i],
		CellCommand:  t.CellCommands[i],
		RelayCommand: t.RelayCommands[i],
	}
}

// Cells iterates over the cells in order.
func (t *Trace) Cells() iter.Seq2[int, Cell] {
	return func(yield func(int, Cell) bool) {
		for i := range t.Length {
			if !yield(i, t.Cell(i)) {
				return
			}
		}
	}
}

// Duration returns the time between the first and the last cell.
func (t *Trace) Duration() float64 {
	if len(t.Times) < 2 {
		return 0
	}
	return t.Times[len(t.Times)-1] - t.Times[0]
}

// CheckMonotonic returns a *NonMonotonicError for the first timestamp that
// is smaller than its predecessor.
func (t *Trace) CheckMonotonic() error {
	if i := firstDecrease(t.Times); i > 0 {
		return &NonMonotonicError{Offset: t.Offset, Index: i, Prev: t.Times[i-1], Time: t.Times[i]}
	}
	return nil
}

// Bytes sums the sizes of the cells travelling in direction dir.
func (t *Trace) Bytes(dir Direction) uint64 {
	var n uint64
	for i, d := range t.Directions {
		if d == dir {
			n += uint64(t.Sizes[i])
		}
	}
	return n
}

// firstDecrease returns the index of the first element smaller than its
// predecessor, or -1.
func firstDecrease(times []float64) int {
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			return i
		}
	}
	return -1
}
