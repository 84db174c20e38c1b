package gtt23

import (
	"errors"
	"testing"

	"github.com/robert-malhotra/go-gtt23/tor"
)

func testTrace() *Trace {
	return &Trace{
		Offset:     4,
		Length:     4,
		Times:      []float64{0.5, 0.75, 1.25, 2},
		Sizes:      []uint16{514, 514, 498, 514},
		Directions: []Direction{ClientToServer, ServerToClient, ServerToClient, Padding},
		CellCommands: []tor.CellCommand{
			tor.CellCreate2, tor.CellCreated2, tor.CellRelay, tor.CellPadding,
		},
		RelayCommands: []tor.RelayCommand{
			tor.RelayNotPresent, tor.RelayNotPresent, tor.RelayData, tor.RelayNotPresent,
		},
	}
}

func TestTraceCells(t *testing.T) {
	tr := testTrace()

	if tr.Len() != 4 {
		t.Errorf("Len = %d, want 4", tr.Len())
	}
	if c := tr.Cell(2); c.Time != 1.25 || c.Size != 498 || c.Direction != ServerToClient ||
		c.CellCommand != tor.CellRelay || c.RelayCommand != tor.RelayData {
		t.Errorf("Cell(2) = %+v", c)
	}

	n := 0
	for i, c := range tr.Cells() {
		if i != n || c != tr.Cell(i) {
			t.Errorf("cell %d = %+v", i, c)
		}
		n++
	}
	if n != 4 {
		t.Errorf("Cells yielded %d cells, want 4", n)
	}
	for i := range tr.Cells() {
		if i == 1 {
			break
		}
	}
}

func TestTraceSummaries(t *testing.T) {
	tr := testTrace()

	if got := tr.Duration(); got != 1.5 {
		t.Errorf("Duration = %v, want 1.5", got)
	}
	if got := (&Trace{Times: []float64{3}}).Duration(); got != 0 {
		t.Errorf("single-cell Duration = %v, want 0", got)
	}

	tests := []struct {
		dir  Direction
		want uint64
	}{
		{ClientToServer, 514},
		{ServerToClient, 1012},
		{Padding, 514},
	}
	for _, tt := range tests {
		if got := tr.Bytes(tt.dir); got != tt.want {
			t.Errorf("Bytes(%s) = %d, want %d", tt.dir, got, tt.want)
		}
	}
}

func TestCheckMonotonic(t *testing.T) {
	tests := []struct {
		name  string
		times []float64
		index int
	}{
		{"empty", nil, 0},
		{"single", []float64{1}, 0},
		{"equal", []float64{1, 1, 1}, 0},
		{"increasing", []float64{0, 1, 2}, 0},
		{"decrease", []float64{0, 2, 1}, 2},
		{"first pair", []float64{3, 2, 4, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Trace{Offset: 8, Times: tt.times}).CheckMonotonic()
			if tt.index == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var nm *NonMonotonicError
			if !errors.As(err, &nm) || !errors.Is(err, ErrNonMonotonic) {
				t.Fatalf("got %v, want *NonMonotonicError", err)
			}
			if nm.Offset != 8 || nm.Index != tt.index || nm.Time != tt.times[tt.index] || nm.Prev != tt.times[tt.index-1] {
				t.Errorf("error = %+v", nm)
			}
		})
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		dir   Direction
		name  string
		valid bool
	}{
		{ClientToServer, "client-to-server", true},
		{ServerToClient, "server-to-client", true},
		{Padding, "padding", true},
		{Direction(2), "direction(2)", false},
		{Direction(-7), "direction(-7)", false},
	}
	for _, tt := range tests {
		if tt.dir.String() != tt.name || tt.dir.Valid() != tt.valid {
			t.Errorf("%d: String = %q, Valid = %v", int8(tt.dir), tt.dir.String(), tt.dir.Valid())
		}
	}
}
