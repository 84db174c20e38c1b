package builder

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/robert-malhotra/go-gtt23/tor"
)

var syntheticSites = []string{
	"wikipedia.org", "example.com", "torproject.org", "duckduckgo.com",
	"github.com", "nytimes.com", "bbc.co.uk", "archive.org",
}

var syntheticPorts = []uint16{80, 443, 443, 443, 8080}

// Synthetic returns a Builder holding n random records. The same seed
// always produces the same records, UUIDs included.
func Synthetic(n int, seed uint64) *Builder {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	b := New()
	b.SetNote("synthetic dataset")

	for i := range n {
		var id uuid.UUID
		for j := range id {
			id[j] = byte(rng.UintN(256))
		}
		id[6] = id[6]&0x0f | 0x40 // version 4
		id[8] = id[8]&0x3f | 0x80 // RFC 4122 variant

		cells := 1 + rng.IntN(200)
		r := Record{
			ID:            uint64(i),
			UUID:          id,
			Label:         syntheticSites[rng.IntN(len(syntheticSites))],
			Relay:         uint32(1 + rng.IntN(16)),
			Day:           uint8(rng.IntN(13)),
			Port:          syntheticPorts[rng.IntN(len(syntheticPorts))],
			Times:         make([]float64, cells),
			Sizes:         make([]uint16, cells),
			Directions:    make([]int8, cells),
			CellCommands:  make([]tor.CellCommand, cells),
			RelayCommands: make([]tor.RelayCommand, cells),
		}
		var t float64
		for c := range cells {
			t += rng.ExpFloat64() * 0.05
			r.Times[c] = t
			r.Sizes[c] = DefaultCellSize
			r.Directions[c] = 1
			if c > 0 && rng.IntN(3) > 0 {
				r.Directions[c] = -1
			}
			r.CellCommands[c], r.RelayCommands[c] = syntheticCommand(c, r.Directions[c])
		}
		b.Add(r)
	}
	return b
}

// syntheticCommand opens a circuit with CREATE2 and BEGIN, then carries
// DATA with the odd client SENDME.
func syntheticCommand(c int, dir int8) (tor.CellCommand, tor.RelayCommand) {
	switch {
	case c == 0:
		return tor.CellCreate2, tor.RelayNotPresent
	case c == 1 && dir > 0:
		return tor.CellRelayEarly, tor.RelayBegin
	case dir > 0 && c%50 == 0:
		return tor.CellRelay, tor.RelaySendme
	default:
		return tor.CellRelay, tor.RelayData
	}
}
