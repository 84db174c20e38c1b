package builder

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/robert-malhotra/go-gtt23/tor"
)

// gwfPrefix starts every event line written by the Tor controller.
const gwfPrefix = "650 GWF "

// DefaultCellSize is the size of a Tor cell, used when a logged cell does
// not carry its size.
const DefaultCellSize = 514

// maxLineSize bounds one JSONL line; a full circuit log is a few hundred KiB.
const maxLineSize = 64 << 20

// gwfCircuit is one measured circuit as logged by the exit relay.
type gwfCircuit struct {
	ID                    *uint64             `json:"id"`
	Day                   uint8               `json:"day"`
	Domain                string              `json:"domain"`
	ShortestPrivateSuffix *string             `json:"shortest_private_suffix"`
	Port                  uint16              `json:"port"`
	Relay                 uint32              `json:"relay"`
	Cells                 [][]json.RawMessage `json:"cells"`
}

// ParseGWF decodes one circuit line. The website label is the shortest
// private suffix of the domain, or the domain itself when the suffix is
// null. Each call assigns a fresh random UUID.
//
// A cell is [time, net_op, cell_cmd, relay_cmd] with an optional fifth
// element giving its size in bytes. Cells without one are DefaultCellSize.
// Unknown command codes are an error wrapping tor.ErrUnknownCommand.
func ParseGWF(line []byte) (Record, error) {
	r, _, err := parseGWF(line)
	return r, err
}

// parseGWF is ParseGWF that also reports whether the line carried an id.
func parseGWF(line []byte) (Record, bool, error) {
	line = bytes.TrimSpace(line)
	line = bytes.TrimPrefix(line, []byte(gwfPrefix))

	var c gwfCircuit
	if err := json.Unmarshal(line, &c); err != nil {
		return Record{}, false, fmt.Errorf("decoding circuit: %w", err)
	}
	if c.Domain == "" {
		return Record{}, false, fmt.Errorf("circuit has no domain")
	}
	if len(c.Domain) > MaxDomainLen {
		return Record{}, false, fmt.Errorf("domain %q longer than %d bytes", c.Domain, MaxDomainLen)
	}
	if c.Cells == nil {
		return Record{}, false, fmt.Errorf("circuit has no cells")
	}

	n := len(c.Cells)
	r := Record{
		UUID:          uuid.New(),
		Domain:        c.Domain,
		Label:         c.Domain,
		Relay:         c.Relay,
		Day:           c.Day,
		Port:          c.Port,
		Times:         make([]float64, n),
		Sizes:         make([]uint16, n),
		Directions:    make([]int8, n),
		CellCommands:  make([]tor.CellCommand, n),
		RelayCommands: make([]tor.RelayCommand, n),
	}
	if c.ID != nil {
		r.ID = *c.ID
	}
	if c.ShortestPrivateSuffix != nil && *c.ShortestPrivateSuffix != "" {
		r.Label = *c.ShortestPrivateSuffix
	}

	for i, cell := range c.Cells {
		if len(cell) != 4 && len(cell) != 5 {
			return Record{}, false, fmt.Errorf("cell %d: expected 4 or 5 elements, got %d", i, len(cell))
		}
		if err := json.Unmarshal(cell[0], &r.Times[i]); err != nil {
			return Record{}, false, fmt.Errorf("cell %d: time: %w", i, err)
		}
		var netOp int
		if err := json.Unmarshal(cell[1], &netOp); err != nil {
			return Record{}, false, fmt.Errorf("cell %d: net_op: %w", i, err)
		}
		switch netOp {
		case 0: // relay received the cell from the client
			r.Directions[i] = 1
		case 1: // relay sent the cell toward the client
			r.Directions[i] = -1
		default:
			return Record{}, false, fmt.Errorf("cell %d: unexpected net_op %d", i, netOp)
		}
		var cmd, relCmd uint64
		if err := json.Unmarshal(cell[2], &cmd); err != nil {
			return Record{}, false, fmt.Errorf("cell %d: cell_cmd: %w", i, err)
		}
		if err := json.Unmarshal(cell[3], &relCmd); err != nil {
			return Record{}, false, fmt.Errorf("cell %d: relay_cmd: %w", i, err)
		}
		var err error
		if r.CellCommands[i], err = tor.ParseCellCommand(cmd); err != nil {
			return Record{}, false, fmt.Errorf("cell %d: %w", i, err)
		}
		if r.RelayCommands[i], err = tor.ParseRelayCommand(relCmd); err != nil {
			return Record{}, false, fmt.Errorf("cell %d: %w", i, err)
		}
		r.Sizes[i] = DefaultCellSize
		if len(cell) == 5 {
			if err := json.Unmarshal(cell[4], &r.Sizes[i]); err != nil {
				return Record{}, false, fmt.Errorf("cell %d: size: %w", i, err)
			}
		}
	}
	return r, c.ID != nil, nil
}

// ReadJSONL adds every circuit line of r to the builder and returns the
// number added. Records without an explicit id are numbered by offset.
func (b *Builder) ReadJSONL(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	n := 0
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		rec, hasID, err := parseGWF(sc.Bytes())
		if err != nil {
			return n, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if !hasID {
			rec.ID = uint64(b.Len())
		}
		b.Add(rec)
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("line %d: %w", lineNo+1, err)
	}
	return n, nil
}

// OpenInput opens a JSONL input file, decompressing .zst and .gz files.
func OpenInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening zstd stream %s: %w", path, err)
		}
		return &decompressor{Reader: dec, close: func() error {
			dec.Close()
			return f.Close()
		}}, nil
	case ".gz":
		dec, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		return &decompressor{Reader: dec, close: func() error {
			dec.Close()
			return f.Close()
		}}, nil
	default:
		return f, nil
	}
}

type decompressor struct {
	io.Reader
	close func() error
}

func (d *decompressor) Close() error {
	return d.close()
}
