package builder

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/robert-malhotra/go-gtt23/internal/container"
	"github.com/robert-malhotra/go-gtt23/tor"
)

const gwfLines = `650 GWF {"day": 3, "domain": "www.example.com", "shortest_private_suffix": "example.com", "port": 443, "relay": 7, "cells": [[0.5, 0, 10, 0], [0.75, 1, 3, 2, 498], [1.0, 1, 9, 13]]}
{"day": 4, "domain": "localhost", "shortest_private_suffix": null, "port": 80, "cells": []}

650 GWF {"id": 99, "day": 4, "domain": "a.example.com", "shortest_private_suffix": "example.com", "port": 8080, "cells": [[2.0, 0, 1, 0]]}
`

func TestParseGWF(t *testing.T) {
	r, err := ParseGWF([]byte(strings.Split(gwfLines, "\n")[0]))
	if err != nil {
		t.Fatalf("ParseGWF failed: %v", err)
	}
	if r.Label != "example.com" || r.Domain != "www.example.com" || r.Day != 3 || r.Port != 443 || r.Relay != 7 {
		t.Errorf("record = %+v", r)
	}
	if want := []tor.CellCommand{tor.CellCreate2, tor.CellRelay, tor.CellRelayEarly}; !reflect.DeepEqual(r.CellCommands, want) {
		t.Errorf("cell commands = %v, want %v", r.CellCommands, want)
	}
	if want := []tor.RelayCommand{tor.RelayNotPresent, tor.RelayData, tor.RelayBeginDir}; !reflect.DeepEqual(r.RelayCommands, want) {
		t.Errorf("relay commands = %v, want %v", r.RelayCommands, want)
	}
	if want := []float64{0.5, 0.75, 1.0}; !reflect.DeepEqual(r.Times, want) {
		t.Errorf("times = %v, want %v", r.Times, want)
	}
	if want := []int8{1, -1, -1}; !reflect.DeepEqual(r.Directions, want) {
		t.Errorf("directions = %v, want %v", r.Directions, want)
	}
	if want := []uint16{DefaultCellSize, 498, DefaultCellSize}; !reflect.DeepEqual(r.Sizes, want) {
		t.Errorf("sizes = %v, want %v", r.Sizes, want)
	}
	if r.UUID.Version() != 4 {
		t.Errorf("uuid version = %d, want 4", r.UUID.Version())
	}
}

func TestParseGWFErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"not json", "650 GWF {"},
		{"no domain", `{"day": 1, "port": 1, "cells": []}`},
		{"no cells", `{"day": 1, "domain": "x.org", "port": 1}`},
		{"short cell", `{"domain": "x.org", "cells": [[1.0, 0]]}`},
		{"bad net_op", `{"domain": "x.org", "cells": [[1.0, 2, 0, 0]]}`},
		{"bad time", `{"domain": "x.org", "cells": [["soon", 0, 0, 0]]}`},
		{"day overflow", `{"domain": "x.org", "day": 300, "cells": []}`},
		{"bad cell_cmd", `{"domain": "x.org", "cells": [[1.0, 0, "relay", 0]]}`},
		{"long domain", `{"domain": "` + strings.Repeat("a", MaxDomainLen-3) + `.org", "cells": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseGWF([]byte(tt.line)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseGWFUnknownCommand(t *testing.T) {
	lines := []string{
		`{"domain": "x.org", "cells": [[1.0, 0, 3, 2], [1.5, 0, 13, 0]]}`,
		`{"domain": "x.org", "cells": [[1.0, 0, 200, 0]]}`,
		`{"domain": "x.org", "cells": [[1.0, 1, 3, 17]]}`,
		`{"domain": "x.org", "cells": [[1.0, 1, 3, 300]]}`,
	}
	for _, line := range lines {
		if _, err := ParseGWF([]byte(line)); !errors.Is(err, tor.ErrUnknownCommand) {
			t.Errorf("ParseGWF(%s): got %v, want ErrUnknownCommand", line, err)
		}
	}
}

func TestWriteRejectsRecords(t *testing.T) {
	cell := func(r Record) Record {
		r.Label = "x.org"
		r.Times, r.Sizes, r.Directions = []float64{0}, []uint16{514}, []int8{1}
		return r
	}
	tests := []struct {
		name   string
		record Record
		target error
	}{
		{"cell command", cell(Record{CellCommands: []tor.CellCommand{13}}), tor.ErrUnknownCommand},
		{"relay command", cell(Record{RelayCommands: []tor.RelayCommand{45}}), tor.ErrUnknownCommand},
		{"domain", cell(Record{Domain: strings.Repeat("d", MaxDomainLen+1)}), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			b.Add(cell(Record{}))
			b.Add(tt.record)
			path := filepath.Join(t.TempDir(), "out.h5")

			err := b.Write(path)
			if err == nil || !strings.Contains(err.Error(), "record 1") {
				t.Fatalf("Write: got %v, want error for record 1", err)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("Write: got %v, want %v", err, tt.target)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Errorf("output exists after failed write: %v", err)
			}
		})
	}
}

func TestReadJSONL(t *testing.T) {
	b := New()
	n, err := b.ReadJSONL(strings.NewReader(gwfLines))
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}
	if n != 3 || b.Len() != 3 {
		t.Fatalf("read %d records (len %d), want 3", n, b.Len())
	}
	if want := []string{"example.com", "localhost"}; !reflect.DeepEqual(b.Labels(), want) {
		t.Errorf("labels = %v, want %v", b.Labels(), want)
	}
	if ids := []uint64{b.records[0].ID, b.records[1].ID, b.records[2].ID}; !reflect.DeepEqual(ids, []uint64{0, 1, 99}) {
		t.Errorf("ids = %v, want [0 1 99]", ids)
	}

	_, err = New().ReadJSONL(strings.NewReader("{\"domain\": \"a\", \"cells\": []}\nnonsense\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("got %v, want error on line 2", err)
	}
}

func TestAddLabels(t *testing.T) {
	b := New()
	b.AddLabels("z.org", "a.org")
	b.Add(Record{Label: "m.org"})
	b.Add(Record{Label: "a.org"})
	b.AddLabels("m.org", "b.org")

	if want := []string{"z.org", "a.org", "m.org", "b.org"}; !reflect.DeepEqual(b.Labels(), want) {
		t.Errorf("labels = %v, want %v", b.Labels(), want)
	}
	if b.labelID["a.org"] != 1 || b.Len() != 2 {
		t.Errorf("label id = %d, len = %d", b.labelID["a.org"], b.Len())
	}
}

func TestOpenInput(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "circuits.jsonl")
	if err := os.WriteFile(plain, []byte(gwfLines), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write([]byte(gwfLines)); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	compressed := filepath.Join(dir, "circuits.jsonl.zst")
	if err := os.WriteFile(compressed, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{plain, compressed} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			in, err := OpenInput(path)
			if err != nil {
				t.Fatalf("OpenInput failed: %v", err)
			}
			defer in.Close()

			n, err := New().ReadJSONL(in)
			if err != nil {
				t.Fatalf("ReadJSONL failed: %v", err)
			}
			if n != 3 {
				t.Errorf("read %d records, want 3", n)
			}
		})
	}

	if _, err := OpenInput(filepath.Join(dir, "missing.jsonl")); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestWrite(t *testing.T) {
	codecs := []Codec{CodecNone, CodecDeflate, CodecZstd}
	for _, codec := range codecs {
		t.Run(string(codec), func(t *testing.T) {
			b := Synthetic(40, 1)
			b.SetLength(5, 1000)
			path := filepath.Join(t.TempDir(), "out.h5")
			if err := b.Write(path, WithCompression(codec, 0), WithChunk(16)); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Errorf("temporary file left behind: %v", err)
			}

			s, err := container.Open(path)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer s.Close()

			a, err := s.Attribute("/@record_count")
			if err != nil {
				t.Fatal(err)
			}
			if v, _ := a.Int(); v != 40 {
				t.Errorf("record_count = %v, want 40", a.Value)
			}
			a, err = s.Attribute("/@note")
			if err != nil {
				t.Fatal(err)
			}
			if v, _ := a.Text(); v != "synthetic dataset" {
				t.Errorf("note = %v", a.Value)
			}

			info, err := s.Describe("/traces/uuid")
			if err != nil {
				t.Fatal(err)
			}
			if info.Type.String() != "string[32]" {
				t.Errorf("uuid type = %s, want string[32]", info.Type)
			}

			var lengths []uint32
			if err := s.ReadArray("/traces/length", container.Range{Start: 4, End: 7}, &lengths); err != nil {
				t.Fatal(err)
			}
			if lengths[1] != 1000 {
				t.Errorf("overridden length = %d, want 1000", lengths[1])
			}
			if lengths[0] != uint32(len(b.records[4].Times)) {
				t.Errorf("length[4] = %d, want %d", lengths[0], len(b.records[4].Times))
			}

			var times [][]float64
			if err := s.ReadArray("/cells/time", container.Range{Start: 30, End: 40}, &times); err != nil {
				t.Fatal(err)
			}
			for i, got := range times {
				if !reflect.DeepEqual(got, b.records[30+i].Times) {
					t.Errorf("times[%d] differ", 30+i)
				}
			}

			var uuids []string
			if err := s.ReadArray("/traces/uuid", container.Range{End: 1}, &uuids); err != nil {
				t.Fatal(err)
			}
			if want := strings.ReplaceAll(b.records[0].UUID.String(), "-", ""); uuids[0] != want {
				t.Errorf("uuid = %q, want %q", uuids[0], want)
			}

			var domains []string
			if err := s.ReadArray("/traces/domain", container.Range{End: 2}, &domains); err != nil {
				t.Fatal(err)
			}
			if domains[1] != b.records[1].Label {
				t.Errorf("domain = %q, want label %q", domains[1], b.records[1].Label)
			}

			var cmds, relCmds [][]uint8
			if err := s.ReadArray("/cells/cell_cmd", container.Range{Start: 2, End: 3}, &cmds); err != nil {
				t.Fatal(err)
			}
			if err := s.ReadArray("/cells/relay_cmd", container.Range{Start: 2, End: 3}, &relCmds); err != nil {
				t.Fatal(err)
			}
			for j, c := range b.records[2].CellCommands {
				if cmds[0][j] != uint8(c) || relCmds[0][j] != uint8(b.records[2].RelayCommands[j]) {
					t.Fatalf("cell %d commands = %d/%d, want %s/%s", j, cmds[0][j], relCmds[0][j], c, b.records[2].RelayCommands[j])
				}
			}
		})
	}
}

func TestWriteEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.h5")
	if err := New().Write(path, WithCompression(CodecZstd, 0)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	s, err := container.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	for _, p := range []string{"/labels", "/traces/id", "/cells/time"} {
		info, err := s.Describe(p)
		if err != nil {
			t.Fatalf("Describe(%s) failed: %v", p, err)
		}
		if info.Len() != 0 {
			t.Errorf("%s has %d elements, want 0", p, info.Len())
		}
	}
}

func TestSyntheticDeterministic(t *testing.T) {
	a, b := Synthetic(10, 42), Synthetic(10, 42)
	if !reflect.DeepEqual(a.records, b.records) {
		t.Error("same seed produced different records")
	}
	c := Synthetic(10, 43)
	if reflect.DeepEqual(a.records, c.records) {
		t.Error("different seeds produced identical records")
	}
	for i, r := range a.records {
		if len(r.Times) != len(r.Sizes) || len(r.Times) != len(r.Directions) ||
			len(r.Times) != len(r.CellCommands) || len(r.Times) != len(r.RelayCommands) {
			t.Errorf("record %d has unequal sequences", i)
		}
		if err := r.check(); err != nil {
			t.Errorf("record %d: %v", i, err)
		}
		for j := 1; j < len(r.Times); j++ {
			if r.Times[j] < r.Times[j-1] {
				t.Errorf("record %d: timestamps decrease at %d", i, j)
			}
		}
	}
}

func TestParseCodec(t *testing.T) {
	tests := []struct {
		in      string
		want    Codec
		wantErr bool
	}{
		{"", CodecNone, false},
		{"none", CodecNone, false},
		{"ZSTD", CodecZstd, false},
		{"deflate", CodecDeflate, false},
		{"lz4", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCodec(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseCodec(%q) = %q, %v", tt.in, got, err)
		}
	}
}
