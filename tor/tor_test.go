package tor

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseCellCommand(t *testing.T) {
	tests := []struct {
		code    uint64
		want    CellCommand
		name    string
		wantErr bool
	}{
		{0, CellPadding, "PADDING", false},
		{3, CellRelay, "RELAY", false},
		{9, CellRelayEarly, "RELAY_EARLY", false},
		{12, CellPaddingNegotiate, "PADDING_NEGOTIATE", false},
		{128, CellVPadding, "VPADDING", false},
		{132, CellAuthorize, "AUTHORIZE", false},
		{13, 0, "", true},
		{127, 0, "", true},
		{133, 0, "", true},
		{256 + 3, 0, "", true},
	}

	for _, tt := range tests {
		got, err := ParseCellCommand(tt.code)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownCommand) {
				t.Errorf("ParseCellCommand(%d) error = %v, want ErrUnknownCommand", tt.code, err)
			}
			continue
		}
		if err != nil || got != tt.want || got.String() != tt.name {
			t.Errorf("ParseCellCommand(%d) = %v (%v), want %s", tt.code, got, err, tt.name)
		}
	}
}

func TestParseRelayCommand(t *testing.T) {
	tests := []struct {
		code    uint64
		want    RelayCommand
		name    string
		wantErr bool
	}{
		{0, RelayNotPresent, "NOT_PRESENT", false},
		{2, RelayData, "DATA", false},
		{13, RelayBeginDir, "BEGIN_DIR", false},
		{16, RelaySignal, "SIGNAL", false},
		{32, RelayEstablishIntro, "ESTABLISH_INTRO", false},
		{44, RelayXon, "XON", false},
		{17, 0, "", true},
		{31, 0, "", true},
		{45, 0, "", true},
		{256, 0, "", true},
	}

	for _, tt := range tests {
		got, err := ParseRelayCommand(tt.code)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownCommand) {
				t.Errorf("ParseRelayCommand(%d) error = %v, want ErrUnknownCommand", tt.code, err)
			}
			continue
		}
		if err != nil || got != tt.want || got.String() != tt.name {
			t.Errorf("ParseRelayCommand(%d) = %v (%v), want %s", tt.code, got, err, tt.name)
		}
	}
}

func TestCommandText(t *testing.T) {
	if s := CellCommand(200).String(); s != "cell_cmd(200)" {
		t.Errorf("unknown cell command String = %q", s)
	}
	if s := RelayCommand(99).String(); s != "relay_cmd(99)" {
		t.Errorf("unknown relay command String = %q", s)
	}
	if !CellRelay.IsRelay() || !CellRelayEarly.IsRelay() || CellCreate2.IsRelay() {
		t.Error("IsRelay misclassifies commands")
	}

	// Named slices encode as arrays of names, not as base64 bytes.
	out, err := json.Marshal(struct {
		Cells  []CellCommand
		Relays []RelayCommand
	}{[]CellCommand{CellCreate2, CellRelay}, []RelayCommand{RelayNotPresent, RelayData}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if want := `{"Cells":["CREATE2","RELAY"],"Relays":["NOT_PRESENT","DATA"]}`; string(out) != want {
		t.Errorf("Marshal = %s, want %s", out, want)
	}
}

func TestCommandLists(t *testing.T) {
	cells := CellCommands()
	if len(cells) != 18 || cells[0] != CellPadding || cells[len(cells)-1] != CellAuthorize {
		t.Errorf("CellCommands = %v", cells)
	}
	relays := RelayCommands()
	if len(relays) != 30 || relays[0] != RelayNotPresent || relays[len(relays)-1] != RelayXon {
		t.Errorf("RelayCommands = %v", relays)
	}
	for i := 1; i < len(relays); i++ {
		if relays[i] <= relays[i-1] {
			t.Fatalf("RelayCommands not in code order at %d: %v", i, relays)
		}
	}
}
