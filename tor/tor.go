// Package tor names the protocol commands recorded for each cell of a
// trace: the link-level cell command and, for relay cells, the relay
// command inside.
package tor

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownCommand is returned for command codes outside the protocol.
var ErrUnknownCommand = errors.New("unknown command")

// CellCommand is the command byte of a link-level cell.
type CellCommand uint8

const (
	CellPadding          CellCommand = 0
	CellCreate           CellCommand = 1
	CellCreated          CellCommand = 2
	CellRelay            CellCommand = 3
	CellDestroy          CellCommand = 4
	CellCreateFast       CellCommand = 5
	CellCreatedFast      CellCommand = 6
	CellVersions         CellCommand = 7
	CellNetinfo          CellCommand = 8
	CellRelayEarly       CellCommand = 9
	CellCreate2          CellCommand = 10
	CellCreated2         CellCommand = 11
	CellPaddingNegotiate CellCommand = 12
	CellVPadding         CellCommand = 128
	CellCerts            CellCommand = 129
	CellAuthChallenge    CellCommand = 130
	CellAuthenticate     CellCommand = 131
	CellAuthorize        CellCommand = 132
)

var cellNames = map[CellCommand]string{
	CellPadding:          "PADDING",
	CellCreate:           "CREATE",
	CellCreated:          "CREATED",
	CellRelay:            "RELAY",
	CellDestroy:          "DESTROY",
	CellCreateFast:       "CREATE_FAST",
	CellCreatedFast:      "CREATED_FAST",
	CellVersions:         "VERSIONS",
	CellNetinfo:          "NETINFO",
	CellRelayEarly:       "RELAY_EARLY",
	CellCreate2:          "CREATE2",
	CellCreated2:         "CREATED2",
	CellPaddingNegotiate: "PADDING_NEGOTIATE",
	CellVPadding:         "VPADDING",
	CellCerts:            "CERTS",
	CellAuthChallenge:    "AUTH_CHALLENGE",
	CellAuthenticate:     "AUTHENTICATE",
	CellAuthorize:        "AUTHORIZE",
}

// CellCommands returns the defined cell commands in code order.
func CellCommands() []CellCommand {
	cmds := make([]CellCommand, 0, len(cellNames))
	for c := range cellNames {
		cmds = append(cmds, c)
	}
	slices.Sort(cmds)
	return cmds
}

// ParseCellCommand checks a logged cell command code.
func ParseCellCommand(code uint64) (CellCommand, error) {
	if c := CellCommand(code); uint64(c) == code && c.Valid() {
		return c, nil
	}
	return 0, fmt.Errorf("cell command %d: %w", code, ErrUnknownCommand)
}

// Valid reports whether c is a defined cell command.
func (c CellCommand) Valid() bool {
	_, ok := cellNames[c]
	return ok
}

// IsRelay reports whether the cell carries a relay command.
func (c CellCommand) IsRelay() bool {
	return c == CellRelay || c == CellRelayEarly
}

func (c CellCommand) String() string {
	if name, ok := cellNames[c]; ok {
		return name
	}
	return fmt.Sprintf("cell_cmd(%d)", uint8(c))
}

// MarshalText encodes c by name.
func (c CellCommand) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// RelayCommand is the command of a relay cell. Cells that are not relay
// cells record RelayNotPresent.
type RelayCommand uint8

const (
	RelayNotPresent            RelayCommand = 0
	RelayBegin                 RelayCommand = 1
	RelayData                  RelayCommand = 2
	RelayEnd                   RelayCommand = 3
	RelayConnected             RelayCommand = 4
	RelaySendme                RelayCommand = 5
	RelayExtend                RelayCommand = 6
	RelayExtended              RelayCommand = 7
	RelayTruncate              RelayCommand = 8
	RelayTruncated             RelayCommand = 9
	RelayDrop                  RelayCommand = 10
	RelayResolve               RelayCommand = 11
	RelayResolved              RelayCommand = 12
	RelayBeginDir              RelayCommand = 13
	RelayExtend2               RelayCommand = 14
	RelayExtended2             RelayCommand = 15
	RelaySignal                RelayCommand = 16
	RelayEstablishIntro        RelayCommand = 32
	RelayEstablishRendezvous   RelayCommand = 33
	RelayIntroduce1            RelayCommand = 34
	RelayIntroduce2            RelayCommand = 35
	RelayRendezvous1           RelayCommand = 36
	RelayRendezvous2           RelayCommand = 37
	RelayIntroEstablished      RelayCommand = 38
	RelayRendezvousEstablished RelayCommand = 39
	RelayIntroduceAck          RelayCommand = 40
	RelayPaddingNegotiate      RelayCommand = 41
	RelayPaddingNegotiated     RelayCommand = 42
	RelayXoff                  RelayCommand = 43
	RelayXon                   RelayCommand = 44
)

var relayNames = map[RelayCommand]string{
	RelayNotPresent:            "NOT_PRESENT",
	RelayBegin:                 "BEGIN",
	RelayData:                  "DATA",
	RelayEnd:                   "END",
	RelayConnected:             "CONNECTED",
	RelaySendme:                "SENDME",
	RelayExtend:                "EXTEND",
	RelayExtended:              "EXTENDED",
	RelayTruncate:              "TRUNCATE",
	RelayTruncated:             "TRUNCATED",
	RelayDrop:                  "DROP",
	RelayResolve:               "RESOLVE",
	RelayResolved:              "RESOLVED",
	RelayBeginDir:              "BEGIN_DIR",
	RelayExtend2:               "EXTEND2",
	RelayExtended2:             "EXTENDED2",
	RelaySignal:                "SIGNAL",
	RelayEstablishIntro:        "ESTABLISH_INTRO",
	RelayEstablishRendezvous:   "ESTABLISH_RENDEZVOUS",
	RelayIntroduce1:            "INTRODUCE1",
	RelayIntroduce2:            "INTRODUCE2",
	RelayRendezvous1:           "RENDEZVOUS1",
	RelayRendezvous2:           "RENDEZVOUS2",
	RelayIntroEstablished:      "INTRO_ESTABLISHED",
	RelayRendezvousEstablished: "RENDEZVOUS_ESTABLISHED",
	RelayIntroduceAck:          "INTRODUCE_ACK",
	RelayPaddingNegotiate:      "PADDING_NEGOTIATE",
	RelayPaddingNegotiated:     "PADDING_NEGOTIATED",
	RelayXoff:                  "XOFF",
	RelayXon:                   "XON",
}

// RelayCommands returns the defined relay commands in code order.
func RelayCommands() []RelayCommand {
	cmds := make([]RelayCommand, 0, len(relayNames))
	for c := range relayNames {
		cmds = append(cmds, c)
	}
	slices.Sort(cmds)
	return cmds
}

// ParseRelayCommand checks a logged relay command code.
func ParseRelayCommand(code uint64) (RelayCommand, error) {
	if c := RelayCommand(code); uint64(c) == code && c.Valid() {
		return c, nil
	}
	return 0, fmt.Errorf("relay command %d: %w", code, ErrUnknownCommand)
}

// Valid reports whether c is a defined relay command.
func (c RelayCommand) Valid() bool {
	_, ok := relayNames[c]
	return ok
}

func (c RelayCommand) String() string {
	if name, ok := relayNames[c]; ok {
		return name
	}
	return fmt.Sprintf("relay_cmd(%d)", uint8(c))
}

// MarshalText encodes c by name.
func (c RelayCommand) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
