// Package bridge turns the byte stream of an SPI transport into Wishbone bus
// cycles.
//
// A frame is one chip-select period. The opcode is the first byte, followed
// by a 16-bit word address, low byte first:
//
//	read:  0x03 a0 a1 xx r0 r1 r2 r3
//	write: 0x02 a0 a1 d0 d1 d2 d3
//
// Read data is shifted out low byte first in the four bytes after the dummy
// byte. Any other opcode is ignored until the frame ends. Each frame issues
// at most one bus cycle.
package bridge

import (
	"fmt"

	"github.com/gentam/icebridge/internal/xlog"
	"github.com/gentam/icebridge/transport"
	"github.com/gentam/icebridge/wishbone"
	"golang.org/x/exp/slog"
)

// Opcodes.
const (
	OpWrite = 0x02
	OpRead  = 0x03
)

// Byte counts at which frame fields become available.
const (
	opcodeBytes  = 1
	addressBytes = 3
	writeBytes   = 7
)

// State of the protocol machine.
type State uint8

const (
	Idle State = iota
	Command
	Read
	Write
)

var stateNames = [...]string{"Idle", "Command", "Read", "Write"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Stats counts how frames ended.
type Stats struct {
	Reads   int // read cycles acknowledged
	Writes  int // write cycles acknowledged
	Aborted int // frames that ended before a bus cycle started
	Unknown int // frames with an opcode that is neither read nor write
}

// Bridge is the protocol state machine and its frame datapath. It is the
// only writer of the master side of bus and the Source of the transport
// feeding it.
type Bridge struct {
	bus *wishbone.Interface
	log *slog.Logger

	state State

	// datapath, updated on every event regardless of state
	counter int
	mosi    uint32 // most recent byte in bits 31..24
	miso    uint32 // outgoing bytes, next one in bits 7..0

	cmd       byte
	address   uint16
	addressHi uint16 // upper word address bits, never set from a frame
	data      uint32

	stats Stats
}

// New returns an idle bridge mastering bus.
func New(bus *wishbone.Interface, log *slog.Logger) *Bridge {
	b := &Bridge{
		bus: bus,
		log: xlog.Or(log).With("component", "bridge"),
	}
	b.drive()
	return b
}

// NextByte implements transport.Source.
func (b *Bridge) NextByte() byte { return byte(b.miso) }

// State returns the current protocol state.
func (b *Bridge) State() State { return b.state }

// Stats returns the frame counters collected so far.
func (b *Bridge) Stats() Stats { return b.stats }

// Tick advances the bridge by one cycle with the transport event of that
// cycle. It must run after the transport and before the interconnect.
func (b *Bridge) Tick(ev transport.Event) {
	ack, err, datR := b.bus.Ack, b.bus.Err, b.bus.DatR

	switch ev.Kind {
	case transport.Start:
		b.counter = 0
		b.mosi = 0
	case transport.Byte:
		b.counter++
		b.mosi = b.mosi>>8 | uint32(ev.Data)<<24
		b.miso >>= 8
	}

	prev := b.state
	switch b.state {
	case Idle:
		if ev.Kind == transport.Start {
			b.state = Command
		}

	case Command:
		if ev.Kind == transport.Done {
			b.stats.Aborted++
			b.log.Debug("frame ended without bus cycle", "bytes", b.counter)
			b.state = Idle
			break
		}
		if ev.Kind == transport.Byte {
			b.decode()
		}

	case Read:
		if ack {
			b.miso = datR
			b.stats.Reads++
			b.finish(err)
		}

	case Write:
		if ack {
			b.stats.Writes++
			b.finish(err)
		}
	}

	if b.state != prev {
		b.log.Debug("state", "from", prev, "to", b.state)
	}
	b.drive()
}

func (b *Bridge) decode() {
	switch b.counter {
	case opcodeBytes:
		b.cmd = byte(b.mosi >> 24)
		if b.cmd != OpRead && b.cmd != OpWrite {
			b.stats.Unknown++
			b.log.Debug("unknown opcode", "op", fmt.Sprintf("%#02x", b.cmd))
		}
	case addressBytes:
		b.address = uint16(b.mosi >> 16)
		if b.cmd == OpRead {
			b.state = Read
		}
	case writeBytes:
		if b.cmd == OpWrite {
			b.data = b.mosi
			b.state = Write
		}
	}
}

func (b *Bridge) finish(busErr bool) {
	if busErr {
		b.log.Warn("bus error", "adr", fmt.Sprintf("%#x", b.adr()), "we", b.state == Write)
	}
	b.state = Idle
}

func (b *Bridge) adr() uint32 { return uint32(b.addressHi)<<16 | uint32(b.address) }

// drive sets the master signals for the current state.
func (b *Bridge) drive() {
	bus := b.bus
	active := b.state == Read || b.state == Write
	bus.Cyc, bus.Stb = active, active
	bus.We = b.state == Write
	if !active {
		return
	}
	bus.Adr = b.adr()
	bus.Sel = 0xf
	bus.DatW = b.data
}
