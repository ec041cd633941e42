package transport

import (
	"fmt"

	"github.com/gentam/icebridge/internal/xlog"
	"github.com/gentam/icebridge/sbspi"
	"golang.org/x/exp/slog"
)

// RegisterPort is the system-bus side of a fixed-function SPI block: one
// register access at a time, held until acknowledged.
type RegisterPort interface {
	// Strobe presents an access for the current tick and returns the read
	// data and acknowledge the block produced on the previous tick. Not
	// calling Strobe leaves the strobe deasserted for the tick.
	Strobe(addr uint8, write bool, data byte) (rdata byte, ack bool)
}

type hardState uint8

const (
	hardReset hardState = iota
	hardIdle
	hardPollStatus
	hardReadRx
	hardWriteTx
)

var hardStateNames = [...]string{"Reset", "Idle", "PollStatus", "ReadRx", "WriteTx"}

func (s hardState) String() string {
	if int(s) < len(hardStateNames) {
		return hardStateNames[s]
	}
	return fmt.Sprintf("hardState(%d)", uint8(s))
}

// HardSPISlave drives a hard SPI block in slave mode by polling its status
// register every tick it is idle, and reports the same events as SPISlave.
//
// Start and Done are the edges of the busy flag sampled from SPISR. A byte
// still waiting in SPIRXDR keeps the frame busy, so the last byte of a frame
// is always reported before its Done.
//
// SPITXDR is written on Start and right after each byte is read, with the
// value NextByte returns on the tick the event is reported. The write has to
// land before the next byte's first clock edge, which bounds the SPI clock
// (see MinHalfPeriod).
type HardSPISlave struct {
	port RegisterPort
	log  *slog.Logger

	state hardState
	busy  bool
	busyD bool
	tx    byte // next value for SPITXDR

	stats Stats
}

// MinHalfPeriod returns the fewest system ticks per SCK level that leave
// HardSPISlave time to refill SPITXDR between bytes, for a block that
// acknowledges register accesses after ackDelay ticks. One tick goes to input
// synchronization, then a missed status read, an idle tick and three full
// register accesses.
func MinHalfPeriod(ackDelay int) int {
	return 3*max(ackDelay, 1) + 5
}

// NewHardSPISlave takes ownership of port. The first ticks enable the block.
func NewHardSPISlave(port RegisterPort, log *slog.Logger) *HardSPISlave {
	return &HardSPISlave{
		port: port,
		log:  xlog.Or(log).With("transport", "hard"),
	}
}

// Tick implements Transport.
func (h *HardSPISlave) Tick(src Source) (ev Event) {
	switch h.state {
	case hardReset:
		if _, ack := h.port.Strobe(sbspi.RegCR1, true, sbspi.CR1Enable); ack {
			h.log.Debug("enabled")
			h.state = hardIdle
		}

	case hardIdle:
		h.state = hardPollStatus

	case hardPollStatus:
		d, ack := h.port.Strobe(sbspi.RegSR, false, 0)
		if !ack {
			break
		}
		sr := sbspi.Status(d)
		h.busy = sr.Busy() || sr.RxReady()
		switch {
		case h.busy && !h.busyD:
			// Start is reported below on this tick
			h.tx = src.NextByte()
			h.state = hardWriteTx
		case sr.RxReady():
			h.state = hardReadRx
		default:
			h.state = hardIdle
		}
		if sr.RxOverrun() {
			h.log.Warn("receive overrun", "status", sr)
		}
		if sr.TxUnderrun() {
			h.log.Warn("transmit underrun", "status", sr)
		}

	case hardReadRx:
		if d, ack := h.port.Strobe(sbspi.RegRXDR, false, 0); ack {
			h.stats.Bytes++
			ev = Event{Kind: Byte, Data: d}
			h.tx = src.NextByte()
			h.state = hardWriteTx
		}

	case hardWriteTx:
		if _, ack := h.port.Strobe(sbspi.RegTXDR, true, h.tx); ack {
			h.state = hardIdle
		}
	}

	// busy only changes on a status ack, which never coincides with a byte
	switch {
	case h.busy && !h.busyD:
		h.stats.Frames++
		ev = Event{Kind: Start}
	case !h.busy && h.busyD:
		ev = Event{Kind: Done}
	}
	h.busyD = h.busy

	if ev.Kind != None {
		h.log.Debug("event", "ev", ev)
	}
	return ev
}

// Stats returns the frame counters collected so far. The block hides bit
// counts, so PartialFrames stays zero.
func (h *HardSPISlave) Stats() Stats { return h.stats }
