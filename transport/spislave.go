package transport

import (
	"github.com/gentam/icebridge/cdc"
	"github.com/gentam/icebridge/internal/xlog"
	"golang.org/x/exp/slog"
	"periph.io/x/conn/v3/gpio"
)

// Pins are the four SPI slave pads. CSN is the physical, active-low select.
type Pins struct {
	CLK  gpio.PinIn
	CSN  gpio.PinIn
	MOSI gpio.PinIn
	MISO gpio.PinOut
}

type slaveState uint8

const (
	slaveIdle slaveState = iota
	slaveXfer
)

// SPISlave is a mode 0 (CPOL=0, CPHA=0) SPI slave built from edge detection
// on the synchronized pins. MOSI is sampled on rising edges, MISO changes on
// falling edges, bytes are 8 bits MSB first.
type SPISlave struct {
	sync *cdc.Synchronizer
	miso gpio.PinOut
	log  *slog.Logger

	state slaveState
	clkD  gpio.Level // previous synchronized clock, for edge detection
	bits  int        // bits sampled in the current byte
	rx    byte
	tx    byte
	out   gpio.Level // last level driven on MISO

	stats Stats
}

// NewSPISlave returns a slave reading pins through its own synchronizer.
func NewSPISlave(pins Pins, log *slog.Logger) *SPISlave {
	s := &SPISlave{
		sync: cdc.NewSynchronizer(pins.CLK, pins.CSN, pins.MOSI),
		miso: pins.MISO,
		log:  xlog.Or(log).With("transport", "fabric"),
	}
	s.drive()
	return s
}

// Tick implements Transport.
func (s *SPISlave) Tick(src Source) (ev Event) {
	in := s.sync.Tick()
	rise := in.CLK && !s.clkD
	fall := !in.CLK && s.clkD
	s.clkD = in.CLK

	switch s.state {
	case slaveIdle:
		if in.CS {
			s.state = slaveXfer
			s.bits = 0
			s.tx = src.NextByte()
			s.stats.Frames++
			ev = Event{Kind: Start}
		}

	case slaveXfer:
		if s.bits == 8 && (fall || !in.CS) {
			// a byte with all 8 bits sampled is delivered even when deselect
			// comes with or before its last falling edge, Done follows next tick
			ev = Event{Kind: Byte, Data: s.rx}
			s.bits = 0
			s.tx = src.NextByte()
			s.stats.Bytes++
			break
		}
		if !in.CS {
			ev = Event{Kind: Done, Partial: s.bits != 0}
			if ev.Partial {
				s.stats.PartialFrames++
				s.log.Warn("partial frame", "bits", s.bits)
			}
			s.state = slaveIdle
			s.bits = 0
			break
		}
		if rise && s.bits < 8 {
			s.rx = s.rx<<1 | bit(in.MOSI)
			s.bits++
		}
		if fall {
			s.tx <<= 1
		}
	}

	s.drive()
	if ev.Kind != None {
		s.log.Debug("event", "ev", ev)
	}
	return ev
}

// Stats returns the frame counters collected so far.
func (s *SPISlave) Stats() Stats { return s.stats }

func (s *SPISlave) drive() {
	l := gpio.Level(s.tx&0x80 != 0)
	if l == s.out {
		return
	}
	s.out = l
	if err := s.miso.Out(l); err != nil {
		s.log.Error("drive MISO", "err", err)
	}
}

func bit(l gpio.Level) byte {
	if l {
		return 1
	}
	return 0
}
