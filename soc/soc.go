// Package soc assembles the SPI bridge SoC: SPI pins, a transport, the
// bridge, a Wishbone interconnect, the CSR bank and SRAM.
//
// The SoC is a synchronous model. Each Tick is one system clock cycle and
// updates the components in a fixed order, so a run is fully determined by
// the pin levels seen at every tick.
package soc

import (
	"fmt"
	"time"

	"github.com/gentam/icebridge/bridge"
	"github.com/gentam/icebridge/csr"
	"github.com/gentam/icebridge/internal/xlog"
	"github.com/gentam/icebridge/sbspi"
	"github.com/gentam/icebridge/transport"
	"github.com/gentam/icebridge/wishbone"
	"golang.org/x/exp/slog"
	"periph.io/x/conn/v3/physic"
)

type SoC struct {
	cfg Config
	log *slog.Logger

	tr     transport.Transport
	hard   *sbspi.Core // nil with the Fabric transport
	bridge *bridge.Bridge
	bus    wishbone.Interface
	x      *wishbone.Interconnect
	ctrl   *csrBank
	sram   *wishbone.Memory // nil without SRAM

	cycles  uint64
	onEvent func(transport.Event)
}

// New builds a SoC on pins. The pins are only read and driven from Tick.
func New(cfg Config, pins transport.Pins) (*SoC, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &SoC{
		cfg: cfg,
		log: xlog.Or(cfg.Logger),
	}

	switch cfg.Transport {
	case Fabric:
		s.tr = transport.NewSPISlave(pins, s.log)
	case Hard:
		s.hard = sbspi.NewCore(pins.CLK, pins.CSN, pins.MOSI, pins.MISO, s.log)
		s.hard.AckDelay = cfg.RegisterAckDelay
		s.tr = transport.NewHardSPISlave(s.hard, s.log)
	}

	s.bridge = bridge.New(&s.bus, s.log)
	s.x = wishbone.NewInterconnect(&s.bus, s.log)
	s.x.Timeout = cfg.BusTimeout

	s.ctrl = &csrBank{soc: s}
	s.ctrl.reset()
	if err := s.x.Map(wishbone.Region{Name: "csr", Base: csr.Base, Size: csr.Size, Target: s.ctrl}); err != nil {
		return nil, err
	}
	if cfg.WithSRAM {
		s.sram = wishbone.NewMemory(csr.SRAMSize)
		if err := s.x.Map(wishbone.Region{Name: "sram", Base: csr.SRAMBase, Size: csr.SRAMSize, Target: s.sram}); err != nil {
			return nil, err
		}
	}

	s.log.Info("soc ready", "transport", cfg.Transport, "sysclk", cfg.SysClock, "bus_timeout", cfg.BusTimeout)
	return s, nil
}

// Tick advances the SoC by one system clock cycle.
func (s *SoC) Tick() {
	ev := s.tr.Tick(s.bridge)
	if ev.Kind != transport.None && s.onEvent != nil {
		s.onEvent(ev)
	}
	s.bridge.Tick(ev)
	s.x.Tick()
	if s.hard != nil {
		s.hard.Tick()
	}
	s.cycles++
}

// Run ticks n times.
func (s *SoC) Run(n int) {
	for range n {
		s.Tick()
	}
}

// Observe installs callbacks for transport events and completed bus cycles.
// Either may be nil.
func (s *SoC) Observe(onEvent func(transport.Event), onAccess func(wishbone.Access)) {
	s.onEvent = onEvent
	s.x.OnAccess = onAccess
}

func (s *SoC) reset() {
	s.log.Info("reset")
	s.ctrl.reset()
	if s.sram != nil {
		s.sram.Clear()
	}
	s.x.ClearBusErrors()
}

func (s *SoC) Config() Config                       { return s.cfg }
func (s *SoC) Cycles() uint64                       { return s.cycles }
func (s *SoC) Bridge() *bridge.Bridge               { return s.bridge }
func (s *SoC) Interconnect() *wishbone.Interconnect { return s.x }
func (s *SoC) LEDs() csr.LEDs                       { return s.ctrl.leds }
func (s *SoC) Scratch() uint32                      { return s.ctrl.scratch }
func (s *SoC) SRAM() *wishbone.Memory               { return s.sram }

// Elapsed returns the simulated time covered by the ticks so far.
func (s *SoC) Elapsed() time.Duration {
	hz := float64(s.cfg.SysClock / physic.Hertz)
	return time.Duration(float64(s.cycles) * float64(time.Second) / hz)
}

// TransportStats returns the frame counters of the active transport.
func (s *SoC) TransportStats() transport.Stats {
	switch t := s.tr.(type) {
	case *transport.SPISlave:
		return t.Stats()
	case *transport.HardSPISlave:
		return t.Stats()
	}
	panic(fmt.Sprintf("unexpected transport %T", s.tr))
}
