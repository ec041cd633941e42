package soc

import (
	"flag"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gentam/icebridge/csr"
	"github.com/gentam/icebridge/transport"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

func pins() transport.Pins {
	return transport.Pins{
		CLK:  &gpiotest.Pin{N: "CLK"},
		CSN:  &gpiotest.Pin{N: "CS_N", L: gpio.High},
		MOSI: &gpiotest.Pin{N: "MOSI"},
		MISO: &gpiotest.Pin{N: "MISO"},
	}
}

func TestValidate(t *testing.T) {
	c := qt.New(t)
	cfg := DefaultConfig()
	c.Assert(cfg.Validate(), qt.IsNil)

	for _, mod := range []func(*Config){
		func(c *Config) { c.SysClock = 0 },
		func(c *Config) { c.BusTimeout = -1 },
		func(c *Config) { c.Transport = 7 },
		func(c *Config) { c.Transport, c.RegisterAckDelay = Hard, 0 },
	} {
		cfg := DefaultConfig()
		mod(&cfg)
		c.Assert(cfg.Validate(), qt.ErrorIs, ErrConfig)
		_, err := New(cfg, pins())
		c.Assert(err, qt.ErrorIs, ErrConfig)
	}

	cfg.RegisterAckDelay = 0
	c.Assert(cfg.Validate(), qt.IsNil, qt.Commentf("ack delay only matters for the hard block"))
}

func TestTransportKindFlag(t *testing.T) {
	c := qt.New(t)
	var k TransportKind
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&k, "transport", "")
	c.Assert(fs.Parse([]string{"-transport=hard"}), qt.IsNil)
	c.Assert(k, qt.Equals, Hard)
	c.Assert(k.String(), qt.Equals, "hard")
	c.Assert(k.Set("spi"), qt.ErrorMatches, `unknown transport "spi", want fabric or hard`)
}

func TestCSRBank(t *testing.T) {
	c := qt.New(t)
	s, err := New(DefaultConfig(), pins())
	c.Assert(err, qt.IsNil)
	b := s.ctrl

	c.Assert(b.Read(csr.CtrlScratch>>2), qt.Equals, uint32(csr.ScratchReset))
	b.Write(csr.CtrlScratch>>2, 0xdeadbeef, 0x3)
	c.Assert(s.Scratch(), qt.Equals, uint32(0x1234beef))

	b.Write(csr.LEDsOut>>2, 0xff, 0xf)
	c.Assert(s.LEDs(), qt.Equals, csr.AllLEDs)
	c.Assert(b.Read(csr.LEDsOut>>2), qt.Equals, uint32(0x1f))

	s.SRAM().Write(3, 42, 0xf)
	s.x.Timeout = 1
	s.bus.Cyc, s.bus.Stb, s.bus.Adr = true, true, 0x10000>>2
	s.x.Tick()
	s.bus.Cyc, s.bus.Stb = false, false
	c.Assert(b.Read(csr.CtrlBusErrors>>2), qt.Equals, uint32(1))

	// writing 0 does nothing
	b.Write(csr.CtrlReset>>2, 0, 0xf)
	c.Assert(s.LEDs(), qt.Equals, csr.AllLEDs)

	b.Write(csr.CtrlReset>>2, 1, 0xf)
	c.Assert(s.Scratch(), qt.Equals, uint32(csr.ScratchReset))
	c.Assert(s.LEDs(), qt.Equals, csr.LEDs(0))
	c.Assert(s.SRAM().Read(3), qt.Equals, uint32(0))
	c.Assert(s.Interconnect().BusErrors(), qt.Equals, uint32(0))
	c.Assert(b.Read(0x100), qt.Equals, uint32(0))
}

func TestWithoutSRAM(t *testing.T) {
	c := qt.New(t)
	cfg := DefaultConfig()
	cfg.WithSRAM = false
	s, err := New(cfg, pins())
	c.Assert(err, qt.IsNil)
	c.Assert(s.SRAM(), qt.IsNil)
	c.Assert(s.Interconnect().Regions(), qt.HasLen, 1)
}

func TestElapsed(t *testing.T) {
	c := qt.New(t)
	cfg := DefaultConfig()
	cfg.SysClock = 12 * physic.MegaHertz
	cfg.Transport = Hard
	s, err := New(cfg, pins())
	c.Assert(err, qt.IsNil)
	s.Run(12000)
	c.Assert(s.Cycles(), qt.Equals, uint64(12000))
	c.Assert(s.Elapsed(), qt.Equals, time.Millisecond)
	c.Assert(s.TransportStats(), qt.Equals, transport.Stats{})
}
