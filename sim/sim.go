// Package sim runs the bridge SoC against a simulated SPI master.
//
// A Simulator owns the four SPI pins, the SoC and a Master. Time only moves
// when the master shifts bits or when Sleep is called, so a Client built by
// Simulator.Client runs the real frame protocol against the model
// deterministically.
package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/gentam/icebridge"
	"github.com/gentam/icebridge/soc"
	"github.com/gentam/icebridge/transport"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

// ErrClockRatio is returned when the SPI clock is too fast for the system
// clock to sample.
var ErrClockRatio = errors.New("SPI clock too fast for system clock")

// minHalf is the smallest number of system ticks per SCK level that leaves
// room for input synchronization and MISO update before the master samples.
const minHalf = 4

// Config is a SoC configuration plus the simulated master's clock.
type Config struct {
	soc.Config
	SPIClock physic.Frequency
}

// DefaultConfig returns the default SoC clocked by a 1 MHz master.
func DefaultConfig() Config {
	return Config{
		Config:   soc.DefaultConfig(),
		SPIClock: 1 * physic.MegaHertz,
	}
}

// HalfPeriod returns the number of system ticks per SCK level.
func (c *Config) HalfPeriod() (int, error) {
	if c.SPIClock <= 0 {
		return 0, fmt.Errorf("%w: SPI clock %s", ErrClockRatio, c.SPIClock)
	}
	half := int(c.SysClock / (2 * c.SPIClock))
	want := minHalf
	if c.Transport == soc.Hard {
		want = max(want, transport.MinHalfPeriod(c.RegisterAckDelay))
	}
	if half < want {
		return 0, fmt.Errorf("%w: %s system clock, %s SPI clock gives %d ticks per half period, want at least %d",
			ErrClockRatio, c.SysClock, c.SPIClock, half, want)
	}
	return half, nil
}

// Simulator ties a SoC to simulated pins and a Master.
type Simulator struct {
	CLK, CSN, MOSI, MISO *gpiotest.Pin

	soc    *soc.SoC
	master *Master
	hz     int64
}

// New builds a simulator. CS_N starts deasserted.
func New(cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	half, err := cfg.HalfPeriod()
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		CLK:  &gpiotest.Pin{N: "CLK"},
		CSN:  &gpiotest.Pin{N: "CS_N", L: gpio.High},
		MOSI: &gpiotest.Pin{N: "MOSI"},
		MISO: &gpiotest.Pin{N: "MISO"},
		hz:   int64(cfg.SysClock / physic.Hertz),
	}
	s.soc, err = soc.New(cfg.Config, transport.Pins{CLK: s.CLK, CSN: s.CSN, MOSI: s.MOSI, MISO: s.MISO})
	if err != nil {
		return nil, err
	}
	s.master = NewMaster(s.CLK, s.MOSI, s.MISO, s.soc, half)
	return s, nil
}

func (s *Simulator) SoC() *soc.SoC          { return s.soc }
func (s *Simulator) Master() *Master        { return s.master }
func (s *Simulator) Run(n int)              { s.soc.Run(n) }
func (s *Simulator) Elapsed() time.Duration { return s.soc.Elapsed() }

// Sleep advances the model by d of system clock time, at least one tick for
// a positive d.
func (s *Simulator) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	n := d.Nanoseconds() * s.hz / int64(time.Second)
	s.soc.Run(max(int(n), 1))
}

// Client returns a bridge client whose bus is the simulated master and whose
// delays advance the model.
func (s *Simulator) Client() *icebridge.Client {
	c := icebridge.NewClient(s.master, s.CSN)
	c.Sleep = s.Sleep
	return c
}
