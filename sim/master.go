package sim

import (
	"errors"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Ticker advances the clocked model between pin changes.
type Ticker interface {
	Tick()
}

// Master is a mode 0 SPI master that bit-bangs simulated pins and advances
// the model half an SCK period between edges. It does not drive
// chip-select; the caller owns that pin.
type Master struct {
	clk, mosi gpio.PinOut
	miso      gpio.PinIn
	model     Ticker
	half      int // ticks per half SCK period
}

// NewMaster returns a master clocking model with half ticks per SCK level.
func NewMaster(clk, mosi gpio.PinOut, miso gpio.PinIn, model Ticker, half int) *Master {
	return &Master{clk: clk, mosi: mosi, miso: miso, model: model, half: half}
}

func (m *Master) String() string { return "sim.Master" }

// Duplex implements conn.Conn.
func (m *Master) Duplex() conn.Duplex { return conn.Full }

// Tx implements spi.Conn and drivers.SPI. Either w or r may be nil; the
// shorter one is padded with zeros or truncated.
func (m *Master) Tx(w, r []byte) error {
	n := max(len(w), len(r))
	for i := range n {
		var b byte
		if i < len(w) {
			b = w[i]
		}
		got, err := m.Transfer(b)
		if err != nil {
			return err
		}
		if i < len(r) {
			r[i] = got
		}
	}
	return nil
}

// TxPackets implements spi.Conn. KeepCS has no effect since chip-select is
// driven by the caller.
func (m *Master) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if pkt.BitsPerWord != 0 && pkt.BitsPerWord != 8 {
			return errors.New("sim: only 8 bits per word are supported")
		}
		if err := m.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

// Transfer implements drivers.SPI: it shifts one byte MSB first, sampling
// MISO just before each rising edge.
func (m *Master) Transfer(b byte) (byte, error) {
	var in byte
	for i := 7; i >= 0; i-- {
		if err := m.mosi.Out(gpio.Level(b>>i&1 != 0)); err != nil {
			return 0, err
		}
		m.run()
		if m.miso.Read() == gpio.High {
			in |= 1 << i
		}
		if err := m.clk.Out(gpio.High); err != nil {
			return 0, err
		}
		m.run()
		if err := m.clk.Out(gpio.Low); err != nil {
			return 0, err
		}
	}
	return in, nil
}

func (m *Master) run() {
	for range m.half {
		m.model.Tick()
	}
}

var _ spi.Conn = (*Master)(nil)
