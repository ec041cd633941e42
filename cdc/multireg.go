// Package cdc moves asynchronous pin levels into the system clock domain.
//
// Every external SPI input goes through two registers before protocol logic
// looks at it. This does not make metastability impossible, it bounds how
// often an unresolved level can reach the consumer.
package cdc

import "periph.io/x/conn/v3/gpio"

// MultiReg resamples one input pin through two registers.
type MultiReg struct {
	in     gpio.PinIn
	invert bool
	r0, r1 gpio.Level
}

// New returns a two-register synchronizer for in.
func New(in gpio.PinIn) *MultiReg {
	return &MultiReg{in: in}
}

// NewInverted is New for an active-low input: the output is the logical,
// active-high level.
func NewInverted(in gpio.PinIn) *MultiReg {
	return &MultiReg{in: in, invert: true}
}

// Tick advances both registers by one system clock and returns the output.
func (m *MultiReg) Tick() gpio.Level {
	m.r1 = m.r0
	m.r0 = m.in.Read() != gpio.Level(m.invert)
	return m.r1
}

// Level returns the synchronized output without advancing.
func (m *MultiReg) Level() gpio.Level { return m.r1 }

// Sample is one tick's view of the SPI inputs after synchronization. CS is
// the logical select, high while the chip is selected.
type Sample struct {
	CLK  gpio.Level
	CS   gpio.Level
	MOSI gpio.Level
}

// Synchronizer groups the three SPI slave inputs.
type Synchronizer struct {
	clk, cs, mosi *MultiReg
}

// NewSynchronizer resamples clk and mosi as-is and inverts csN.
func NewSynchronizer(clk, csN, mosi gpio.PinIn) *Synchronizer {
	return &Synchronizer{
		clk:  New(clk),
		cs:   NewInverted(csN),
		mosi: New(mosi),
	}
}

// Tick samples the pins and returns the levels that made it through both
// registers.
func (s *Synchronizer) Tick() Sample {
	return Sample{
		CLK:  s.clk.Tick(),
		CS:   s.cs.Tick(),
		MOSI: s.mosi.Tick(),
	}
}
