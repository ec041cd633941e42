//go:build tinygo

// Command icebridge-mcu drives the bridge from a microcontroller running
// TinyGo. It checks SCRATCH, then keeps writing patterns to it and reading
// them back while blinking the head's red LED, halting on the first
// mismatch.
//
// Wiring (bridge side on the iCEBreaker PMOD1A):
//
//	SPI0 SCK  | PMOD1A:1 CLK
//	SPI0 SDO  | PMOD1A:3 MOSI
//	SPI0 SDI  | PMOD1A:2 MISO
//	D10       | PMOD1A:0 CS_N
package main

import (
	"machine"
	"strconv"
	"time"

	"github.com/gentam/icebridge"
	"github.com/gentam/icebridge/csr"
	"periph.io/x/conn/v3/gpio"
)

const csPin = machine.D10

// pinCS drives chip-select through a machine pin.
type pinCS machine.Pin

func (p pinCS) Out(l gpio.Level) error {
	machine.Pin(p).Set(bool(l))
	return nil
}

func main() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	csPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	csPin.High()

	if err := machine.SPI0.Configure(machine.SPIConfig{Frequency: 1_000_000, Mode: 0}); err != nil {
		halt("spi: " + err.Error())
	}
	c := icebridge.NewClient(machine.SPI0, pinCS(csPin))

	v, err := c.Scratch()
	if err != nil {
		halt(err.Error())
	}
	println("SCRATCH:", hex(v))
	if err := c.SetScratch(0xdeadbeef); err != nil {
		halt(err.Error())
	}
	if v, err = c.Scratch(); err != nil {
		halt(err.Error())
	}
	println("SCRATCH2:", hex(v))

	for counter := uint32(0); ; counter++ {
		led.Set(counter&1 == 0)
		if err := c.SetLEDs(csr.LEDs(counter & 1)); err != nil {
			halt(err.Error())
		}
		k := byte(counter)
		want := uint32(0x11+k) | uint32(0x22+k)<<8 | uint32(0x33+k)<<16 | uint32(0x44+k)<<24
		if err := c.SetScratch(want); err != nil {
			halt(err.Error())
		}
		got, err := c.Scratch()
		if err != nil {
			halt(err.Error())
		}
		if got != want {
			halt("values mismatch: " + hex(want) + " => " + hex(got))
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func hex(v uint32) string { return strconv.FormatUint(uint64(v), 16) }

func halt(msg string) {
	println(msg)
	for {
		time.Sleep(time.Second)
	}
}
