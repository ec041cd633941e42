//go:build !tinygo

package icebridge

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// DefaultClock keeps SCK well below an eighth of the 48 MHz system clock the
// fabric transport needs.
const DefaultClock = 1 * physic.MegaHertz

// ErrNotConfigured is returned by Reboot when CDONE does not rise in time.
var ErrNotConfigured = errors.New("FPGA did not signal CDONE")

type Device struct {
	FTDI *ftdi.FT232H

	cs    gpio.PinIO // ADBUS4 Chip Select
	reset gpio.PinIO // ADBUS7 Reset
	cdone gpio.PinIO // ADBUS6 Done

	clock  physic.Frequency
	conn   spi.Conn
	client *Client
}

var hostInitialized atomic.Bool

// NewDevice finds the iCEBreaker's FTDI chip and opens an MPSSE SPI
// connection at clock, or DefaultClock when clock is 0. The gateware must
// route the bridge to the configuration SPI pins, which are free for user
// logic once the FPGA has booted.
func NewDevice(clock physic.Frequency) (*Device, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	if clock == 0 {
		clock = DefaultClock
	}
	d := &Device{clock: clock}
	if err := d.findFTDI(); err != nil {
		return nil, err
	}

	// [iCEBreaker]
	// ADBUS0 | iCE_SCK    | bridge CLK
	// ADBUS1 | iCE_MOSI   | bridge MOSI
	// ADBUS2 | iCE_MISO   | bridge MISO
	// ADBUS4 | iCE_SS_B   | bridge CS_N
	// ADBUS6 | iCE_CDONE
	// ADBUS7 | iCE_CRESET
	d.cs = d.FTDI.D4
	d.reset = d.FTDI.D7
	d.cdone = d.FTDI.D6

	if err := d.connectSPI(); err != nil {
		return nil, err
	}
	if err := d.cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to release CS: %w", err)
	}

	d.client = NewClient(PeriphSPI(d.conn), d.cs)
	return d, nil
}

// Client returns the bridge client running over the FTDI SPI port.
func (d *Device) Client() *Client { return d.client }

// Clock returns the SPI clock the port was opened with.
func (d *Device) Clock() physic.Frequency { return d.clock }

// ResetFPGA asserts (low) or deasserts (high) the FPGA reset line.
func (d *Device) ResetFPGA(l gpio.Level) error {
	return d.reset.Out(l)
}

// Reboot pulses CRESET_B and waits up to timeout for the FPGA to load its
// bitstream from flash and raise CDONE.
func (d *Device) Reboot(timeout time.Duration) error {
	return reboot(d.cs, d.reset, d.cdone, time.Sleep, timeout)
}

// reboot keeps SS_B high so the FPGA boots as SPI master from flash
// [TN1248|Figure 2].
func reboot(cs, reset gpio.PinOut, cdone gpio.PinIn, sleep func(time.Duration), timeout time.Duration) error {
	const (
		tCRESET = time.Microsecond // >= 200ns
		poll    = time.Millisecond
	)
	if err := cs.Out(gpio.High); err != nil {
		return err
	}
	if err := reset.Out(gpio.Low); err != nil {
		return err
	}
	sleep(tCRESET)
	if err := reset.Out(gpio.High); err != nil {
		return err
	}
	for waited := time.Duration(0); ; waited += poll {
		if cdone.Read() == gpio.High {
			return nil
		}
		if waited >= timeout {
			return fmt.Errorf("%w after %v", ErrNotConfigured, timeout)
		}
		sleep(poll)
	}
}

func (d *Device) findFTDI() error {
	const vendorID = 0x0403 // FTDI
	productIDs := []uint16{
		0x6010, // FT2232H, iCEBreaker
		0x6014, // FT232H
	}

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID {
			continue
		}
		for _, pid := range productIDs {
			if info.DevID != pid {
				continue
			}
			if ft, ok := dev.(*ftdi.FT232H); ok {
				d.FTDI = ft
				return nil
			}
		}
	}

	return errors.New("FT2232H/FT232H device not found")
}

func (d *Device) connectSPI() (err error) {
	port, err := d.FTDI.SPI()
	if err != nil {
		return fmt.Errorf("failed to get SPI port: %w", err)
	}

	// [FTDI-AN_114|1.2]> FTDI device can only support mode 0 and mode 2 due to the limitation of MPSSE engine
	// The bridge samples MOSI on the rising edge: mode 0.
	d.conn, err = port.Connect(d.clock, spi.Mode0, 8)
	return err
}
