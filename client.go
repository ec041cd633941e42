package icebridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/gentam/icebridge/csr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

var (
	// ErrAddressRange is returned for byte addresses the bridge's 16-bit
	// word address cannot reach.
	ErrAddressRange = errors.New("address out of bridge range")
	// ErrUnaligned is returned for byte addresses that are not a multiple of 4.
	ErrUnaligned = errors.New("address not word aligned")
)

// MaxAddress is the highest byte address reachable through the bridge.
const MaxAddress = 0xFFFF << 2

// Bridge frame opcodes.
const (
	opWrite = 0x02
	opRead  = 0x03
)

// filler is shifted out while the bridge sends read data.
const filler = 0xCC

// ChipSelect drives the bridge's active-low chip-select line.
type ChipSelect interface {
	Out(l gpio.Level) error
}

// Client issues bridge transactions. It is not safe for concurrent use.
type Client struct {
	// CSDelay is waited after asserting chip-select, before releasing it and
	// after releasing it.
	CSDelay time.Duration
	// Sleep waits for CSDelay. It defaults to time.Sleep.
	Sleep func(time.Duration)

	bus drivers.SPI
	cs  ChipSelect
}

// NewClient returns a client using bus in mode 0 with 8-bit words. cs must
// not be driven by bus itself.
func NewClient(bus drivers.SPI, cs ChipSelect) *Client {
	return &Client{
		CSDelay: time.Microsecond,
		Sleep:   time.Sleep,
		bus:     bus,
		cs:      cs,
	}
}

// tx wraps one frame with CS assertion.
func (c *Client) tx(buf []byte) (err error) {
	if err = c.cs.Out(gpio.Low); err != nil {
		return err
	}
	c.delay()
	defer func() {
		c.delay()
		if csErr := c.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
		c.delay()
	}()
	err = c.bus.Tx(buf, buf)
	return
}

func (c *Client) delay() {
	if c.CSDelay > 0 {
		c.Sleep(c.CSDelay)
	}
}

func wordAddress(addr uint32) (uint16, error) {
	if addr%4 != 0 {
		return 0, fmt.Errorf("0x%X: %w", addr, ErrUnaligned)
	}
	if addr > MaxAddress {
		return 0, fmt.Errorf("0x%X: %w", addr, ErrAddressRange)
	}
	return uint16(addr >> 2), nil
}

// Read32 reads the 32-bit word at byte address addr.
func (c *Client) Read32(addr uint32) (uint32, error) {
	a, err := wordAddress(addr)
	if err != nil {
		return 0, err
	}
	buf := []byte{opRead, byte(a), byte(a >> 8), 0x00, filler, filler, filler, filler}
	if err := c.tx(buf); err != nil {
		return 0, err
	}
	return uint32(buf[4]) | uint32(buf[5])<<8 | uint32(buf[6])<<16 | uint32(buf[7])<<24, nil
}

// Write32 writes v to the 32-bit word at byte address addr.
func (c *Client) Write32(addr, v uint32) error {
	a, err := wordAddress(addr)
	if err != nil {
		return err
	}
	buf := []byte{opWrite, byte(a), byte(a >> 8), byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	return c.tx(buf)
}

// ReadWords reads n consecutive words starting at addr, one frame per word.
func (c *Client) ReadWords(addr uint32, n int) ([]uint32, error) {
	out := make([]uint32, 0, n)
	for i := range n {
		v, err := c.Read32(addr + uint32(i)*4)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) Scratch() (uint32, error)   { return c.Read32(csr.CtrlScratch) }
func (c *Client) SetScratch(v uint32) error  { return c.Write32(csr.CtrlScratch, v) }
func (c *Client) BusErrors() (uint32, error) { return c.Read32(csr.CtrlBusErrors) }

func (c *Client) LEDs() (csr.LEDs, error) {
	v, err := c.Read32(csr.LEDsOut)
	return csr.LEDs(v), err
}

func (c *Client) SetLEDs(l csr.LEDs) error { return c.Write32(csr.LEDsOut, uint32(l)) }

// ResetSoC pulses the SoC's soft reset. CSRs return to their reset values.
func (c *Client) ResetSoC() error { return c.Write32(csr.CtrlReset, 1) }

// Probe writes n patterns to SCRATCH and reads each back, toggling hledr1
// as it goes. It returns the first mismatch.
func (c *Client) Probe(n int) error {
	for i := range n {
		k := byte(i)
		v := uint32(0x11+k) | uint32(0x22+k)<<8 | uint32(0x33+k)<<16 | uint32(0x44+k)<<24
		if err := c.SetLEDs(csr.LEDs(i & 1)); err != nil {
			return err
		}
		if err := c.SetScratch(v); err != nil {
			return err
		}
		got, err := c.Scratch()
		if err != nil {
			return err
		}
		if got != v {
			return fmt.Errorf("probe %d: wrote 0x%08X, read back 0x%08X", i, v, got)
		}
	}
	return nil
}

// PeriphSPI adapts a periph SPI connection to drivers.SPI.
func PeriphSPI(conn spi.Conn) drivers.SPI {
	return periphSPI{conn}
}

type periphSPI struct {
	conn spi.Conn
}

func (p periphSPI) Tx(w, r []byte) error {
	return p.conn.Tx(w, r)
}

func (p periphSPI) Transfer(b byte) (byte, error) {
	r := []byte{0}
	err := p.conn.Tx([]byte{b}, r)
	return r[0], err
}
