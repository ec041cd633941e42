// Package sbspi models the iCE40 hard SPI block (SB_SPI) in slave mode.
//
// The block is reached through a 4-bit register port with a strobe and
// acknowledge handshake. Only the parts a polled slave needs are modeled:
// enable, status flags, one transmit and one receive data register.
//
// # References
//
//   - [TN1274]: iCE40 SPI/I2C Hardened IP Usage Guide (https://www.latticesemi.com/view_document?document_id=50117)
//   - [SBTICE]: iCE Technology Library, SB_SPI (https://www.latticesemi.com/view_document?document_id=52206)
package sbspi

import (
	"fmt"
	"strings"

	"github.com/gentam/icebridge/cdc"
	"github.com/gentam/icebridge/internal/xlog"
	"golang.org/x/exp/slog"
	"periph.io/x/conn/v3/gpio"
)

// Register offsets, low nibble of SBADRI [TN1274|Table 7: SPI Registers].
const (
	RegIRQ   = 0x6
	RegIRQEN = 0x7
	RegCR0   = 0x8
	RegCR1   = 0x9
	RegCR2   = 0xA
	RegBR    = 0xB
	RegSR    = 0xC
	RegTXDR  = 0xD
	RegRXDR  = 0xE
	RegCSR   = 0xF
)

const (
	CR1Enable = 1 << 7 // SPE
	CR2Master = 1 << 7 // MSTR
)

// Status is the SPISR register.
//
//	Bit | Name
//	----+-------------------------------
//	7   | TIP:  transmitting in progress
//	6   | BUSY: chip selected
//	5   | reserved
//	4   | TRDY: SPITXDR empty
//	3   | RRDY: SPIRXDR full
//	2   | TOE:  transmit underrun
//	1   | ROE:  receive overrun
//	0   | MDF:  mode fault
type Status byte

const (
	StatusTIP  Status = 1 << 7
	StatusBusy Status = 1 << 6
	StatusTRDY Status = 1 << 4
	StatusRRDY Status = 1 << 3
	StatusTOE  Status = 1 << 2
	StatusROE  Status = 1 << 1
	StatusMDF  Status = 1 << 0
)

func (s Status) InProgress() bool { return s&StatusTIP != 0 }
func (s Status) Busy() bool       { return s&StatusBusy != 0 }
func (s Status) TxReady() bool    { return s&StatusTRDY != 0 }
func (s Status) RxReady() bool    { return s&StatusRRDY != 0 }
func (s Status) TxUnderrun() bool { return s&StatusTOE != 0 }
func (s Status) RxOverrun() bool  { return s&StatusROE != 0 }
func (s Status) ModeFault() bool  { return s&StatusMDF != 0 }

func (s Status) String() string {
	b := fmt.Sprintf("%08b", byte(s))
	flags := []string{}
	for _, f := range []struct {
		set  bool
		name string
	}{
		{s.InProgress(), "TIP"},
		{s.Busy(), "BUSY"},
		{s.TxReady(), "TRDY"},
		{s.RxReady(), "RRDY"},
		{s.TxUnderrun(), "TOE"},
		{s.RxOverrun(), "ROE"},
		{s.ModeFault(), "MDF"},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	if len(flags) == 0 {
		return b
	}
	return b + " " + strings.Join(flags, ",")
}

type request struct {
	valid bool
	write bool
	addr  uint8
	data  byte
}

// Core is one SB_SPI instance. Its register port implements the polled
// side (see Strobe), its pins the SPI side. Call Tick once per system clock.
type Core struct {
	// AckDelay is the number of ticks a strobe is held before the block
	// acknowledges it. Values below 1 behave as 1.
	AckDelay int

	sync *cdc.Synchronizer
	miso gpio.PinOut
	log  *slog.Logger

	// register port
	req  request
	wait int
	ack  bool
	dato byte

	regs [16]byte // registers without side effects
	txdr byte
	rxdr byte
	trdy bool
	rrdy bool
	toe  bool
	roe  bool

	// shift engine
	clkD gpio.Level
	cs   bool
	bits int
	rx   byte
	tx   byte
	out  gpio.Level
}

// NewCore returns a disabled block wired to the SPI pads. csN is active low.
func NewCore(clk, csN, mosi gpio.PinIn, miso gpio.PinOut, log *slog.Logger) *Core {
	return &Core{
		AckDelay: 1,
		sync:     cdc.NewSynchronizer(clk, csN, mosi),
		miso:     miso,
		log:      xlog.Or(log).With("block", "SB_SPI"),
		trdy:     true,
	}
}

// Strobe presents a register access for the current tick. It returns the
// acknowledge and read data produced by the previous Tick.
func (c *Core) Strobe(addr uint8, write bool, data byte) (byte, bool) {
	c.req = request{valid: true, write: write, addr: addr & 0xF, data: data}
	return c.dato, c.ack
}

// Tick advances the block by one system clock.
func (c *Core) Tick() {
	c.tickEngine()
	c.tickPort()
	c.drive()
}

// Status returns SPISR without the read side effects.
func (c *Core) Status() Status {
	var s Status
	if c.cs && c.bits != 0 {
		s |= StatusTIP
	}
	if c.cs {
		s |= StatusBusy
	}
	if c.trdy && c.enabled() {
		s |= StatusTRDY
	}
	if c.rrdy {
		s |= StatusRRDY
	}
	if c.toe {
		s |= StatusTOE
	}
	if c.roe {
		s |= StatusROE
	}
	return s
}

func (c *Core) enabled() bool {
	return c.regs[RegCR1]&CR1Enable != 0 && c.regs[RegCR2]&CR2Master == 0
}

func (c *Core) tickPort() {
	req := c.req
	c.req = request{}
	if c.ack {
		// acknowledge is a single tick pulse
		c.ack = false
		c.wait = 0
		return
	}
	if !req.valid {
		c.wait = 0
		return
	}
	c.wait++
	if c.wait < max(c.AckDelay, 1) {
		return
	}
	c.wait = 0
	c.ack = true
	if req.write {
		c.write(req.addr, req.data)
	} else {
		c.dato = c.read(req.addr)
	}
}

func (c *Core) read(addr uint8) byte {
	switch addr {
	case RegSR:
		s := c.Status()
		c.toe, c.roe = false, false
		return byte(s)
	case RegRXDR:
		c.rrdy = false
		return c.rxdr
	case RegTXDR:
		return c.txdr
	}
	return c.regs[addr]
}

func (c *Core) write(addr uint8, data byte) {
	switch addr {
	case RegSR, RegRXDR:
		// read-only
	case RegTXDR:
		c.txdr = data
		c.trdy = false
	case RegIRQ:
		c.regs[addr] &^= data
	default:
		c.regs[addr] = data
		if (addr == RegCR1 || addr == RegCR2) && !c.enabled() {
			c.cs = false
			c.bits = 0
		}
		c.log.Debug("register write", "addr", addr, "data", data)
	}
}

func (c *Core) tickEngine() {
	in := c.sync.Tick()
	rise := in.CLK && !c.clkD
	fall := !in.CLK && c.clkD
	c.clkD = in.CLK

	if !c.enabled() {
		return
	}
	if c.cs && c.bits == 8 && bool(fall || !in.CS) {
		// all 8 bits sampled completes the byte even with deselect
		c.receive()
	}
	if !in.CS {
		// a partially shifted byte is dropped
		c.cs = false
		c.bits = 0
		return
	}
	if !c.cs {
		c.cs = true
		c.bits = 0
	}

	if rise && c.bits < 8 {
		if c.bits == 0 {
			c.latchTx()
		}
		c.rx = c.rx<<1 | b2u8(in.MOSI)
		c.bits++
	}
	if fall && c.bits > 0 {
		c.tx <<= 1
	}
}

func (c *Core) receive() {
	if c.rrdy {
		c.roe = true
	}
	c.rxdr = c.rx
	c.rrdy = true
	c.bits = 0
}

func (c *Core) latchTx() {
	if c.trdy {
		c.tx = 0
		c.toe = true
	} else {
		c.tx = c.txdr
	}
	c.trdy = true
}

func (c *Core) drive() {
	next := c.tx
	if c.bits == 0 {
		next = 0
		if !c.trdy {
			next = c.txdr
		}
	}
	l := gpio.Level(next&0x80 != 0)
	if l == c.out {
		return
	}
	c.out = l
	if err := c.miso.Out(l); err != nil {
		c.log.Error("drive MISO", "err", err)
	}
}

func b2u8(l gpio.Level) byte {
	if l {
		return 1
	}
	return 0
}
