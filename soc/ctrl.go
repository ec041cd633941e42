package soc

import (
	"github.com/gentam/icebridge/csr"
	"github.com/gentam/icebridge/wishbone"
)

// csrBank serves the CSR region: the ctrl and leds registers. Unimplemented
// addresses read as zero and ignore writes.
type csrBank struct {
	soc     *SoC
	scratch uint32
	leds    csr.LEDs
}

func (b *csrBank) reset() {
	b.scratch = csr.ScratchReset
	b.leds = 0
}

func (b *csrBank) Read(off uint32) uint32 {
	switch off << 2 {
	case csr.CtrlScratch:
		return b.scratch
	case csr.CtrlBusErrors:
		return b.soc.x.BusErrors()
	case csr.LEDsOut:
		return uint32(b.leds)
	}
	return 0
}

func (b *csrBank) Write(off, dat uint32, sel uint8) {
	switch off << 2 {
	case csr.CtrlReset:
		if wishbone.Merge(0, dat, sel)&1 != 0 {
			b.soc.reset()
		}
	case csr.CtrlScratch:
		b.scratch = wishbone.Merge(b.scratch, dat, sel)
	case csr.LEDsOut:
		l := csr.LEDs(wishbone.Merge(uint32(b.leds), dat, sel)) & csr.AllLEDs
		if l != b.leds {
			b.soc.log.Info("leds", "out", l)
		}
		b.leds = l
	}
}
