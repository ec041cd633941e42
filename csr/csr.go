// Package csr describes the address space the bridge reaches on the
// iCEBreaker SoC: the LiteX CSR bank and the UP5K SPRAM.
//
// All addresses are byte addresses. The bridge carries word addresses, so
// only the first 256 KiB are reachable from SPI.
//
//	0x00000000  ctrl    RESET, SCRATCH, BUS_ERRORS
//	0x00000800  leds    OUT
//	0x00020000  sram    128 KiB
package csr

import (
	"fmt"
	"sort"
	"strings"
)

// Region bases and sizes.
const (
	Base     = 0x00000000
	Size     = 0x00010000
	CtrlBase = 0x0000
	LEDsBase = 0x0800
	SRAMBase = 0x00020000
	SRAMSize = 128 << 10
)

// Register addresses.
const (
	CtrlReset     = CtrlBase + 0x0 // write 1 to reset the SoC
	CtrlScratch   = CtrlBase + 0x4
	CtrlBusErrors = CtrlBase + 0x8 // read-only
	LEDsOut       = LEDsBase + 0x0
)

// ScratchReset is the value of SCRATCH after reset. Reading it back in host
// order verifies endianness.
const ScratchReset = 0x12345678

var registers = map[string]uint32{
	"ctrl_reset":      CtrlReset,
	"ctrl_scratch":    CtrlScratch,
	"ctrl_bus_errors": CtrlBusErrors,
	"leds_out":        LEDsOut,
}

// Lookup returns the address of a register by its name, such as
// "ctrl_scratch".
func Lookup(name string) (uint32, bool) {
	a, ok := registers[strings.ToLower(name)]
	return a, ok
}

// Names returns the known register names in address order.
func Names() []string {
	names := make([]string, 0, len(registers))
	for n := range registers {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return registers[names[i]] < registers[names[j]] })
	return names
}

// LEDs is the value of leds OUT. A set bit lights the LED.
//
//	Bit | LED
//	----+-----------------------------------
//	0   | hledr1: center red LED on the head
//	1   | hledg2: green LED #2 on the head
//	2   | hledg3: green LED #3 on the head
//	3   | hledg4: green LED #4 on the head
//	4   | hledg5: green LED #5 on the head
type LEDs uint8

const (
	HLEDR1 LEDs = 1 << iota
	HLEDG2
	HLEDG3
	HLEDG4
	HLEDG5

	AllLEDs = HLEDR1 | HLEDG2 | HLEDG3 | HLEDG4 | HLEDG5
)

var ledNames = [...]string{"hledr1", "hledg2", "hledg3", "hledg4", "hledg5"}

func (l LEDs) HLEDR1() bool { return l&HLEDR1 != 0 }
func (l LEDs) HLEDG2() bool { return l&HLEDG2 != 0 }
func (l LEDs) HLEDG3() bool { return l&HLEDG3 != 0 }
func (l LEDs) HLEDG4() bool { return l&HLEDG4 != 0 }
func (l LEDs) HLEDG5() bool { return l&HLEDG5 != 0 }

func (l LEDs) String() string {
	b := fmt.Sprintf("%05b", byte(l&AllLEDs))
	s := []string{}
	for i, n := range ledNames {
		if l&(1<<i) != 0 {
			s = append(s, n)
		}
	}
	return b + " " + strings.Join(s, ",")
}

// ParseLEDs accepts a number or a comma separated list of LED names.
func ParseLEDs(s string) (LEDs, error) {
	var v uint8
	if _, err := fmt.Sscan(s, &v); err == nil {
		if LEDs(v)&^AllLEDs != 0 {
			return 0, fmt.Errorf("LED mask 0x%X has bits beyond hledg5", v)
		}
		return LEDs(v), nil
	}
	var l LEDs
next:
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		for i, n := range ledNames {
			if f == n {
				l |= 1 << i
				continue next
			}
		}
		return 0, fmt.Errorf("unknown LED %q", f)
	}
	return l, nil
}
