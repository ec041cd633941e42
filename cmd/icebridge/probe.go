package main

import (
	"flag"
	"fmt"

	"github.com/gentam/icebridge"
	"github.com/gentam/icebridge/csr"
)

func probeCommand(c *icebridge.Client, args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	var n int
	fs.IntVar(&n, "n", 16, "number of scratch patterns")
	fs.Parse(args)

	v, err := c.Scratch()
	if err != nil {
		fatalf("read scratch failed: %v", err)
	}
	fmt.Printf("SCRATCH:    0x%08X", v)
	if v == csr.ScratchReset {
		fmt.Print(" (reset value)")
	}
	fmt.Println()

	if err := c.Probe(n); err != nil {
		fatalf("%v", err)
	}
	errs, err := c.BusErrors()
	if err != nil {
		fatalf("read bus errors failed: %v", err)
	}
	fmt.Printf("BUS_ERRORS: %d\n", errs)
	fmt.Printf("%d patterns OK\n", n)
}

func ledsCommand(c *icebridge.Client, args []string) {
	fs := flag.NewFlagSet("leds", flag.ExitOnError)
	fs.Parse(args)

	switch fs.NArg() {
	case 0:
		l, err := c.LEDs()
		if err != nil {
			fatalf("read LEDs failed: %v", err)
		}
		fmt.Println(l)
	case 1:
		l, err := csr.ParseLEDs(fs.Arg(0))
		if err != nil {
			fatalUsage("%v", err)
		}
		if err := c.SetLEDs(l); err != nil {
			fatalf("set LEDs failed: %v", err)
		}
	default:
		fatalUsage("usage: leds [mask|name,...]")
	}
}
