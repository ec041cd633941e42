package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/gentam/icebridge"
	"github.com/gentam/icebridge/csr"
	"golang.org/x/exp/slog"
	"periph.io/x/conn/v3/physic"
)

var (
	verbose bool
	clock   physic.Frequency
	level   = new(slog.LevelVar)
	logger  = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
)

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func fatalUsage(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	icebridge [-v] [-clock freq] <command> [arguments]

Commands:
	read	 read words over the bridge
	write	 write a word over the bridge
	probe	 scratch register write/read-back test
	leds	 show or set the head LEDs
	reset	 soft reset the SoC
	reboot	 reload the FPGA from flash
	info	 show FTDI device information
	sim	 run the same commands against the simulated SoC

Addresses are byte addresses or register names:
	%v
`, csr.Names())
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Var(&clock, "clock", "SPI clock (default 1MHz)")
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}
	level.Set(slog.LevelWarn)
	if verbose {
		level.Set(slog.LevelDebug)
	}

	switch cmd := flag.Arg(0); cmd {
	case "read", "write", "probe", "leds", "reset":
		bridgeCommand(openDevice().Client(), cmd, flag.Args()[1:])
	case "reboot":
		rebootCommand(flag.Args()[1:])
	case "info":
		infoCommand()
	case "sim":
		simCommand(flag.Args()[1:])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
}

func openDevice() *icebridge.Device {
	d, err := icebridge.NewDevice(clock)
	if err != nil {
		fatalf("%v", err)
	}
	logger.Debug("device open", "clock", d.Clock())
	return d
}

// bridgeCommand runs one of the commands that only need a Client.
func bridgeCommand(c *icebridge.Client, cmd string, args []string) {
	switch cmd {
	case "read":
		readCommand(c, args)
	case "write":
		writeCommand(c, args)
	case "probe":
		probeCommand(c, args)
	case "leds":
		ledsCommand(c, args)
	case "reset":
		if err := c.ResetSoC(); err != nil {
			fatalf("reset failed: %v", err)
		}
	}
}

func parseAddress(s string) uint32 {
	if a, ok := csr.Lookup(s); ok {
		return a
	}
	a, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		fatalUsage("invalid address %q", s)
	}
	return uint32(a)
}
