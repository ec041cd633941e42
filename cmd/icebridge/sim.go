package main

import (
	"flag"
	"fmt"

	"github.com/gentam/icebridge/sim"
	"github.com/gentam/icebridge/transport"
	"github.com/gentam/icebridge/wishbone"
)

// simCommand runs a bridge command against the model instead of hardware,
// then prints what the SoC saw.
func simCommand(args []string) {
	cfg := sim.DefaultConfig()
	fs := flag.NewFlagSet("sim", flag.ExitOnError)
	fs.Var(&cfg.Transport, "transport", "fabric or hard")
	fs.Var(&cfg.SysClock, "sysclk", "system clock")
	fs.Var(&cfg.SPIClock, "spiclk", "SPI clock")
	fs.IntVar(&cfg.BusTimeout, "timeout", cfg.BusTimeout, "bus timeout in cycles, 0 waits forever")
	fs.IntVar(&cfg.RegisterAckDelay, "ackdelay", cfg.RegisterAckDelay, "hard SPI register ack delay in cycles")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fatalUsage("usage: sim [flags] <read|write|probe|leds|reset> [arguments]")
	}
	cfg.Logger = logger

	s, err := sim.New(cfg)
	if err != nil {
		fatalf("%v", err)
	}
	var events, accesses int
	s.SoC().Observe(
		func(transport.Event) { events++ },
		func(a wishbone.Access) {
			accesses++
			if verbose {
				fmt.Println(a)
			}
		},
	)

	switch cmd := fs.Arg(0); cmd {
	case "read", "write", "probe", "leds", "reset":
		bridgeCommand(s.Client(), cmd, fs.Args()[1:])
	default:
		fatalUsage("sim: unknown command %q", cmd)
	}

	st := s.SoC().Bridge().Stats()
	ts := s.SoC().TransportStats()
	fmt.Printf("transport %s: %d frames, %d bytes, %d partial, %d events\n",
		cfg.Transport, ts.Frames, ts.Bytes, ts.PartialFrames, events)
	fmt.Printf("bridge: %d reads, %d writes, %d aborted, %d unknown, %d bus cycles\n",
		st.Reads, st.Writes, st.Aborted, st.Unknown, accesses)
	fmt.Printf("simulated %v in %d cycles, LEDs %v\n", s.Elapsed(), s.SoC().Cycles(), s.SoC().LEDs())
}
