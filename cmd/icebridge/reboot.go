package main

import (
	"flag"
	"time"
)

func rebootCommand(args []string) {
	fs := flag.NewFlagSet("reboot", flag.ExitOnError)
	var timeout time.Duration
	fs.DurationVar(&timeout, "timeout", 500*time.Millisecond, "how long to wait for CDONE")
	fs.Parse(args)

	d := openDevice()
	if err := d.Reboot(timeout); err != nil {
		fatalf("%v", err)
	}
	logger.Info("FPGA configured")
}
