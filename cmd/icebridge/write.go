package main

import (
	"flag"
	"strconv"

	"github.com/gentam/icebridge"
)

func writeCommand(c *icebridge.Client, args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	var verify bool
	fs.BoolVar(&verify, "verify", false, "read the word back")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fatalUsage("usage: write [-verify] <addr> <value>")
	}
	addr := parseAddress(fs.Arg(0))
	v, err := strconv.ParseUint(fs.Arg(1), 0, 32)
	if err != nil {
		fatalUsage("invalid value %q", fs.Arg(1))
	}

	if err := c.Write32(addr, uint32(v)); err != nil {
		fatalf("write failed: %v", err)
	}
	if !verify {
		return
	}
	got, err := c.Read32(addr)
	if err != nil {
		fatalf("read back failed: %v", err)
	}
	if got != uint32(v) {
		fatalf("verify failed: wrote 0x%08X, read 0x%08X", v, got)
	}
}
