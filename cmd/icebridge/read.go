package main

import (
	"flag"
	"fmt"

	"github.com/gentam/icebridge"
)

func readCommand(c *icebridge.Client, args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var nwords int
	fs.IntVar(&nwords, "n", 1, "number of words to read")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fatalUsage("usage: read [-n words] <addr>")
	}
	addr := parseAddress(fs.Arg(0))

	words, err := c.ReadWords(addr, nwords)
	for i, w := range words {
		fmt.Printf("0x%08X: 0x%08X\n", addr+uint32(i)*4, w)
	}
	if err != nil {
		fatalf("read failed: %v", err)
	}
}
