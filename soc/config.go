package soc

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slog"
	"periph.io/x/conn/v3/physic"
)

// ErrConfig is wrapped by every error Validate returns.
var ErrConfig = errors.New("invalid configuration")

// TransportKind selects how SPI bytes reach the bridge.
type TransportKind uint8

const (
	// Fabric samples the SPI pins with logic built from the FPGA fabric.
	Fabric TransportKind = iota
	// Hard polls the iCE40 hard SPI block through its register port.
	Hard
)

func (k TransportKind) String() string {
	switch k {
	case Fabric:
		return "fabric"
	case Hard:
		return "hard"
	}
	return fmt.Sprintf("TransportKind(%d)", uint8(k))
}

// Set implements flag.Value.
func (k *TransportKind) Set(s string) error {
	switch strings.ToLower(s) {
	case "fabric", "a":
		*k = Fabric
	case "hard", "b":
		*k = Hard
	default:
		return fmt.Errorf("unknown transport %q, want fabric or hard", s)
	}
	return nil
}

// Config describes the SoC to assemble.
type Config struct {
	Transport TransportKind

	// SysClock is the system clock the model's ticks stand for.
	SysClock physic.Frequency

	// BusTimeout is the number of cycles after which an unacknowledged bus
	// cycle is terminated with an error. 0 waits forever.
	BusTimeout int

	// WithSRAM maps 128 KiB of SPRAM at csr.SRAMBase.
	WithSRAM bool

	// RegisterAckDelay is the hard SPI block's register access latency in
	// cycles. Only used with the Hard transport.
	RegisterAckDelay int

	Logger *slog.Logger
}

// DefaultConfig returns the configuration of the iCEBreaker SoC: 48 MHz,
// fabric transport, LiteX's default bus timeout and SPRAM mapped.
func DefaultConfig() Config {
	return Config{
		Transport:        Fabric,
		SysClock:         48 * physic.MegaHertz,
		BusTimeout:       1_000_000,
		WithSRAM:         true,
		RegisterAckDelay: 1,
	}
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	switch {
	case c.Transport != Fabric && c.Transport != Hard:
		return fmt.Errorf("%w: transport %s", ErrConfig, c.Transport)
	case c.SysClock < physic.Hertz:
		return fmt.Errorf("%w: system clock %s", ErrConfig, c.SysClock)
	case c.BusTimeout < 0:
		return fmt.Errorf("%w: negative bus timeout %d", ErrConfig, c.BusTimeout)
	case c.Transport == Hard && c.RegisterAckDelay < 1:
		return fmt.Errorf("%w: register ack delay %d, want at least 1", ErrConfig, c.RegisterAckDelay)
	}
	return nil
}
