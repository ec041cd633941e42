// Package wishbone models a classic Wishbone bus: one master port, an
// address decoder with registered acknowledge and the targets behind it.
//
// Addresses on the bus are word addresses. Region bases and sizes are given
// in bytes, the way memory maps are written.
package wishbone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gentam/icebridge/internal/xlog"
	"golang.org/x/exp/slog"
)

// ErrorData is returned on DatR for an access that timed out.
const ErrorData = 0xffffffff

// Interface is the set of bus signals between a master and the
// interconnect. The master writes Adr, DatW, Sel, Cyc, Stb and We and holds
// them until it sees Ack. The interconnect writes DatR, Ack and Err.
type Interface struct {
	Adr  uint32
	DatW uint32
	DatR uint32
	Sel  uint8
	Cyc  bool
	Stb  bool
	We   bool
	Ack  bool
	Err  bool
}

// Target is a slave behind the interconnect. off is the word offset from the
// start of the region it was mapped at.
type Target interface {
	Read(off uint32) uint32
	Write(off, dat uint32, sel uint8)
}

// Region maps a Target into the address space.
type Region struct {
	Name       string
	Base       uint32 // byte address, word aligned
	Size       uint32 // bytes, multiple of 4
	Target     Target
	WaitStates int // extra cycles before Ack
}

func (r *Region) contains(adr uint32) bool {
	w := uint64(adr) << 2
	return w >= uint64(r.Base) && w < uint64(r.Base)+uint64(r.Size)
}

func (r *Region) overlaps(o *Region) bool {
	return uint64(r.Base) < uint64(o.Base)+uint64(o.Size) &&
		uint64(o.Base) < uint64(r.Base)+uint64(r.Size)
}

// Access describes one completed bus cycle.
type Access struct {
	Adr    uint32 // word address
	We     bool
	Dat    uint32 // written data, or data returned to the master
	Sel    uint8
	Region string // empty when nothing decoded the address
	Err    bool
}

func (a Access) String() string {
	var b strings.Builder
	if a.We {
		fmt.Fprintf(&b, "W %#06x <- %#08x", a.Adr<<2, a.Dat)
	} else {
		fmt.Fprintf(&b, "R %#06x -> %#08x", a.Adr<<2, a.Dat)
	}
	if a.Region != "" {
		fmt.Fprintf(&b, " [%s]", a.Region)
	}
	if a.Err {
		b.WriteString(" ERR")
	}
	return b.String()
}

// Interconnect decodes the master's address, runs the access against the
// matching region and pulses Ack for one tick. With Timeout > 0 an access
// that has not completed after Timeout cycles is terminated with Err and
// ErrorData and counted in BusErrors. With Timeout 0 an unmapped access is
// never acknowledged.
type Interconnect struct {
	Timeout  int
	OnAccess func(Access)

	bus     *Interface
	regions []Region
	log     *slog.Logger

	wait   int // cycles the current access has been pending
	errors uint32
}

// NewInterconnect returns an interconnect serving the master on bus.
func NewInterconnect(bus *Interface, log *slog.Logger) *Interconnect {
	return &Interconnect{
		bus: bus,
		log: xlog.Or(log).With("component", "wishbone"),
	}
}

// Map adds a region to the address space.
func (x *Interconnect) Map(r Region) error {
	switch {
	case r.Target == nil:
		return fmt.Errorf("region %q has no target", r.Name)
	case r.Size == 0 || r.Size%4 != 0 || r.Base%4 != 0:
		return fmt.Errorf("region %q: base 0x%X size 0x%X not word aligned", r.Name, r.Base, r.Size)
	case r.WaitStates < 0:
		return fmt.Errorf("region %q: negative wait states", r.Name)
	}
	for i := range x.regions {
		if x.regions[i].overlaps(&r) {
			return fmt.Errorf("region %q overlaps %q", r.Name, x.regions[i].Name)
		}
	}
	x.regions = append(x.regions, r)
	return nil
}

// Regions returns the regions mapped so far.
func (x *Interconnect) Regions() []Region { return x.regions }

// Decode returns the region containing word address adr.
func (x *Interconnect) Decode(adr uint32) (*Region, error) {
	for i := range x.regions {
		if x.regions[i].contains(adr) {
			return &x.regions[i], nil
		}
	}
	return nil, errUnmapped
}

var errUnmapped = errors.New("unmapped address")

// BusErrors returns the number of accesses terminated by the timeout.
func (x *Interconnect) BusErrors() uint32 { return x.errors }

// ClearBusErrors resets the bus error counter.
func (x *Interconnect) ClearBusErrors() { x.errors = 0 }

// Tick advances the interconnect by one cycle.
func (x *Interconnect) Tick() {
	b := x.bus
	b.Ack, b.Err = false, false
	if !b.Cyc || !b.Stb {
		x.wait = 0
		return
	}
	x.wait++

	r, err := x.Decode(b.Adr)
	if err != nil && x.wait == 1 {
		x.log.Warn("no region", "adr", fmt.Sprintf("%#x", b.Adr<<2))
	}
	switch {
	case r != nil && x.wait > r.WaitStates:
		x.complete(r)
	case x.Timeout > 0 && x.wait >= x.Timeout:
		x.timeout(r)
	}
}

func (x *Interconnect) complete(r *Region) {
	b := x.bus
	off := b.Adr - r.Base>>2
	a := Access{Adr: b.Adr, We: b.We, Sel: b.Sel, Region: r.Name}
	if b.We {
		r.Target.Write(off, b.DatW, b.Sel)
		a.Dat = b.DatW
	} else {
		b.DatR = r.Target.Read(off)
		a.Dat = b.DatR
	}
	b.Ack = true
	x.wait = 0
	x.report(a)
}

func (x *Interconnect) timeout(r *Region) {
	b := x.bus
	b.DatR = ErrorData
	b.Ack, b.Err = true, true
	x.wait = 0
	x.errors++
	a := Access{Adr: b.Adr, We: b.We, Sel: b.Sel, Err: true}
	if r != nil {
		a.Region = r.Name
	}
	if !b.We {
		a.Dat = ErrorData
	} else {
		a.Dat = b.DatW
	}
	x.log.Warn("bus timeout", "access", a, "errors", x.errors)
	x.report(a)
}

func (x *Interconnect) report(a Access) {
	x.log.Debug("access", "access", a)
	if x.OnAccess != nil {
		x.OnAccess(a)
	}
}

// Merge replaces the bytes of old selected by sel with those of dat.
func Merge(old, dat uint32, sel uint8) uint32 {
	var mask uint32
	for i := range 4 {
		if sel&(1<<i) != 0 {
			mask |= 0xff << (8 * i)
		}
	}
	return old&^mask | dat&mask
}
