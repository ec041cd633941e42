package sim

import (
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	qt "github.com/frankban/quicktest"
	"github.com/gentam/icebridge/bridge"
	"github.com/gentam/icebridge/csr"
	"github.com/gentam/icebridge/soc"
	"github.com/gentam/icebridge/transport"
	"github.com/gentam/icebridge/wishbone"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

var transports = []soc.TransportKind{soc.Fabric, soc.Hard}

func newSim(c *qt.C, k soc.TransportKind) *Simulator {
	cfg := DefaultConfig()
	cfg.Transport = k
	s, err := New(cfg)
	c.Assert(err, qt.IsNil)
	return s
}

// frame sends data in one chip-select period and returns what came back.
func frame(c *qt.C, s *Simulator, data ...byte) []byte {
	s.CSN.Out(gpio.Low)
	s.Sleep(time.Microsecond)
	r := make([]byte, len(data))
	c.Assert(s.Master().Tx(data, r), qt.IsNil)
	s.Sleep(time.Microsecond)
	s.CSN.Out(gpio.High)
	s.Sleep(time.Microsecond)
	return r
}

func TestClient(t *testing.T) {
	for _, k := range transports {
		t.Run(k.String(), func(t *testing.T) {
			c := qt.New(t)
			s := newSim(c, k)
			cl := s.Client()

			v, err := cl.Scratch()
			c.Assert(err, qt.IsNil)
			c.Assert(v, qt.Equals, uint32(csr.ScratchReset))

			c.Assert(cl.SetScratch(0xdeadbeef), qt.IsNil)
			v, err = cl.Scratch()
			c.Assert(err, qt.IsNil)
			c.Assert(v, qt.Equals, uint32(0xdeadbeef))

			c.Assert(cl.SetLEDs(csr.HLEDR1|csr.HLEDG5), qt.IsNil)
			c.Assert(s.SoC().LEDs(), qt.Equals, csr.HLEDR1|csr.HLEDG5)
			l, err := cl.LEDs()
			c.Assert(err, qt.IsNil)
			c.Assert(l, qt.Equals, csr.HLEDR1|csr.HLEDG5)

			for i := range uint32(4) {
				c.Assert(cl.Write32(csr.SRAMBase+4*i, 0x01010101*(i+1)), qt.IsNil)
			}
			words, err := cl.ReadWords(csr.SRAMBase, 4)
			c.Assert(err, qt.IsNil)
			c.Assert(words, qt.DeepEquals, []uint32{0x01010101, 0x02020202, 0x03030303, 0x04040404})

			c.Assert(cl.Probe(8), qt.IsNil)

			n, err := cl.BusErrors()
			c.Assert(err, qt.IsNil)
			c.Assert(n, qt.Equals, uint32(0))

			st := s.SoC().Bridge().Stats()
			c.Assert(st.Aborted, qt.Equals, 0)
			c.Assert(st.Unknown, qt.Equals, 0)
		})
	}
}

type trace struct {
	events   []transport.Event
	accesses []wishbone.Access
}

func record(s *Simulator) *trace {
	tr := &trace{}
	s.SoC().Observe(
		func(ev transport.Event) { tr.events = append(tr.events, ev) },
		func(a wishbone.Access) { tr.accesses = append(tr.accesses, a) },
	)
	return tr
}

func TestTransportsAgree(t *testing.T) {
	c := qt.New(t)
	var traces []*trace
	var replies [][][]byte
	for _, k := range transports {
		s := newSim(c, k)
		tr := record(s)
		var got [][]byte
		for _, f := range [][]byte{
			{0x02, 0x01, 0x00, 0xef, 0xbe, 0xad, 0xde},
			{0x03, 0x01, 0x00, 0x00, 0xcc, 0xcc, 0xcc, 0xcc},
			{0x03, 0x00, 0x02},
			{0x42, 0x00, 0x02, 0x00, 0x01, 0x02},
			{0x03, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			{},
		} {
			got = append(got, frame(c, s, f...))
		}
		cl := s.Client()
		c.Assert(cl.Probe(3), qt.IsNil)
		traces = append(traces, tr)
		replies = append(replies, got)
	}
	c.Assert(traces[0].events, qt.DeepEquals, traces[1].events, qt.Commentf("%s", spew.Sdump(traces)))
	c.Assert(traces[0].accesses, qt.DeepEquals, traces[1].accesses)
	c.Assert(replies[0], qt.DeepEquals, replies[1])
	c.Assert(replies[0][1][4:], qt.DeepEquals, []byte{0xef, 0xbe, 0xad, 0xde})
}

func TestScenarios(t *testing.T) {
	for _, k := range transports {
		t.Run(k.String(), func(t *testing.T) {
			c := qt.New(t)
			s := newSim(c, k)
			tr := record(s)

			// read: the word comes back low byte first after the dummy byte.
			// [0x00, 0x03, 0x00, 0x10] with the opcode first, aimed at SRAM word 0x8010
			s.SoC().SRAM().Write(0x0010, 0xaabbccdd, 0xf)
			got := frame(c, s, 0x03, 0x10, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00)
			c.Assert(got[4:], qt.DeepEquals, []byte{0xdd, 0xcc, 0xbb, 0xaa})

			// write: exactly one bus cycle.
			// [0x00, 0x02, 0x00, 0x20, 0x11, 0x22, 0x33, 0x44] with the opcode first
			frame(c, s, 0x02, 0x20, 0x00, 0x11, 0x22, 0x33, 0x44)
			c.Assert(tr.accesses, qt.HasLen, 2)
			c.Assert(tr.accesses[1], qt.Equals, wishbone.Access{Adr: 0x0020, We: true, Dat: 0x44332211, Sel: 0xf, Region: "csr"})

			// deselect after two header bytes: nothing happens
			frame(c, s, 0x03, 0x10)
			c.Assert(tr.accesses, qt.HasLen, 2)
			c.Assert(s.SoC().Bridge().State(), qt.Equals, bridge.Idle)
			c.Assert(s.SoC().Bridge().Stats().Aborted, qt.Equals, 1)
		})
	}
}

func TestBusTimeout(t *testing.T) {
	for _, k := range transports {
		t.Run(k.String(), func(t *testing.T) {
			c := qt.New(t)
			cfg := DefaultConfig()
			cfg.Transport = k
			cfg.BusTimeout = 100
			s, err := New(cfg)
			c.Assert(err, qt.IsNil)
			cl := s.Client()

			v, err := cl.Read32(0x10000)
			c.Assert(err, qt.IsNil)
			c.Assert(v, qt.Equals, uint32(wishbone.ErrorData))
			n, err := cl.BusErrors()
			c.Assert(err, qt.IsNil)
			c.Assert(n, qt.Equals, uint32(1))

			// the bridge is free again
			v, err = cl.Scratch()
			c.Assert(err, qt.IsNil)
			c.Assert(v, qt.Equals, uint32(csr.ScratchReset))
		})
	}
}

func TestUnmappedReadStallsWithoutTimeout(t *testing.T) {
	c := qt.New(t)
	cfg := DefaultConfig()
	cfg.BusTimeout = 0
	s, err := New(cfg)
	c.Assert(err, qt.IsNil)

	frame(c, s, 0x03, 0x00, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00)
	c.Assert(s.SoC().Bridge().State(), qt.Equals, bridge.Read)
	// later frames are swallowed
	frame(c, s, 0x02, 0x01, 0x00, 1, 2, 3, 4)
	c.Assert(s.SoC().Scratch(), qt.Equals, uint32(csr.ScratchReset))
}

func TestResetSoC(t *testing.T) {
	c := qt.New(t)
	s := newSim(c, soc.Hard)
	cl := s.Client()

	c.Assert(cl.SetScratch(1), qt.IsNil)
	c.Assert(cl.SetLEDs(csr.AllLEDs), qt.IsNil)
	c.Assert(cl.Write32(csr.SRAMBase+0x100, 0x5555aaaa), qt.IsNil)
	c.Assert(cl.ResetSoC(), qt.IsNil)

	v, err := cl.Scratch()
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, uint32(csr.ScratchReset))
	c.Assert(s.SoC().LEDs(), qt.Equals, csr.LEDs(0))
	v, err = cl.Read32(csr.SRAMBase + 0x100)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, uint32(0))
}

func TestClockRatio(t *testing.T) {
	c := qt.New(t)
	cfg := DefaultConfig()
	cfg.SPIClock = 12 * physic.MegaHertz
	_, err := New(cfg)
	c.Assert(err, qt.ErrorIs, ErrClockRatio)

	cfg.SPIClock = 6 * physic.MegaHertz
	half, err := cfg.HalfPeriod()
	c.Assert(err, qt.IsNil)
	c.Assert(half, qt.Equals, 4)

	// SPITXDR has to be refilled within one SCK level
	cfg.Transport = soc.Hard
	_, err = cfg.HalfPeriod()
	c.Assert(err, qt.ErrorIs, ErrClockRatio)
	cfg.SPIClock = 3 * physic.MegaHertz
	half, err = cfg.HalfPeriod()
	c.Assert(err, qt.IsNil)
	c.Assert(half, qt.Equals, 8)
	cfg.RegisterAckDelay = 3
	_, err = cfg.HalfPeriod()
	c.Assert(err, qt.ErrorIs, ErrClockRatio)

	cfg.SPIClock = 0
	_, err = cfg.HalfPeriod()
	c.Assert(err, qt.ErrorIs, ErrClockRatio)
}

func TestSleep(t *testing.T) {
	c := qt.New(t)
	s := newSim(c, soc.Fabric)
	s.Sleep(time.Microsecond)
	c.Assert(s.SoC().Cycles(), qt.Equals, uint64(48))
	s.Sleep(time.Nanosecond)
	c.Assert(s.SoC().Cycles(), qt.Equals, uint64(49))
	s.Sleep(0)
	c.Assert(s.Elapsed(), qt.Equals, 49*time.Second/48_000_000)
}

func TestFastestClock(t *testing.T) {
	fastest := map[soc.TransportKind]physic.Frequency{
		soc.Fabric: 6 * physic.MegaHertz,
		soc.Hard:   3 * physic.MegaHertz,
	}
	for _, k := range transports {
		t.Run(k.String(), func(t *testing.T) {
			c := qt.New(t)
			cfg := DefaultConfig()
			cfg.Transport = k
			cfg.SPIClock = fastest[k]
			s, err := New(cfg)
			c.Assert(err, qt.IsNil)
			c.Assert(s.Client().Probe(4), qt.IsNil)
		})
	}
}
