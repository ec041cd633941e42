// Package transport recovers a byte stream from an SPI slave link.
//
// Two transports produce the same event vocabulary: SPISlave samples the
// synchronized pins directly, HardSPISlave polls a fixed-function SPI block
// through its register port. Consumers only see Event values and answer
// NextByte requests, so they cannot tell which one is active.
package transport

import "fmt"

// Kind is the type of a transport event.
type Kind uint8

const (
	None  Kind = iota
	Start      // chip newly selected
	Byte       // a full byte was received
	Done       // chip deselected, frame over
)

func (k Kind) String() string {
	switch k {
	case None:
		return "None"
	case Start:
		return "Start"
	case Byte:
		return "Byte"
	case Done:
		return "Done"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Event is what a transport reports for one system clock tick. Data is only
// meaningful for Byte. Partial is set on Done when chip-select went away in
// the middle of a byte.
type Event struct {
	Kind    Kind
	Data    byte
	Partial bool
}

func (e Event) String() string {
	switch e.Kind {
	case Byte:
		return fmt.Sprintf("Byte(%#02x)", e.Data)
	case Done:
		if e.Partial {
			return "Done(partial)"
		}
	}
	return e.Kind.String()
}

// Source supplies the byte a transport shifts out next. Transports call it
// when a frame starts and after every completed byte.
type Source interface {
	NextByte() byte
}

// Transport advances one system clock tick and reports at most one event.
type Transport interface {
	Tick(src Source) Event
}

// Stats counts frame-level outcomes of a transport.
type Stats struct {
	Frames        int
	Bytes         int
	PartialFrames int
}
