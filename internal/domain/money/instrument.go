package money

import "fmt"

// Instrument selects one of the two settlement tokens.
type Instrument string

const (
	// InstrumentA is the membership-gated token: both parties must hold a current membership.
	InstrumentA Instrument = "token_a"
	// InstrumentB is the standard fungible token.
	InstrumentB Instrument = "token_b"
)

// Instruments lists every supported instrument.
var Instruments = []Instrument{InstrumentA, InstrumentB}

// IsValid reports whether the instrument is supported.
func (i Instrument) IsValid() bool {
	return i == InstrumentA || i == InstrumentB
}

// String returns the instrument tag.
func (i Instrument) String() string { return string(i) }

// ParseInstrument converts a tag to an Instrument.
func ParseInstrument(s string) (Instrument, error) {
	i := Instrument(s)
	if !i.IsValid() {
		return "", fmt.Errorf("unknown instrument: %s", s)
	}
	return i, nil
}
