package rs485

// PinMode selects whether a pin is driven or released
type PinMode int

const (
	PinInput PinMode = iota
	PinOutput
)

// Level is a logic level on a pin
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// Pin is a direction control line driving the transceiver's DE/RE inputs.
// A nil Pin means the instance does no direction control.
type Pin interface {
	SetMode(mode PinMode) error
	Write(level Level) error
}
