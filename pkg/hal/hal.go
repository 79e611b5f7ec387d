// Package hal describes the timer peripherals the counter chain is built from.
//
// Implementations are register-backed on the target (see firmware/) and
// simulated on the host (see pkg/sim). None of the operations can fail: they
// are register writes and reads.
package hal

// CountMode selects the counting direction of a timer.
type CountMode uint8

const (
	CountUp CountMode = iota
	CountDown
)

// MasterMode selects which internal event a timer drives onto its trigger output.
type MasterMode uint8

const (
	MasterReset  MasterMode = iota // UG bit
	MasterEnable                   // counter enable
	MasterUpdate                   // update (overflow/reload) event
)

// TriggerSource selects the internal trigger line a slave timer listens to.
type TriggerSource uint8

const (
	ITR0 TriggerSource = iota
	ITR1
	ITR2
	ITR3
)

// SlaveMode selects how a slave timer reacts to its trigger input.
type SlaveMode uint8

const (
	SlaveDisabled       SlaveMode = iota
	SlaveExternalClock1           // each rising trigger edge clocks the counter
)

// TimeBase is the counter configuration shared by every timer.
type TimeBase struct {
	Mode            CountMode
	Divider         uint16 // prescaler; the counter clock is input/(Divider+1)
	Ceiling         uint16 // auto-reload value; the counter wraps after reaching it
	RepetitionCount uint8  // advanced timers only
}

// Timer is a 16-bit counter peripheral.
type Timer interface {
	ConfigureTimeBase(tb TimeBase)
	Enable()
	Counter() uint16
}

// MasterTimer is a timer whose update event is routed to other timers.
type MasterTimer interface {
	Timer
	ConfigureMasterMode(mode MasterMode)
}

// SlaveTimer is a timer clocked by another timer's trigger output.
type SlaveTimer interface {
	Timer
	ConfigureTrigger(src TriggerSource)
	ConfigureSlaveMode(mode SlaveMode)
}
