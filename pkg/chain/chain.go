// Package chain extends two 16-bit timers into one 32-bit free-running counter.
//
// The master timer counts the prescaled clock and emits its update event on
// every overflow. The slave timer is clocked by that event, so it holds the
// number of master overflows: the high half of the 32-bit value.
//
// The handoff between the two timers happens in hardware. Exactly one slave
// increment per master overflow is a property of the peripheral, not
// something this package can check.
package chain

import "github.com/itohio/timerchain/pkg/hal"

const (
	// DefaultDivider is the master prescaler value.
	DefaultDivider = 0xFF
	// MaxCeiling is the largest auto-reload value of a 16-bit timer.
	MaxCeiling = 0xFFFF
)

// Config holds the master time base and the trigger line the slave listens on.
type Config struct {
	MasterDivider uint16
	MasterCeiling uint16
	Trigger       hal.TriggerSource
}

// DefaultConfig returns divider 0xFF, ceiling 0xFFFF and ITR1 as the trigger
// (TIM2 TRGO feeds TIM1 ITR1 on STM32F1).
func DefaultConfig() Config {
	return Config{
		MasterDivider: DefaultDivider,
		MasterCeiling: MaxCeiling,
		Trigger:       hal.ITR1,
	}
}

// Counter reads a chained timer pair as one 32-bit value.
type Counter struct {
	master hal.MasterTimer
	slave  hal.SlaveTimer
}

// Init configures and starts the pair and returns a Counter reading it.
//
// The master is fully configured and running before the slave is touched:
// the slave's external clock mode expects the master's trigger line to be live.
func Init(master hal.MasterTimer, slave hal.SlaveTimer, cfg Config) *Counter {
	master.ConfigureTimeBase(hal.TimeBase{
		Mode:    hal.CountUp,
		Divider: cfg.MasterDivider,
		Ceiling: cfg.MasterCeiling,
	})
	master.ConfigureMasterMode(hal.MasterUpdate)
	master.Enable()

	slave.ConfigureTimeBase(hal.TimeBase{
		Mode:            hal.CountUp,
		Divider:         0,
		RepetitionCount: 0,
		Ceiling:         MaxCeiling,
	})
	slave.ConfigureTrigger(cfg.Trigger)
	slave.ConfigureSlaveMode(hal.SlaveExternalClock1)
	slave.Enable()

	return &Counter{master: master, slave: slave}
}

// Compose joins the two 16-bit halves into the 32-bit counter value.
func Compose(high, low uint16) uint32 {
	return uint32(high)<<16 | uint32(low)
}

// Read returns the slave counter (high half) and the master counter (low half)
// composed into one value. The two registers are read one after the other, so
// a master overflow between the reads yields a value one period behind.
func (c *Counter) Read() uint32 {
	high := c.slave.Counter()
	low := c.master.Counter()
	return Compose(high, low)
}

// ReadStable reads high, low and high again, retrying until both high reads
// agree. The result never mixes halves from either side of an overflow.
func (c *Counter) ReadStable() uint32 {
	for {
		high := c.slave.Counter()
		low := c.master.Counter()
		if c.slave.Counter() == high {
			return Compose(high, low)
		}
	}
}
