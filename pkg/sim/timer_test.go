package sim

import (
	"testing"

	"github.com/itohio/timerchain/pkg/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningPair(divider uint16) *Pair {
	p := NewPair(hal.ITR1)
	p.Master.ConfigureTimeBase(hal.TimeBase{Mode: hal.CountUp, Divider: divider, Ceiling: 0xFFFF})
	p.Master.ConfigureMasterMode(hal.MasterUpdate)
	p.Master.Enable()
	p.Slave.ConfigureTimeBase(hal.TimeBase{Mode: hal.CountUp, Ceiling: 0xFFFF})
	p.Slave.ConfigureTrigger(hal.ITR1)
	p.Slave.ConfigureSlaveMode(hal.SlaveExternalClock1)
	p.Slave.Enable()
	return p
}

func TestMaster_UpdateOncePerWrap(t *testing.T) {
	p := newRunningPair(0)
	var fired int
	p.Master.OnUpdate(func() { fired++ })

	p.Master.Set(0xFFF0)
	for i := 0; i < 0x0F; i++ {
		p.Master.Tick(1)
	}
	require.Equal(t, uint16(0xFFFF), p.Master.Counter())
	assert.Equal(t, 0, fired)
	assert.Equal(t, uint16(0), p.Slave.Counter())

	p.Master.Tick(1)
	assert.Equal(t, uint16(0), p.Master.Counter())
	assert.Equal(t, 1, fired)
	assert.Equal(t, uint16(1), p.Slave.Counter())

	p.Master.Tick(0xFFFF)
	assert.Equal(t, 1, fired, "no second wrap before the counter passes the ceiling again")
	p.Master.Tick(1)
	assert.Equal(t, 2, fired)
	assert.Equal(t, uint16(2), p.Slave.Counter())
}

func TestMaster_ManyWrapsInOneTick(t *testing.T) {
	p := newRunningPair(0)
	var fired int
	p.Master.OnUpdate(func() { fired++ })

	p.Master.Tick(10*0x10000 + 7)
	assert.Equal(t, 10, fired)
	assert.Equal(t, uint64(10), p.Master.Updates())
	assert.Equal(t, uint64(10), p.Slave.Triggers())
	assert.Equal(t, uint16(10), p.Slave.Counter())
	assert.Equal(t, uint16(7), p.Master.Counter())
}

func TestMaster_Prescaler(t *testing.T) {
	p := newRunningPair(3)

	p.Master.Tick(3)
	assert.Equal(t, uint16(0), p.Master.Counter())
	p.Master.Tick(1)
	assert.Equal(t, uint16(1), p.Master.Counter())
	p.Master.Tick(4 * 10)
	assert.Equal(t, uint16(11), p.Master.Counter())
}

func TestMaster_DisabledDoesNotCount(t *testing.T) {
	p := NewPair(hal.ITR1)
	p.Master.ConfigureTimeBase(hal.TimeBase{Ceiling: 0xFFFF})
	p.Master.Tick(100)
	assert.Equal(t, uint16(0), p.Master.Counter())
}

func TestMaster_NoTriggerOutsideUpdateMode(t *testing.T) {
	p := newRunningPair(0)
	p.Master.ConfigureMasterMode(hal.MasterEnable)

	p.Master.Tick(0x10000)
	assert.Equal(t, uint64(0), p.Master.Updates())
	assert.Equal(t, uint16(0), p.Slave.Counter())
}

func TestMaster_SmallCeiling(t *testing.T) {
	p := newRunningPair(0)
	p.Master.ConfigureTimeBase(hal.TimeBase{Mode: hal.CountUp, Ceiling: 9})

	p.Master.Tick(25)
	assert.Equal(t, uint16(5), p.Master.Counter())
	assert.Equal(t, uint16(2), p.Slave.Counter())
}

func TestMaster_CountDown(t *testing.T) {
	p := newRunningPair(0)
	p.Master.ConfigureTimeBase(hal.TimeBase{Mode: hal.CountDown, Ceiling: 9})
	p.Master.Set(3)

	p.Master.Tick(3)
	assert.Equal(t, uint16(0), p.Master.Counter())
	assert.Equal(t, uint64(0), p.Master.Updates())

	p.Master.Tick(1)
	assert.Equal(t, uint16(9), p.Master.Counter())
	assert.Equal(t, uint64(1), p.Master.Updates())
}

func TestSlave_WrapsSilently(t *testing.T) {
	p := newRunningPair(0)
	p.Slave.Set(0xFFFF)

	p.Master.Tick(0x10000)
	assert.Equal(t, uint16(0), p.Slave.Counter())
	assert.Equal(t, uint64(1), p.Slave.Triggers())
}

func TestSlave_IgnoresTriggerWhenNotExternalClock(t *testing.T) {
	p := newRunningPair(0)
	p.Slave.ConfigureSlaveMode(hal.SlaveDisabled)

	p.Master.Tick(0x10000)
	assert.Equal(t, uint64(1), p.Master.Updates())
	assert.Equal(t, uint64(0), p.Slave.Triggers())
}

func TestRecorder_NilSafe(t *testing.T) {
	m := NewMaster("m", nil)
	assert.NotPanics(t, func() {
		m.ConfigureTimeBase(hal.TimeBase{})
		m.Enable()
	})
}
