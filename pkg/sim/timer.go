// Package sim simulates the chained timer pair and the USART on the host.
//
// The simulation is single-threaded like the hardware it stands in for; the
// caller advances time explicitly with Master.Tick.
package sim

import (
	"sync"

	"github.com/itohio/timerchain/pkg/hal"
)

// Recorder collects configuration calls from every simulated peripheral that
// shares it, in call order.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *Recorder) record(call string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

type timer struct {
	name    string
	rec     *Recorder
	tb      hal.TimeBase
	enabled bool
	cnt     uint16
}

func (t *timer) ConfigureTimeBase(tb hal.TimeBase) {
	t.rec.record(t.name + ".ConfigureTimeBase")
	t.tb = tb
}

func (t *timer) Enable() {
	t.rec.record(t.name + ".Enable")
	t.enabled = true
}

func (t *timer) Counter() uint16 {
	return t.cnt
}

// TimeBase returns the time base last configured.
func (t *timer) TimeBase() hal.TimeBase {
	return t.tb
}

// Enabled reports whether Enable was called.
func (t *timer) Enabled() bool {
	return t.enabled
}

// step advances the counter by one and reports whether it wrapped.
func (t *timer) step() bool {
	return t.advance(1) == 1
}

// advance moves the counter k counts and returns the number of wraps.
func (t *timer) advance(k uint64) uint64 {
	var wraps uint64
	for k > 0 {
		if t.tb.Mode == hal.CountDown {
			if t.cnt == 0 || t.cnt > t.tb.Ceiling {
				t.cnt = t.tb.Ceiling
				wraps++
				k--
				continue
			}
			room := uint64(t.cnt)
			if k <= room {
				t.cnt -= uint16(k)
				return wraps
			}
			t.cnt = 0
			k -= room
			continue
		}
		if t.cnt >= t.tb.Ceiling {
			t.cnt = 0
			wraps++
			k--
			continue
		}
		room := uint64(t.tb.Ceiling - t.cnt)
		if k <= room {
			t.cnt += uint16(k)
			return wraps
		}
		t.cnt = t.tb.Ceiling
		k -= room
	}
	return wraps
}

// Master is a simulated timer that emits update events on its trigger output.
type Master struct {
	timer
	mode      hal.MasterMode
	prescaler uint32
	updates   uint64
	listeners []func()
}

var _ hal.MasterTimer = (*Master)(nil)

// NewMaster returns a stopped master timer.
func NewMaster(name string, rec *Recorder) *Master {
	return &Master{timer: timer{name: name, rec: rec}}
}

// ConfigureMasterMode selects the trigger output event.
func (m *Master) ConfigureMasterMode(mode hal.MasterMode) {
	m.rec.record(m.name + ".ConfigureMasterMode")
	m.mode = mode
}

// MasterMode returns the configured trigger output event.
func (m *Master) MasterMode() hal.MasterMode {
	return m.mode
}

// OnUpdate registers fn to be called once per update event routed to the
// trigger output.
func (m *Master) OnUpdate(fn func()) {
	m.listeners = append(m.listeners, fn)
}

// Updates returns the number of update events emitted so far.
func (m *Master) Updates() uint64 {
	return m.updates
}

// Tick feeds n input clock cycles into the prescaler.
func (m *Master) Tick(n uint64) {
	if !m.enabled {
		return
	}
	div := uint64(m.tb.Divider) + 1
	total := uint64(m.prescaler) + n
	m.prescaler = uint32(total % div)
	for wraps := m.advance(total / div); wraps > 0; wraps-- {
		m.update()
	}
}

// Set loads the counter directly, as a debugger write to CNT would.
func (m *Master) Set(v uint16) {
	m.cnt = v
}

func (m *Master) update() {
	if m.mode != hal.MasterUpdate {
		return
	}
	m.updates++
	for _, fn := range m.listeners {
		fn()
	}
}

// Slave is a simulated timer clocked by a master's trigger output.
type Slave struct {
	timer
	src      hal.TriggerSource
	mode     hal.SlaveMode
	triggers uint64
}

var _ hal.SlaveTimer = (*Slave)(nil)

// NewSlave returns a stopped slave timer with no trigger lines wired.
func NewSlave(name string, rec *Recorder) *Slave {
	return &Slave{timer: timer{name: name, rec: rec}}
}

// Connect wires master's trigger output to internal trigger line src.
func (s *Slave) Connect(src hal.TriggerSource, m *Master) {
	m.OnUpdate(func() { s.trigger(src) })
}

// ConfigureTrigger selects the internal trigger line.
func (s *Slave) ConfigureTrigger(src hal.TriggerSource) {
	s.rec.record(s.name + ".ConfigureTrigger")
	s.src = src
}

// ConfigureSlaveMode selects the reaction to the trigger input.
func (s *Slave) ConfigureSlaveMode(mode hal.SlaveMode) {
	s.rec.record(s.name + ".ConfigureSlaveMode")
	s.mode = mode
}

// Trigger returns the configured trigger line.
func (s *Slave) Trigger() hal.TriggerSource {
	return s.src
}

// SlaveMode returns the configured slave mode.
func (s *Slave) SlaveMode() hal.SlaveMode {
	return s.mode
}

// Triggers returns the number of trigger edges that clocked the counter.
func (s *Slave) Triggers() uint64 {
	return s.triggers
}

// Set loads the counter directly.
func (s *Slave) Set(v uint16) {
	s.cnt = v
}

func (s *Slave) trigger(src hal.TriggerSource) {
	if !s.enabled || s.mode != hal.SlaveExternalClock1 || src != s.src {
		return
	}
	s.triggers++
	s.step()
}

// Pair is a master/slave pair wired on a trigger line.
type Pair struct {
	Master   *Master
	Slave    *Slave
	Recorder *Recorder
}

// NewPair returns a master and a slave with the master's update event wired
// to the slave's trigger line src.
func NewPair(src hal.TriggerSource) *Pair {
	rec := &Recorder{}
	p := &Pair{
		Master:   NewMaster("master", rec),
		Slave:    NewSlave("slave", rec),
		Recorder: rec,
	}
	p.Slave.Connect(src, p.Master)
	return p
}
