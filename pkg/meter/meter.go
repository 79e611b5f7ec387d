package meter

import (
	"math"
	"sync"
	"time"

	"github.com/itohio/timerchain/pkg/config"
	"github.com/itohio/timerchain/pkg/sample"
)

var _ CounterMeter = (*Meter)(nil)

// GlitchKind classifies an inconsistent step between two consecutive samples.
type GlitchKind int

const (
	// GlitchTorn is a step back by less than one master period: the high half
	// was read just before a master overflow and the low half just after.
	GlitchTorn GlitchKind = iota
	// GlitchBackward is any larger step back.
	GlitchBackward
	// GlitchStall is two consecutive samples with the same count.
	GlitchStall
)

func (k GlitchKind) String() string {
	switch k {
	case GlitchTorn:
		return "torn"
	case GlitchBackward:
		return "backward"
	case GlitchStall:
		return "stall"
	}
	return "unknown"
}

// Glitch marks the sample at Index as inconsistent with the one before it.
type Glitch struct {
	Index int
	Time  time.Time
	Kind  GlitchKind
	Delta int64 // Ticks[Index] - Ticks[Index-1]
}

// CounterMeter processes samples, maintains buffers, and detects glitches.
type CounterMeter interface {
	ProcessSamples(input <-chan sample.Sample)
	Samples() []sample.Sample                                                     // Current samples buffer (FIFO, ordered first to last)
	Rates() []float64                                                             // Tick rate between consecutive samples (n-1 rates for n samples)
	Glitches() []Glitch                                                           // Detected glitches within window
	OnUpdate(func(samples []sample.Sample, rates []float64, glitches []Glitch)) // Register callback for updates
}

// Meter implements CounterMeter.
//
// Samples and rates are FIFO buffers trimmed by timestamp. rates[i] is the
// tick rate from samples[i] to samples[i+1] in counts per host second, so
// there are always len(samples)-1 rates once two samples are buffered.
type Meter struct {
	cfg *config.Config

	samples  []sample.Sample
	rates    []float64
	glitches []Glitch
	total    int // glitches seen since start, including those already out of the window

	mu sync.RWMutex

	callbacks []func(samples []sample.Sample, rates []float64, glitches []Glitch)
	cbMu      sync.RWMutex

	windowDuration time.Duration
	period         uint64
	nominal        float64

	// Set when the input channel closes, prevents further callbacks
	shutdown bool
}

// New creates a new Meter.
func New(cfg *config.Config) *Meter {
	return &Meter{
		cfg:            cfg,
		samples:        make([]sample.Sample, 0),
		rates:          make([]float64, 0),
		glitches:       make([]Glitch, 0),
		callbacks:      make([]func(samples []sample.Sample, rates []float64, glitches []Glitch), 0),
		windowDuration: time.Duration(cfg.Measurement.WindowSeconds * float64(time.Second)),
		period:         cfg.Timer.Period(),
		nominal:        cfg.Timer.TickHz(),
		shutdown:       false,
	}
}

// ProcessSamples consumes the input channel until it closes, then stops
// further callbacks.
func (m *Meter) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		m.processSample(s)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

// processSample adds a sample, trims the window, updates rates and glitches.
func (m *Meter) processSample(s sample.Sample) {
	m.mu.Lock()

	m.samples = append(m.samples, s)
	m.trim(s.Timestamp.Add(-m.windowDuration))

	if n := len(m.samples); n >= 2 {
		prev := m.samples[n-2]
		curr := m.samples[n-1]

		var rate float64
		if dt := curr.Timestamp.Sub(prev.Timestamp).Seconds(); dt > 0 {
			rate = (float64(curr.Ticks) - float64(prev.Ticks)) / dt
		}
		m.rates = append(m.rates, rate)
		if len(m.rates) > n-1 {
			m.rates = m.rates[len(m.rates)-(n-1):]
		}

		if g, ok := m.classify(n-1, prev, curr); ok {
			m.glitches = append(m.glitches, g)
			m.total++
		}
	}

	shouldNotify := !m.shutdown
	m.mu.Unlock()

	if shouldNotify {
		m.notifyCallbacks()
	}
}

// trim removes samples at or before cutoff together with their rates and
// shifts glitch indices.
func (m *Meter) trim(cutoff time.Time) {
	cutoffIndex := 0
	for i, s := range m.samples {
		if s.Timestamp.After(cutoff) {
			cutoffIndex = i
			break
		}
	}
	if cutoffIndex == 0 {
		return
	}

	m.samples = m.samples[cutoffIndex:]
	if cutoffIndex <= len(m.rates) {
		m.rates = m.rates[cutoffIndex:]
	} else {
		m.rates = m.rates[:0]
	}

	valid := m.glitches[:0]
	for _, g := range m.glitches {
		g.Index -= cutoffIndex
		if g.Index > 0 {
			valid = append(valid, g)
		}
	}
	m.glitches = valid
}

// classify checks the step from prev to curr.
func (m *Meter) classify(index int, prev, curr sample.Sample) (Glitch, bool) {
	delta := int64(curr.Ticks) - int64(prev.Ticks)
	g := Glitch{Index: index, Time: curr.Timestamp, Delta: delta}
	switch {
	case delta == 0:
		g.Kind = GlitchStall
	case delta < 0 && uint64(-delta) < m.period:
		g.Kind = GlitchTorn
	case delta < 0:
		g.Kind = GlitchBackward
	default:
		return Glitch{}, false
	}
	return g, true
}

// Rate returns the average tick rate over the window in counts per host
// second, or 0 with fewer than two samples.
func (m *Meter) Rate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.samples) < 2 {
		return 0
	}
	first := m.samples[0]
	last := m.samples[len(m.samples)-1]
	dt := last.Timestamp.Sub(first.Timestamp).Seconds()
	if dt <= 0 {
		return 0
	}
	return (float64(last.Ticks) - float64(first.Ticks)) / dt
}

// Drift returns the relative deviation of the window rate from the nominal
// rate: positive when the MCU clock runs fast against the host clock.
func (m *Meter) Drift() float64 {
	rate := m.Rate()
	if rate == 0 || m.nominal == 0 {
		return 0
	}
	return rate/m.nominal - 1
}

// Drifting reports whether Drift exceeds the configured tolerance.
func (m *Meter) Drifting() bool {
	return math.Abs(m.Drift()) > m.cfg.Measurement.RateTolerance
}

// Samples returns a copy of the current samples buffer.
func (m *Meter) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]sample.Sample, len(m.samples))
	copy(result, m.samples)
	return result
}

// Rates returns a copy of the current rates buffer.
func (m *Meter) Rates() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]float64, len(m.rates))
	copy(result, m.rates)
	return result
}

// Glitches returns a copy of the glitches within the window.
func (m *Meter) Glitches() []Glitch {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Glitch, len(m.glitches))
	copy(result, m.glitches)
	return result
}

// TotalGlitches returns the number of glitches seen since start.
func (m *Meter) TotalGlitches() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// OnUpdate registers a callback function that will be called when samples are updated.
// The callback should copy data quickly and return as fast as possible.
func (m *Meter) OnUpdate(callback func(samples []sample.Sample, rates []float64, glitches []Glitch)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown resets the shutdown flag, allowing callbacks to be sent again.
// This should be called before starting a new measurement chain.
func (m *Meter) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

// notifyCallbacks invokes all registered callbacks with copies of the current data.
func (m *Meter) notifyCallbacks() {
	samples := m.Samples()
	rates := m.Rates()
	glitches := m.Glitches()

	m.cbMu.RLock()
	callbacks := make([]func(samples []sample.Sample, rates []float64, glitches []Glitch), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samples, rates, glitches)
		}
	}
}
