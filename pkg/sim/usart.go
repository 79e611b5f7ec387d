package sim

import (
	"sync"

	"github.com/itohio/timerchain/pkg/usart"
)

// USART is a simulated transmitter. After each byte the transmit-empty flag
// stays clear for Latency polls.
type USART struct {
	Latency int

	mu       sync.Mutex
	cfg      usart.Config
	clk      usart.SyncClock
	enabled  bool
	busy     int
	polls    int
	overruns int
	live     int
	data     []byte
	rec      *Recorder
}

var _ usart.Port = (*USART)(nil)

// NewUSART returns a disabled port with the given busy latency.
func NewUSART(latency int, rec *Recorder) *USART {
	return &USART{Latency: latency, rec: rec}
}

func (u *USART) Disable() {
	u.rec.record("usart.Disable")
	u.mu.Lock()
	u.enabled = false
	u.mu.Unlock()
}

func (u *USART) ConfigureSyncClock(clk usart.SyncClock) {
	u.rec.record("usart.ConfigureSyncClock")
	u.mu.Lock()
	if u.enabled {
		u.live++
	}
	u.clk = clk
	u.mu.Unlock()
}

func (u *USART) Configure(cfg usart.Config) {
	u.rec.record("usart.Configure")
	u.mu.Lock()
	if u.enabled {
		u.live++
	}
	u.cfg = cfg
	u.mu.Unlock()
}

func (u *USART) Enable() {
	u.rec.record("usart.Enable")
	u.mu.Lock()
	u.enabled = true
	u.mu.Unlock()
}

// TxEmpty reports ready once the busy countdown of the last byte has elapsed.
func (u *USART) TxEmpty() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.polls++
	if u.busy > 0 {
		u.busy--
		return false
	}
	return true
}

// WriteData stores b. A write while busy is counted as an overrun; the byte
// is still stored so tests can see what was sent.
func (u *USART) WriteData(b byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.busy > 0 || !u.enabled {
		u.overruns++
	}
	u.data = append(u.data, b)
	u.busy = u.Latency
}

// Config returns the frame configuration last written.
func (u *USART) Config() usart.Config {
	u.mu.Lock()
	defer u.mu.Unlock()
	cfg := u.cfg
	cfg.Clock = u.clk
	return cfg
}

// Bytes returns a copy of everything transmitted.
func (u *USART) Bytes() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]byte, len(u.data))
	copy(out, u.data)
	return out
}

// Drain returns everything transmitted since the last Drain and clears it.
func (u *USART) Drain() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := u.data
	u.data = nil
	return out
}

// Polls returns the number of TxEmpty calls.
func (u *USART) Polls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.polls
}

// LiveWrites returns the number of configuration writes made while enabled.
func (u *USART) LiveWrites() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.live
}

// Overruns returns the number of writes made while busy or disabled.
func (u *USART) Overruns() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.overruns
}
