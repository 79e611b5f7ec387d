package monitor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/itohio/timerchain/pkg/chain"
	"github.com/itohio/timerchain/pkg/config"
	"github.com/itohio/timerchain/pkg/hal"
	"github.com/itohio/timerchain/pkg/report"
	"github.com/itohio/timerchain/pkg/sim"
	"github.com/itohio/timerchain/pkg/usart"
)

// Mock runs the firmware's counter and output path against simulated
// peripherals and feeds the transmitted lines back through the parser.
type Mock struct {
	cfg *config.Config

	samples   chan RawSample
	done      chan struct{}
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	// Simulation state, owned by the generator goroutine after Connect.
	pair    *sim.Pair
	counter *chain.Counter
	port    *sim.USART
	out     *usart.Writer
	buf     []byte
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.Config) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:       cfg,
		samples:   make(chan RawSample, DefaultBufferSize),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		connected: false,
	}
}

// Connect initializes the simulated peripherals and starts generating samples.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.setup()
	m.connected = true

	go m.generateSamples()

	return nil
}

// setup brings up the simulated board the same way the firmware does.
func (m *Mock) setup() {
	m.port = sim.NewUSART(1, nil)
	m.out = usart.Setup(m.port, usart.Default())

	m.pair = sim.NewPair(hal.ITR1)
	m.counter = chain.Init(m.pair.Master, m.pair.Slave, chain.Config{
		MasterDivider: m.cfg.Timer.Divider,
		MasterCeiling: m.cfg.Timer.Ceiling,
		Trigger:       hal.ITR1,
	})
	m.pair.Slave.Set(uint16(m.cfg.Mock.StartValue >> 16))
	m.pair.Master.Set(uint16(m.cfg.Mock.StartValue))
	m.buf = make([]byte, 0, report.LineLen)
}

// Close stops the generator and closes the samples channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}

	m.cancel()
	m.connected = false
	m.mu.Unlock()

	<-m.done
	return nil
}

// Samples returns the channel for reading samples.
func (m *Mock) Samples() <-chan RawSample {
	return m.samples
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// ticksPerSample returns the timer input clocks that elapse between lines.
func (m *Mock) ticksPerSample() uint64 {
	if m.cfg.Mock.TicksPerSample > 0 {
		return m.cfg.Mock.TicksPerSample
	}
	return uint64(m.cfg.Timer.ClockHz * m.cfg.Mock.SampleRate.Seconds())
}

// generateSamples ticks the simulation on every SampleRate period.
func (m *Mock) generateSamples() {
	defer close(m.done)
	defer close(m.samples)

	ticker := time.NewTicker(m.cfg.Mock.SampleRate)
	defer ticker.Stop()

	ticks := m.ticksPerSample()
	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.pair.Master.Tick(ticks)
			for _, value := range m.transmit() {
				select {
				case m.samples <- RawSample{Timestamp: now, Value: value}:
				case <-m.ctx.Done():
					return
				default:
					// Channel full, skip
				}
			}
		}
	}
}

// transmit runs one loop iteration of the firmware and parses what came out
// of the simulated USART.
func (m *Mock) transmit() []uint32 {
	var err error
	m.buf, err = report.Step(m.counter, m.out, m.buf)
	if err != nil {
		log.Printf("Mock transmit failed: %v", err)
	}

	var values []uint32
	scanner := bufio.NewScanner(bytes.NewReader(m.port.Drain()))
	for scanner.Scan() {
		value, err := report.Parse(scanner.Text())
		if err != nil {
			log.Printf("Mock produced unparsable line %q: %v", scanner.Text(), err)
			continue
		}
		values = append(values, value)
	}
	return values
}
