package usart_test

import (
	"io"
	"testing"

	"github.com/itohio/timerchain/pkg/sim"
	"github.com/itohio/timerchain/pkg/usart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ io.Writer     = (*usart.Writer)(nil)
	_ io.ByteWriter = (*usart.Writer)(nil)
)

// gatedPort stays busy for a fixed number of polls per byte and records the
// sequence of flag observations and writes.
type gatedPort struct {
	busyPolls int
	remaining int
	events    []string
	written   []byte
}

func (p *gatedPort) Disable()                           {}
func (p *gatedPort) ConfigureSyncClock(usart.SyncClock) {}
func (p *gatedPort) Configure(usart.Config)             {}
func (p *gatedPort) Enable()                            {}

func (p *gatedPort) TxEmpty() bool {
	if p.remaining > 0 {
		p.remaining--
		p.events = append(p.events, "busy")
		return false
	}
	p.events = append(p.events, "ready")
	return true
}

func (p *gatedPort) WriteData(b byte) {
	p.events = append(p.events, "write")
	p.written = append(p.written, b)
	p.remaining = p.busyPolls
}

func TestDefault(t *testing.T) {
	cfg := usart.Default()

	assert.Equal(t, uint32(115200), cfg.BaudRate)
	assert.Equal(t, usart.Word8, cfg.WordLength)
	assert.Equal(t, usart.ParityNone, cfg.Parity)
	assert.Equal(t, usart.Stop1, cfg.StopBits)
	assert.Equal(t, usart.ModeTXRX, cfg.Mode)
	assert.True(t, cfg.Clock.Enable)
	assert.Equal(t, usart.PolarityHigh, cfg.Clock.Polarity)
	assert.Equal(t, usart.Phase2Edge, cfg.Clock.Phase)
	assert.True(t, cfg.Clock.LastBitClock)
}

func TestSetup_Order(t *testing.T) {
	rec := &sim.Recorder{}
	port := sim.NewUSART(0, rec)

	w := usart.Setup(port, usart.Default())
	require.NotNil(t, w)

	assert.Equal(t, []string{"usart.Disable", "usart.ConfigureSyncClock", "usart.Configure", "usart.Enable"}, rec.Calls())
	assert.Equal(t, usart.Default(), port.Config())
	assert.Equal(t, 0, port.LiveWrites())
}

func TestSetup_PortAlreadyRunning(t *testing.T) {
	rec := &sim.Recorder{}
	port := sim.NewUSART(0, rec)
	// Left enabled by whatever ran before, as the TinyGo runtime does with USART1.
	port.Enable()

	w := usart.Setup(port, usart.Default())

	assert.Equal(t, 0, port.LiveWrites(), "clock and frame bits are written with the port stopped")
	require.NoError(t, w.WriteByte('x'))
	assert.Equal(t, 0, port.Overruns(), "Setup leaves the port enabled")
	assert.Equal(t, []byte("x"), port.Bytes())
}

func TestWriteByte_WaitsForReady(t *testing.T) {
	port := &gatedPort{busyPolls: 3}
	w := usart.NewWriter(port)

	require.NoError(t, w.WriteByte('a'))
	assert.Equal(t, []string{"ready", "write"}, port.events)

	require.NoError(t, w.WriteByte('b'))
	assert.Equal(t, []string{
		"ready", "write",
		"busy", "busy", "busy", "ready", "write",
	}, port.events)
	assert.Equal(t, []byte("ab"), port.written)
}

func TestWriteByte_OneBytePerCall(t *testing.T) {
	port := sim.NewUSART(5, nil)
	port.Enable()
	w := usart.NewWriter(port)

	for i, b := range []byte("xyz") {
		require.NoError(t, w.WriteByte(b))
		assert.Len(t, port.Bytes(), i+1)
	}
	assert.Equal(t, []byte("xyz"), port.Bytes())
	assert.Equal(t, 0, port.Overruns())
	// First byte finds the line idle, each later byte polls through the busy window.
	assert.Equal(t, 1+2*(5+1), port.Polls())
}

func TestWrite(t *testing.T) {
	port := sim.NewUSART(2, nil)
	port.Enable()
	w := usart.NewWriter(port)

	n, err := w.Write([]byte("Count Value: 0x00000000\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Equal(t, "Count Value: 0x00000000\r\n", string(port.Bytes()))
	assert.Equal(t, 0, port.Overruns())

	n, err = w.WriteString("ok")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Count Value: 0x00000000\r\nok", string(port.Bytes()))
}

func TestWrite_Empty(t *testing.T) {
	port := &gatedPort{}
	w := usart.NewWriter(port)

	n, err := w.Write(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, port.events)
}

func TestBRR(t *testing.T) {
	tests := []struct {
		name string
		pclk uint32
		baud uint32
		want uint32
	}{
		{"72MHz 115200", 72_000_000, 115200, 625},
		{"36MHz 115200", 36_000_000, 115200, 313},
		{"8MHz 9600", 8_000_000, 9600, 833},
		{"zero baud", 72_000_000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usart.BRR(tt.pclk, tt.baud))
		})
	}
}
