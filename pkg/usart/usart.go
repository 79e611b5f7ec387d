// Package usart drives a synchronous serial transmitter as a blocking byte sink.
package usart

// DefaultBaudRate is the line rate the firmware transmits at.
const DefaultBaudRate = 115200

// WordLength is the number of data bits per frame.
type WordLength uint8

const (
	Word8 WordLength = iota
	Word9
)

// Parity selects the parity bit.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// StopBits selects the number of stop bits.
type StopBits uint8

const (
	Stop1 StopBits = iota
	Stop0_5
	Stop2
	Stop1_5
)

// Mode selects which directions are enabled.
type Mode uint8

const (
	ModeRX Mode = 1 << iota
	ModeTX

	ModeTXRX = ModeTX | ModeRX
)

// Polarity is the idle level of the clock line.
type Polarity uint8

const (
	PolarityLow Polarity = iota
	PolarityHigh
)

// Phase selects which clock edge captures data.
type Phase uint8

const (
	Phase1Edge Phase = iota
	Phase2Edge
)

// SyncClock configures the clock output used in synchronous mode.
type SyncClock struct {
	Enable       bool
	Polarity     Polarity
	Phase        Phase
	LastBitClock bool // emit a clock pulse for the last data bit
}

// Config is the frame configuration. It is set once and never changed.
type Config struct {
	BaudRate   uint32
	WordLength WordLength
	Parity     Parity
	StopBits   StopBits
	Mode       Mode
	Clock      SyncClock
}

// Default returns 115200 8N1, both directions, synchronous clock enabled with
// high polarity, second-edge phase and last-bit clock.
func Default() Config {
	return Config{
		BaudRate:   DefaultBaudRate,
		WordLength: Word8,
		Parity:     ParityNone,
		StopBits:   Stop1,
		Mode:       ModeTXRX,
		Clock: SyncClock{
			Enable:       true,
			Polarity:     PolarityHigh,
			Phase:        Phase2Edge,
			LastBitClock: true,
		},
	}
}

// Port is the USART peripheral as seen by the output adapter.
type Port interface {
	// Disable stops the port so its clock and frame bits may be written.
	Disable()
	ConfigureSyncClock(clk SyncClock)
	Configure(cfg Config)
	Enable()
	// TxEmpty reports the transmit-buffer-empty flag.
	TxEmpty() bool
	// WriteData loads one byte into the data register.
	WriteData(b byte)
}

// Writer is a blocking transmitter. Each byte waits for the transmit buffer to
// drain before it is written, so nothing is dropped and the caller stalls for
// the duration of every byte.
type Writer struct {
	port Port
}

// Setup disables the port, configures the sync clock, then the frame, enables
// the port and returns a Writer on it. The port may already be running when
// Setup is called.
func Setup(port Port, cfg Config) *Writer {
	port.Disable()
	port.ConfigureSyncClock(cfg.Clock)
	port.Configure(cfg)
	port.Enable()
	return NewWriter(port)
}

// NewWriter wraps an already configured port.
func NewWriter(port Port) *Writer {
	return &Writer{port: port}
}

// WriteByte spins on the transmit-empty flag and writes b. It never fails.
func (w *Writer) WriteByte(b byte) error {
	for !w.port.TxEmpty() {
	}
	w.port.WriteData(b)
	return nil
}

// Write sends p one byte at a time.
func (w *Writer) Write(p []byte) (int, error) {
	for _, b := range p {
		w.WriteByte(b)
	}
	return len(p), nil
}

// WriteString sends s one byte at a time.
func (w *Writer) WriteString(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		w.WriteByte(s[i])
	}
	return len(s), nil
}

// BRR returns the baud rate register value for a peripheral clock of pclk Hz
// with 16x oversampling: the 12.4 fixed point divisor pclk/(16*baud), rounded.
func BRR(pclk, baud uint32) uint32 {
	if baud == 0 {
		return 0
	}
	return (pclk + baud/2) / baud
}
