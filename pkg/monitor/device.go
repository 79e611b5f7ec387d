package monitor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/itohio/timerchain/pkg/config"
	"github.com/itohio/timerchain/pkg/report"
)

const (
	// DefaultBaudRate is the firmware line rate.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the samples channel buffer.
	DefaultBufferSize = 100

	// maxLineLen bounds one received line. Longer runs without a newline are
	// noise, e.g. a baud rate mismatch, and are dropped up to the next newline.
	maxLineLen = 256
)

// RawSample is one counter line received from the MCU, stamped on arrival.
type RawSample struct {
	Timestamp time.Time
	Value     uint32
}

// Serial represents a connection to the counter firmware.
type Serial struct {
	cfg     config.SerialConfig
	bufSize int
	open    func(config.SerialConfig) (io.ReadWriteCloser, error)
	now     func() time.Time

	conn      io.ReadWriteCloser
	samples   chan RawSample
	done      chan struct{}
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a new Serial device for the given port settings and buffer size.
func New(cfg config.SerialConfig, bufSize int) *Serial {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Backend == "" {
		cfg.Backend = config.BackendBugst
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		cfg:       cfg,
		bufSize:   bufSize,
		open:      openPort,
		now:       time.Now,
		samples:   make(chan RawSample, bufSize),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		connected: false,
	}
}

// Connect opens the serial port and starts reading samples.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	port, err := d.open(d.cfg)
	if err != nil {
		return err
	}

	d.conn = port
	d.connected = true

	go d.readSamples(port)

	return nil
}

// Close closes the port, waits for the reader to stop and closes the samples
// channel.
func (d *Serial) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}
	d.connected = false
	d.mu.Unlock()

	<-d.done
	return nil
}

// Samples returns the channel for reading samples.
func (d *Serial) Samples() <-chan RawSample {
	return d.samples
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readSamples reads CRLF terminated lines and parses them into RawSample.
// It owns the samples channel and closes it on exit.
func (d *Serial) readSamples(r io.Reader) {
	defer close(d.done)
	defer close(d.samples)
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Panic in readSamples: %v", rec)
		}
	}()

	lines := &lineSplitter{}
	scanner := bufio.NewScanner(r)
	scanner.Split(lines.split)
	for scanner.Scan() {
		if d.ctx.Err() != nil {
			return
		}

		line := scanner.Text()
		if line == "" || line == "\r" {
			continue
		}

		value, err := report.Parse(line)
		if err != nil {
			log.Printf("Failed to parse line %q: %v", line, err)
			continue
		}

		// Send sample to channel (non-blocking)
		select {
		case d.samples <- RawSample{Timestamp: d.now(), Value: value}:
		case <-d.ctx.Done():
			return
		default:
			log.Printf("Samples channel full, dropping sample")
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF && d.ctx.Err() == nil {
		log.Printf("Error reading from serial port: %v", err)
	}
}

// lineSplitter is a bufio.SplitFunc source like bufio.ScanLines, except that a
// line exceeding maxLineLen is discarded instead of stopping the scanner with
// bufio.ErrTooLong.
type lineSplitter struct {
	discarding bool
}

func (s *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		if s.discarding {
			s.discarding = false
			return i + 1, nil, nil
		}
		return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
	}
	if s.discarding {
		return len(data), nil, nil
	}
	if len(data) >= maxLineLen {
		log.Printf("Discarding over-long line (%d bytes without newline)", len(data))
		s.discarding = true
		return len(data), nil, nil
	}
	if atEOF && len(data) > 0 {
		return len(data), bytes.TrimSuffix(data, []byte{'\r'}), nil
	}
	return 0, nil, nil
}
