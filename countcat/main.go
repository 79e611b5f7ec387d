package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	tty "github.com/mattn/go-tty"

	"github.com/itohio/timerchain/pkg/config"
	"github.com/itohio/timerchain/pkg/meter"
	"github.com/itohio/timerchain/pkg/monitor"
	"github.com/itohio/timerchain/pkg/sample"
)

func main() {
	var (
		portFlag    = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag    = flag.Bool("mock", false, "Use the simulated counter instead of a serial port")
		backendFlag = flag.String("backend", "", "Serial backend override (bugst or tarm)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *backendFlag != "" {
		cfg.Serial.Backend = *backendFlag
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid -backend: %v", err)
		}
	}

	var device monitor.Device
	if *mockFlag {
		device = monitor.NewMock(cfg)
	} else {
		device = monitor.New(cfg.Serial, monitor.DefaultBufferSize)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	go waitForQuit(cancel)

	if err := run(ctx, cfg, device, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// waitForQuit cancels when q or Q is pressed on the controlling terminal.
// Without a terminal it returns and only an interrupt stops the program.
func waitForQuit(cancel context.CancelFunc) {
	t, err := tty.Open()
	if err != nil {
		log.Printf("No terminal, press Ctrl+C to quit: %v", err)
		return
	}
	defer t.Close()

	for {
		r, err := t.ReadRune()
		if err != nil {
			log.Printf("Terminal read failed: %v", err)
			return
		}
		if r == 'q' || r == 'Q' {
			cancel()
			return
		}
	}
}

// run streams counter values from device to out until ctx is done or the
// device stops sending.
func run(ctx context.Context, cfg *config.Config, device monitor.Device, out io.Writer) error {
	if err := device.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	m := meter.New(cfg)
	printer := &linePrinter{out: out}
	m.OnUpdate(printer.update)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.ProcessSamples(sample.NewConverter(cfg, monitor.DefaultBufferSize)(device.Samples()))
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}

	if err := device.Close(); err != nil {
		return fmt.Errorf("failed to close: %w", err)
	}
	<-done

	if n := m.TotalGlitches(); n > 0 {
		fmt.Fprintf(out, "%d glitches\n", n)
	}
	return nil
}

// linePrinter writes one line per received sample. The meter calls it from
// a single goroutine.
type linePrinter struct {
	out io.Writer
}

func (p *linePrinter) update(samples []sample.Sample, rates []float64, glitches []meter.Glitch) {
	if len(samples) == 0 {
		return
	}
	s := samples[len(samples)-1]

	var rate float64
	if len(rates) > 0 {
		rate = rates[len(rates)-1]
	}

	mark := ""
	if n := len(glitches); n > 0 && glitches[n-1].Index == len(samples)-1 {
		mark = "  " + glitches[n-1].Kind.String()
	}

	fmt.Fprintf(p.out, "0x%08x  %12.6fs  %12.0f/s%s\n", s.Value, s.Elapsed, rate, mark)
}
