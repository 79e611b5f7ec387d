package monitor

import (
	"fmt"
	"io"

	"github.com/itohio/timerchain/pkg/config"
	tarm "github.com/tarm/serial"
	"go.bug.st/serial"
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// openPort opens the configured port with the selected backend. The firmware
// line is 8N1 at the configured baud rate.
func openPort(cfg config.SerialConfig) (io.ReadWriteCloser, error) {
	switch cfg.Backend {
	case config.BackendTarm:
		port, err := tarm.OpenPort(&tarm.Config{
			Name:        cfg.Port,
			Baud:        cfg.BaudRate,
			ReadTimeout: cfg.ReadTimeout,
			Size:        8,
			Parity:      tarm.ParityNone,
			StopBits:    tarm.Stop1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
		}
		return port, nil
	case config.BackendBugst, "":
		port, err := serial.Open(cfg.Port, &serial.Mode{
			BaudRate: cfg.BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
		}
		return port, nil
	default:
		return nil, fmt.Errorf("unknown serial backend %q", cfg.Backend)
	}
}
