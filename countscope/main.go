package main

import (
	"flag"
	"fmt"
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/timerchain/pkg/config"
	"github.com/itohio/timerchain/pkg/meter"
	"github.com/itohio/timerchain/pkg/monitor"
	"github.com/itohio/timerchain/pkg/sample"
	"github.com/itohio/timerchain/pkg/scope"
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

	application := app.NewWithID("com.itohio.timerchain")

	window := application.NewWindow("Timer Chain Scope")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		window:     window,
		useMock:    *mockFlag,
		throttle:   newUpdateThrottle(updateInterval),
	}

	toolbar := createToolbar(state)

	state.scopeWidget = scope.New(cfg)

	content := container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		state.scopeWidget,
	)

	window.SetContent(content)
	window.ShowAndRun()

	closeMeasurementChain(state.chain)
}

// measurementChain tracks the components of the measurement chain for graceful shutdown.
type measurementChain struct {
	device         monitor.Device
	samplesStream  <-chan sample.Sample
	meterGoroutine chan struct{} // Closed when meter goroutine exits
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	device      monitor.Device
	meter       *meter.Meter
	scopeWidget *scope.ScopeWidget
	window      fyne.Window
	connectBtn  *widget.Button
	statusLabel *widget.Label
	useMock     bool
	chain       *measurementChain // Current measurement chain (nil if not connected)
	throttle    *updateThrottle
}

// createToolbar creates the application toolbar with Connect and Settings
// buttons and the counter status on the right.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.statusLabel = widget.NewLabel(statusText(nil))

	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(connectBtn, settingsBtn), // left
		state.statusLabel,                          // right
		nil,                                        // center (spacer)
	)
}

// newMeter creates a meter for the current configuration and routes its
// updates to the scope and status label on the main thread.
func newMeter(state *appState) *meter.Meter {
	m := meter.New(state.cfg)
	m.OnUpdate(func(samples []sample.Sample, rates []float64, glitches []meter.Glitch) {
		if !state.throttle.Allow() {
			return
		}
		status := statusText(m)
		UpdateWidgetOnMainThread(func() {
			state.scopeWidget.UpdateData(samples, rates, glitches)
			state.statusLabel.SetText(status)
		})
	})
	return m
}

// closeMeasurementChain gracefully closes the measurement chain.
// Waits for all goroutines to finish and channels to drain.
func closeMeasurementChain(chain *measurementChain) {
	if chain == nil {
		return
	}

	// Closing the device closes its samples channel, which drains the
	// converter and ends the meter goroutine.
	if chain.device != nil {
		chain.device.Close()
	}

	if chain.meterGoroutine != nil {
		<-chain.meterGoroutine
	}
}

// disconnect tears down the current chain, if any.
func disconnect(state *appState) {
	closeMeasurementChain(state.chain)
	state.chain = nil
	state.device = nil
	state.connectBtn.SetIcon(theme.LoginIcon())
	if state.useMock {
		log.Println("Disconnected from simulated counter")
	} else {
		log.Println("Disconnected from serial port")
	}
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil && state.device.IsConnected() {
		disconnect(state)
		return
	}

	var device monitor.Device
	if state.useMock {
		device = monitor.NewMock(state.cfg)
	} else {
		device = monitor.New(state.cfg.Serial, monitor.DefaultBufferSize)
	}

	if err := device.Connect(); err != nil {
		if state.useMock {
			dialog.ShowError(fmt.Errorf("failed to start simulated counter: %w", err), state.window)
		} else {
			dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		}
		return
	}
	state.device = device
	state.connectBtn.SetIcon(theme.LogoutIcon())
	if state.useMock {
		log.Println("Connected to simulated counter")
	} else {
		log.Printf("Connected to %s (%s backend)", state.cfg.Serial.Port, state.cfg.Serial.Backend)
	}

	// A fresh meter per chain: the converter restarts its unwrapping, so
	// samples from an earlier connection would read as a backward step.
	state.meter = newMeter(state)
	state.scopeWidget.Clear()

	samplesStream := sample.NewConverter(state.cfg, 500)(device.Samples())

	meterDone := make(chan struct{})
	m := state.meter
	go func() {
		defer close(meterDone)
		m.ProcessSamples(samplesStream)
	}()

	state.chain = &measurementChain{
		device:         device,
		samplesStream:  samplesStream,
		meterGoroutine: meterDone,
	}
}
