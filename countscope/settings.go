package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/timerchain/pkg/config"
	"github.com/itohio/timerchain/pkg/monitor"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createTimerTab(state),
		createMeasurementTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 400))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 400))
	d.Show()
}

// saveConfig validates and writes the configuration, reporting errors in a dialog.
func saveConfig(state *appState) bool {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(err, state.window)
		return false
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return false
	}
	return true
}

// reconnect restarts a running chain so new settings take effect.
func reconnect(state *appState) {
	if state.chain == nil {
		return
	}
	disconnect(state)
	handleConnect(state)
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := monitor.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	backendSelect := widget.NewSelect([]string{config.BackendBugst, config.BackendTarm}, nil)
	backendSelect.SetSelected(state.cfg.Serial.Backend)

	timeoutEntry := widget.NewEntry()
	timeoutEntry.SetText(state.cfg.Serial.ReadTimeout.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
			{Text: "Backend", Widget: backendSelect},
			{Text: "Read Timeout (tarm)", Widget: timeoutEntry},
		},
		OnSubmit: func() {
			prev := state.cfg.Serial

			if portSelect.Selected != "" {
				selected := portMap[portSelect.Selected]
				if selected == "" {
					selected = portSelect.Selected
				}
				state.cfg.Serial.Port = selected
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 {
				state.cfg.Serial.BaudRate = baud
			}
			if backendSelect.Selected != "" {
				state.cfg.Serial.Backend = backendSelect.Selected
			}
			if rt, err := time.ParseDuration(timeoutEntry.Text); err == nil {
				state.cfg.Serial.ReadTimeout = rt
			}

			if !saveConfig(state) {
				state.cfg.Serial = prev
				return
			}
			if prev != state.cfg.Serial && !state.useMock {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createTimerTab creates the Timer configuration tab. These values must match
// the firmware build.
func createTimerTab(state *appState) *container.TabItem {
	clockEntry := widget.NewEntry()
	clockEntry.SetText(strconv.FormatFloat(state.cfg.Timer.ClockHz, 'f', 0, 64))

	dividerEntry := widget.NewEntry()
	dividerEntry.SetText(strconv.Itoa(int(state.cfg.Timer.Divider)))

	ceilingEntry := widget.NewEntry()
	ceilingEntry.SetText(strconv.Itoa(int(state.cfg.Timer.Ceiling)))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Timer Clock (Hz)", Widget: clockEntry},
			{Text: "Master Divider", Widget: dividerEntry},
			{Text: "Master Ceiling", Widget: ceilingEntry},
		},
		OnSubmit: func() {
			prev := state.cfg.Timer
			if hz, err := strconv.ParseFloat(clockEntry.Text, 64); err == nil {
				state.cfg.Timer.ClockHz = hz
			}
			if div, err := strconv.ParseUint(dividerEntry.Text, 0, 16); err == nil {
				state.cfg.Timer.Divider = uint16(div)
			}
			if ceil, err := strconv.ParseUint(ceilingEntry.Text, 0, 16); err == nil && ceil > 0 {
				state.cfg.Timer.Ceiling = uint16(ceil)
			}
			if !saveConfig(state) {
				state.cfg.Timer = prev
				return
			}
			if prev != state.cfg.Timer {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Timer", form)
}

// createMeasurementTab creates the Measurement configuration tab.
func createMeasurementTab(state *appState) *container.TabItem {
	windowSecondsEntry := widget.NewEntry()
	windowSecondsEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Measurement.WindowSeconds))

	toleranceEntry := widget.NewEntry()
	toleranceEntry.SetText(fmt.Sprintf("%.4f", state.cfg.Measurement.RateTolerance))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window (seconds)", Widget: windowSecondsEntry},
			{Text: "Rate Tolerance (relative)", Widget: toleranceEntry},
		},
		OnSubmit: func() {
			prev := state.cfg.Measurement
			if ws, err := strconv.ParseFloat(windowSecondsEntry.Text, 64); err == nil && ws > 0 {
				state.cfg.Measurement.WindowSeconds = ws
			}
			if tol, err := strconv.ParseFloat(toleranceEntry.Text, 64); err == nil {
				state.cfg.Measurement.RateTolerance = tol
			}
			if !saveConfig(state) {
				state.cfg.Measurement = prev
				return
			}
			// The meter reads the window when it is created.
			if prev != state.cfg.Measurement {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Measurement", form)
}

// createMockTab creates the simulated counter configuration tab.
func createMockTab(state *appState) *container.TabItem {
	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(state.cfg.Mock.SampleRate.String())

	ticksEntry := widget.NewEntry()
	ticksEntry.SetText(strconv.FormatUint(state.cfg.Mock.TicksPerSample, 10))

	startEntry := widget.NewEntry()
	startEntry.SetText(fmt.Sprintf("0x%08x", state.cfg.Mock.StartValue))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Sample Rate", Widget: sampleRateEntry},
			{Text: "Clocks per Sample (0=real time)", Widget: ticksEntry},
			{Text: "Start Value", Widget: startEntry},
		},
		OnSubmit: func() {
			prev := state.cfg.Mock
			if sr, err := time.ParseDuration(sampleRateEntry.Text); err == nil && sr > 0 {
				state.cfg.Mock.SampleRate = sr
			}
			if tps, err := strconv.ParseUint(ticksEntry.Text, 0, 64); err == nil {
				state.cfg.Mock.TicksPerSample = tps
			}
			if sv, err := strconv.ParseUint(startEntry.Text, 0, 32); err == nil {
				state.cfg.Mock.StartValue = uint32(sv)
			}
			if !saveConfig(state) {
				state.cfg.Mock = prev
				return
			}
			if prev != state.cfg.Mock && state.useMock {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Mock", form)
}
