package main

import (
	"fmt"
	"strings"

	"github.com/itohio/timerchain/pkg/meter"
)

// statusText summarizes the meter for the toolbar: rate, drift against the
// configured timer clock, and glitch count. A nil meter means not connected.
func statusText(m *meter.Meter) string {
	if m == nil {
		return "disconnected"
	}

	samples := m.Samples()
	if len(samples) == 0 {
		return "waiting for data"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "0x%08x  %.0f ticks/s  drift %+.3f%%", samples[len(samples)-1].Value, m.Rate(), m.Drift()*100)
	if m.Drifting() {
		b.WriteString(" (!)")
	}
	if n := m.TotalGlitches(); n > 0 {
		fmt.Fprintf(&b, "  glitches %d", n)
	}
	return b.String()
}
