package sample

import (
	"log"
	"time"

	"github.com/itohio/timerchain/pkg/config"
	"github.com/itohio/timerchain/pkg/monitor"
)

// Sample is a counter reading placed on a continuous time axis.
type Sample struct {
	Timestamp time.Time // Host receive time
	Value     uint32    // Raw 32-bit counter value as transmitted
	Ticks     uint64    // Master counts since the counter last read zero, across 32-bit wraps
	Elapsed   float64   // Ticks converted to seconds of timer time
}

// Converter is a function type that converts RawSample channel to Sample channel.
type Converter func(in <-chan monitor.RawSample) <-chan Sample

// NewConverter creates a converter function that transforms RawSample to Sample.
func NewConverter(cfg *config.Config, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan monitor.RawSample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			var u Unwrapper
			for raw := range in {
				sample := convertSample(raw, u.Next(raw.Value), cfg.Timer)

				select {
				case out <- sample:
				case <-time.After(time.Second):
					log.Printf("Converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// Unwrapper extends a wrapping 32-bit counter to 64 bits.
//
// A decrease of more than half the range is taken as a 2^32 wrap. Smaller
// decreases are left alone: they are read glitches, not wraps, and the
// meter reports them.
type Unwrapper struct {
	started bool
	prev    uint32
	epoch   uint64
}

// Next returns v extended with the number of wraps seen so far.
func (u *Unwrapper) Next(v uint32) uint64 {
	if u.started && v < u.prev && u.prev-v > 1<<31 {
		u.epoch++
	}
	u.started = true
	u.prev = v
	return u.epoch<<32 | uint64(v)
}

// convertSample turns a composed value into master counts and seconds. The
// high half counts master periods of Ceiling+1 counts each, so the composed
// value is only the tick count itself when Ceiling is 0xFFFF.
func convertSample(raw monitor.RawSample, unwrapped uint64, tc config.TimerConfig) Sample {
	ticks := toTicks(unwrapped, tc.Period())
	return Sample{
		Timestamp: raw.Timestamp,
		Value:     raw.Value,
		Ticks:     ticks,
		Elapsed:   ticksToSeconds(ticks, tc),
	}
}

// toTicks converts a composed (high<<16 | low) value to master counts.
func toTicks(composed uint64, period uint64) uint64 {
	high := composed >> 16
	low := composed & 0xFFFF
	return high*period + low
}

// ticksToSeconds converts master counts to seconds.
func ticksToSeconds(ticks uint64, tc config.TimerConfig) float64 {
	return float64(ticks) / tc.TickHz()
}
