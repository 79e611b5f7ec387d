package sample

import (
	"testing"
	"time"

	"github.com/itohio/timerchain/pkg/config"
	"github.com/itohio/timerchain/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapper(t *testing.T) {
	tests := []struct {
		name   string
		values []uint32
		want   []uint64
	}{
		{
			name:   "monotonic",
			values: []uint32{0, 10, 0x10000, 0xFFFFFFFF},
			want:   []uint64{0, 10, 0x10000, 0xFFFFFFFF},
		},
		{
			name:   "single wrap",
			values: []uint32{0xFFFFFF00, 0x00000100},
			want:   []uint64{0xFFFFFF00, 0x1_00000100},
		},
		{
			name:   "two wraps",
			values: []uint32{0xF0000000, 0x10000000, 0x90000000, 0xF0000000, 0x00000001},
			want:   []uint64{0xF0000000, 0x1_10000000, 0x1_90000000, 0x1_F0000000, 0x2_00000001},
		},
		{
			name:   "small backwards step is not a wrap",
			values: []uint32{0x00020005, 0x00010006},
			want:   []uint64{0x00020005, 0x00010006},
		},
		{
			name:   "first value high",
			values: []uint32{0xFFFFFFFF},
			want:   []uint64{0xFFFFFFFF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var u Unwrapper
			got := make([]uint64, 0, len(tt.values))
			for _, v := range tt.values {
				got = append(got, u.Next(v))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToTicks(t *testing.T) {
	tests := []struct {
		name     string
		composed uint64
		period   uint64
		want     uint64
	}{
		{"full period is identity", 0x0003_0005, 0x10000, 0x0003_0005},
		{"short period", 0x0003_0005, 1000, 3005},
		{"across a 32-bit wrap", 0x1_0000_0000, 0x10000, 0x1_0000_0000},
		{"zero", 0, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toTicks(tt.composed, tt.period))
		})
	}
}

func TestConvertSample(t *testing.T) {
	now := time.Now()
	tc := config.Default().Timer // 72MHz / 256 = 281250 counts/s

	got := convertSample(monitor.RawSample{Timestamp: now, Value: 281250}, 281250, tc)
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, uint32(281250), got.Value)
	assert.Equal(t, uint64(281250), got.Ticks)
	assert.InDelta(t, 1.0, got.Elapsed, 1e-12)

	tc = config.TimerConfig{ClockHz: 1000, Divider: 0, Ceiling: 999}
	got = convertSample(monitor.RawSample{Timestamp: now, Value: 0x0002_01F4}, 0x0002_01F4, tc)
	assert.Equal(t, uint64(2500), got.Ticks)
	assert.InDelta(t, 2.5, got.Elapsed, 1e-12)
}

func TestNewConverter_ChannelProcessing(t *testing.T) {
	cfg := config.Default()
	converter := NewConverter(cfg, 10)

	in := make(chan monitor.RawSample, 5)
	out := converter(in)

	now := time.Now()
	values := []uint32{0xFFFF0000, 0xFFFFFFFF, 0x0000FFFF}
	for i, v := range values {
		in <- monitor.RawSample{Timestamp: now.Add(time.Duration(i) * time.Second), Value: v}
	}
	close(in)

	var samples []Sample
	for s := range out {
		samples = append(samples, s)
	}

	require.Len(t, samples, 3)
	for i, s := range samples {
		assert.Equal(t, now.Add(time.Duration(i)*time.Second), s.Timestamp)
		assert.Equal(t, values[i], s.Value)
	}
	assert.Equal(t, uint64(0xFFFF0000), samples[0].Ticks)
	assert.Equal(t, uint64(0x1_0000FFFF), samples[2].Ticks, "converter keeps counting across the 32-bit wrap")
	assert.Greater(t, samples[2].Elapsed, samples[1].Elapsed)
}

func TestNewConverter_EmptyChannel(t *testing.T) {
	converter := NewConverter(config.Default(), 10)

	in := make(chan monitor.RawSample)
	out := converter(in)

	close(in)

	_, ok := <-out
	assert.False(t, ok, "Output channel should be closed")
}

func TestNewConverter_GracefulShutdown(t *testing.T) {
	converter := NewConverter(config.Default(), 10)
	input := make(chan monitor.RawSample, 10)
	output := converter(input)

	received := make(chan int, 1)
	go func() {
		count := 0
		for range output {
			count++
		}
		received <- count
	}()

	for i := 0; i < 3; i++ {
		input <- monitor.RawSample{Timestamp: time.Now(), Value: uint32(i)}
	}
	close(input)

	select {
	case count := <-received:
		assert.Equal(t, 3, count, "Should receive all samples before channel closes")
	case <-time.After(2 * time.Second):
		t.Fatal("Output channel did not close within timeout")
	}
}
