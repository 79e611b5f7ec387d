package monitor

import (
	"testing"
	"time"

	"github.com/itohio/timerchain/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockConfig() *config.Config {
	cfg := config.Default()
	cfg.Timer.Divider = 0
	cfg.Mock.SampleRate = 5 * time.Millisecond
	cfg.Mock.TicksPerSample = 0x4000
	return cfg
}

func TestNewMock(t *testing.T) {
	cfg := mockConfig()
	dev := NewMock(cfg)
	assert.NotNil(t, dev)
	assert.Equal(t, cfg, dev.cfg)
	assert.NotNil(t, dev.samples)
	assert.False(t, dev.IsConnected())
}

func TestNewMock_NilConfig(t *testing.T) {
	dev := NewMock(nil)
	require.NotNil(t, dev.cfg)
	assert.Equal(t, config.Default(), dev.cfg)
}

func TestMock_TicksPerSample(t *testing.T) {
	dev := NewMock(nil)
	// 72MHz for 20ms
	assert.Equal(t, uint64(1440000), dev.ticksPerSample())

	dev.cfg.Mock.TicksPerSample = 42
	assert.Equal(t, uint64(42), dev.ticksPerSample())
}

func TestMock_TransmitRunsFirmwarePath(t *testing.T) {
	cfg := mockConfig()
	cfg.Mock.StartValue = 0x0001FFF0
	dev := NewMock(cfg)
	dev.setup()

	assert.Equal(t, []uint32{0x0001FFF0}, dev.transmit())

	dev.pair.Master.Tick(0x10)
	assert.Equal(t, []uint32{0x00020000}, dev.transmit(), "master wrap carries into the slave")
	assert.Equal(t, 0, dev.port.Overruns())
}

func TestMock_StreamsIncreasingValues(t *testing.T) {
	dev := NewMock(mockConfig())
	require.NoError(t, dev.Connect())
	defer dev.Close()

	var values []uint32
	timeout := time.After(2 * time.Second)
	for len(values) < 5 {
		select {
		case s := <-dev.Samples():
			values = append(values, s.Value)
		case <-timeout:
			t.Fatalf("received only %d samples", len(values))
		}
	}

	for i := 1; i < len(values); i++ {
		assert.Equal(t, uint32(0x4000), values[i]-values[i-1], "sample %d", i)
	}
}

func TestMock_WrapsAt32Bits(t *testing.T) {
	cfg := mockConfig()
	cfg.Mock.StartValue = 0xFFFFC000
	dev := NewMock(cfg)
	dev.setup()

	assert.Equal(t, []uint32{0xFFFFC000}, dev.transmit())
	dev.pair.Master.Tick(0x4000)
	assert.Equal(t, []uint32{0x00000000}, dev.transmit())
}

func TestMock_GracefulShutdown(t *testing.T) {
	dev := NewMock(mockConfig())
	require.NoError(t, dev.Connect())

	samples := dev.Samples()

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range samples {
			received++
			if received == 3 {
				dev.Close()
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Samples channel did not close within timeout")
	}

	assert.GreaterOrEqual(t, received, 3)
	_, ok := <-samples
	assert.False(t, ok, "Channel should be closed")
}

func TestMock_Connect_AlreadyConnected(t *testing.T) {
	dev := NewMock(mockConfig())

	require.NoError(t, dev.Connect())
	defer dev.Close()

	err := dev.Connect()
	assert.ErrorContains(t, err, "already connected")
}

func TestMock_Close_NotConnected(t *testing.T) {
	dev := NewMock(nil)
	assert.NoError(t, dev.Close())
}

func TestMock_Close_Connected(t *testing.T) {
	dev := NewMock(mockConfig())

	require.NoError(t, dev.Connect())
	assert.True(t, dev.IsConnected())

	require.NoError(t, dev.Close())
	assert.False(t, dev.IsConnected())
}
