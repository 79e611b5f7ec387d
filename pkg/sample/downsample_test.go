package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownsample_NoDownsampling(t *testing.T) {
	now := time.Now()
	samples := []Sample{
		{Timestamp: now, Value: 1},
		{Timestamp: now.Add(100 * time.Millisecond), Value: 2},
		{Timestamp: now.Add(200 * time.Millisecond), Value: 3},
	}

	result := Downsample(nil, samples, 10)
	require.Equal(t, 3, len(result))
	assert.Equal(t, samples, result)

	// Test with sufficient capacity dst
	dst := make([]Sample, 0, 10)
	result = Downsample(dst, samples, 10)
	require.Equal(t, 3, len(result))
	assert.Equal(t, samples, result)
	assert.Equal(t, cap(dst), cap(result))
}

func TestDownsample_WithDownsampling(t *testing.T) {
	samples := make([]Sample, 100)
	for i := range samples {
		samples[i] = Sample{Value: uint32(i)}
	}

	dst := make([]Sample, 0, 20)
	result := Downsample(dst, samples, 10)
	require.Equal(t, 10, len(result))

	assert.Equal(t, samples[0], result[0])
	assert.GreaterOrEqual(t, result[len(result)-1].Value, uint32(80))
	assert.Equal(t, cap(dst), cap(result))
}

func TestDownsample_DestinationReuse(t *testing.T) {
	rates1 := []float64{1.0, 1.1}
	rates2 := []float64{2.0, 2.1, 2.2}

	dst := make([]float64, 0, 10)
	result1 := Downsample(dst, rates1, 10)
	require.Equal(t, 2, len(result1))

	result2 := Downsample(result1, rates2, 10)
	require.Equal(t, 3, len(result2))
	assert.Equal(t, rates2, result2)
	assert.Equal(t, cap(result1), cap(result2))
}

func TestDownsample_SmallDestinationAllocates(t *testing.T) {
	rates := make([]float64, 50)
	dst := make([]float64, 0, 2)

	result := Downsample(dst, rates, 10)
	assert.Len(t, result, 10)
	assert.GreaterOrEqual(t, cap(result), 10)
}

func TestDownsample_EmptyInput(t *testing.T) {
	result := Downsample(nil, []Sample{}, 10)
	require.Equal(t, 0, len(result))
}

func TestDownsample_ExactMaxPoints(t *testing.T) {
	rates := []float64{1, 2, 3, 4, 5}
	result := Downsample(nil, rates, 5)
	assert.Equal(t, rates, result)
}
