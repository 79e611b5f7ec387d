package scope

import (
	"testing"
	"time"

	"github.com/itohio/timerchain/pkg/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatePoints(t *testing.T) {
	now := time.Now()
	samples := []sample.Sample{
		{Timestamp: now},
		{Timestamp: now.Add(100 * time.Millisecond)},
		{Timestamp: now.Add(300 * time.Millisecond)},
	}
	rates := []float64{1000, 2000}

	points := ratePoints(nil, samples, rates)
	require.Len(t, points, 2)
	assert.Equal(t, now.Add(50*time.Millisecond), points[0].Time)
	assert.Equal(t, 1000.0, points[0].Rate)
	assert.Equal(t, now.Add(200*time.Millisecond), points[1].Time)
	assert.Equal(t, 2000.0, points[1].Rate)

	buf := make([]ratePoint, 0, 10)
	reused := ratePoints(buf, samples, rates)
	assert.Equal(t, 10, cap(reused))
	assert.Len(t, ratePoints(buf, samples[:1], rates), 0, "rates without a closing sample are skipped")
}

func TestAutoScale(t *testing.T) {
	now := time.Now()

	t.Run("empty", func(t *testing.T) {
		v := autoScale(nil, 1000, 10*time.Second, now)
		assert.InDelta(t, 900.0, v.yMin, 1e-9)
		assert.InDelta(t, 1100.0, v.yMax, 1e-9)
		assert.Equal(t, now, v.xMin)
		assert.Equal(t, now.Add(10*time.Second), v.xMax)
	})

	t.Run("includes nominal", func(t *testing.T) {
		points := []ratePoint{
			{Time: now, Rate: 1100},
			{Time: now.Add(time.Second), Rate: 1200},
		}
		v := autoScale(points, 1000, 10*time.Second, now)
		assert.InDelta(t, 980.0, v.yMin, 1e-9)
		assert.InDelta(t, 1220.0, v.yMax, 1e-9)
		assert.Equal(t, now.Add(10*time.Second), v.xMax, "at least one window wide")
	})

	t.Run("wider than window", func(t *testing.T) {
		points := []ratePoint{
			{Time: now, Rate: 1000},
			{Time: now.Add(20 * time.Second), Rate: 1000},
		}
		v := autoScale(points, 1000, 10*time.Second, now)
		assert.Equal(t, now.Add(20*time.Second), v.xMax)
	})

	t.Run("zero nominal", func(t *testing.T) {
		v := autoScale(nil, 0, time.Second, now)
		assert.Less(t, v.yMin, v.yMax)
	})
}

func TestPlotArea(t *testing.T) {
	now := time.Now()
	p := plotArea{x: 10, y: 20, w: 100, h: 50, v: view{
		yMin: 0, yMax: 10,
		xMin: now, xMax: now.Add(10 * time.Second),
	}}

	assert.InDelta(t, 10, p.px(now), 1e-4)
	assert.InDelta(t, 60, p.px(now.Add(5*time.Second)), 1e-4)
	assert.InDelta(t, 110, p.px(now.Add(time.Minute)), 1e-4, "clamped right")
	assert.InDelta(t, 10, p.px(now.Add(-time.Minute)), 1e-4, "clamped left")

	assert.InDelta(t, 70, p.py(0), 1e-4)
	assert.InDelta(t, 20, p.py(10), 1e-4)
	assert.InDelta(t, 45, p.py(5), 1e-4)
	assert.InDelta(t, 20, p.py(100), 1e-4, "clamped top")
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "281.25k/s", formatRate(281250))
	assert.Equal(t, "72.000M/s", formatRate(72e6))
	assert.Equal(t, "12.5/s", formatRate(12.5))
	assert.Equal(t, "-2.00k/s", formatRate(-2000))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "0.50s", formatTime(500*time.Millisecond))
	assert.Equal(t, "2.5s", formatTime(2500*time.Millisecond))
}
