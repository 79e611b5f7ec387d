package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/timerchain/pkg/config"
	"github.com/itohio/timerchain/pkg/meter"
	"github.com/itohio/timerchain/pkg/sample"
)

// ScopeWidget is a custom Fyne widget that plots the counter tick rate over
// time, oscilloscope style, with glitch markers and the latest counter value.
type ScopeWidget struct {
	widget.BaseWidget

	cfg *config.Config

	// Data (protected by mu)
	mu       sync.RWMutex
	samples  []sample.Sample
	rates    []float64
	glitches []meter.Glitch
	latest   sample.Sample
	hasData  bool

	// Display buffers (reused for downsampling)
	points        []ratePoint
	displayPoints []ratePoint

	view view

	maxDisplayPoints int
}

// ratePoint places a rate at the midpoint of the sample pair it was measured over.
type ratePoint struct {
	Time time.Time
	Rate float64
}

// view is the visible data range of the plot.
type view struct {
	yMin, yMax float64
	xMin, xMax time.Time
}

// New creates a new ScopeWidget instance.
func New(cfg *config.Config) *ScopeWidget {
	s := &ScopeWidget{
		cfg:              cfg,
		samples:          make([]sample.Sample, 0),
		rates:            make([]float64, 0),
		glitches:         make([]meter.Glitch, 0),
		points:           make([]ratePoint, 0, 1000),
		displayPoints:    make([]ratePoint, 0, 1000),
		maxDisplayPoints: 1000,
	}
	s.view = autoScale(nil, s.nominal(), s.window(), time.Now())
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// UpdateData updates the widget with new measurement data.
// This should be called from the meter callback using fyne.Do().
func (s *ScopeWidget) UpdateData(samples []sample.Sample, rates []float64, glitches []meter.Glitch) {
	s.mu.Lock()

	s.points = ratePoints(s.points, samples, rates)
	s.displayPoints = sample.Downsample(s.displayPoints, s.points, s.maxDisplayPoints)

	s.samples = samples
	s.rates = rates
	s.glitches = glitches
	if len(samples) > 0 {
		s.latest = samples[len(samples)-1]
		s.hasData = true
	}

	s.view = autoScale(s.displayPoints, s.nominal(), s.window(), time.Now())

	s.mu.Unlock()

	// Refresh the widget (must be outside lock to avoid potential deadlock)
	s.Refresh()
}

// Clear drops all data, e.g. after a reconnect.
func (s *ScopeWidget) Clear() {
	s.mu.Lock()
	s.samples = s.samples[:0]
	s.rates = s.rates[:0]
	s.glitches = s.glitches[:0]
	s.points = s.points[:0]
	s.displayPoints = s.displayPoints[:0]
	s.hasData = false
	s.view = autoScale(nil, s.nominal(), s.window(), time.Now())
	s.mu.Unlock()
	s.Refresh()
}

func (s *ScopeWidget) nominal() float64 {
	return s.cfg.Timer.TickHz()
}

func (s *ScopeWidget) window() time.Duration {
	return time.Duration(s.cfg.Measurement.WindowSeconds * float64(time.Second))
}

// ratePoints pairs rates[i] with the midpoint of samples[i] and samples[i+1].
// Reuses dst.
func ratePoints(dst []ratePoint, samples []sample.Sample, rates []float64) []ratePoint {
	dst = dst[:0]
	for i, r := range rates {
		if i+1 >= len(samples) {
			break
		}
		mid := samples[i].Timestamp.Add(samples[i+1].Timestamp.Sub(samples[i].Timestamp) / 2)
		dst = append(dst, ratePoint{Time: mid, Rate: r})
	}
	return dst
}

// autoScale fits the Y axis to the rates and the nominal rate with a 10%
// margin, and the X axis to the point times, at least one window wide.
func autoScale(points []ratePoint, nominal float64, window time.Duration, now time.Time) view {
	v := view{yMin: nominal, yMax: nominal}
	for _, p := range points {
		if p.Rate < v.yMin {
			v.yMin = p.Rate
		}
		if p.Rate > v.yMax {
			v.yMax = p.Rate
		}
	}

	span := v.yMax - v.yMin
	if span == 0 {
		span = nominal
		if span == 0 {
			span = 1
		}
	}
	margin := span * 0.1
	v.yMin -= margin
	v.yMax += margin

	if len(points) == 0 {
		v.xMin = now
		v.xMax = now.Add(window)
		return v
	}
	v.xMin = points[0].Time
	v.xMax = points[len(points)-1].Time
	if v.xMax.Sub(v.xMin) < window {
		v.xMax = v.xMin.Add(window)
	}
	return v
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:    s,
		grid:     grid,
		objects:  []fyne.CanvasObject{grid},
		lastSize: fyne.Size{Width: 0, Height: 0},
	}
}
