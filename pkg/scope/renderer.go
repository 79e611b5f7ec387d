package scope

import (
	"image/color"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/chewxy/math32"
	"github.com/itohio/timerchain/pkg/meter"
	"github.com/itohio/timerchain/pkg/report"
)

var (
	colorGrid     = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	colorLabel    = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	colorRate     = color.RGBA{R: 100, G: 200, B: 255, A: 255} // Light blue
	colorNominal  = color.RGBA{R: 80, G: 160, B: 80, A: 255}   // Green
	colorTorn     = color.RGBA{R: 255, G: 165, B: 0, A: 255}   // Orange
	colorBackward = color.RGBA{R: 230, G: 50, B: 50, A: 255}   // Red
	colorStall    = color.RGBA{R: 200, G: 200, B: 0, A: 255}   // Yellow
	colorStatus   = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// plotArea maps data coordinates to pixels.
type plotArea struct {
	x, y, w, h float32
	v          view
}

// px returns the horizontal pixel position of t, clamped to the plot.
func (p plotArea) px(t time.Time) float32 {
	span := float32(p.v.xMax.Sub(p.v.xMin).Seconds())
	if span <= 0 {
		return p.x
	}
	f := float32(t.Sub(p.v.xMin).Seconds()) / span
	return p.x + math32.Max(0, math32.Min(1, f))*p.w
}

// py returns the vertical pixel position of value, clamped to the plot.
func (p plotArea) py(value float64) float32 {
	span := float32(p.v.yMax - p.v.yMin)
	if span <= 0 {
		return p.y + p.h/2
	}
	f := float32(value-p.v.yMin) / span
	return p.y + p.h - math32.Max(0, math32.Min(1, f))*p.h
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.grid.Resize(size)

	if r.lastSize.Width != size.Width || r.lastSize.Height != size.Height {
		r.lastSize = size
		// Redraw with the new dimensions through Fyne's refresh cycle.
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh updates the widget display.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	points := r.scope.displayPoints
	glitches := r.scope.glitches
	latest := r.scope.latest
	hasData := r.scope.hasData
	v := r.scope.view
	r.scope.mu.RUnlock()

	nominal := r.scope.nominal()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	// Clear old objects (but keep background)
	r.objects = []fyne.CanvasObject{r.grid}

	const (
		marginLeft   = float32(80.0)
		marginRight  = float32(20.0)
		marginTop    = float32(30.0)
		marginBottom = float32(40.0)
	)
	p := plotArea{
		x: marginLeft,
		y: marginTop,
		w: size.Width - marginLeft - marginRight,
		h: size.Height - marginTop - marginBottom,
		v: v,
	}

	r.drawGrid(p)
	r.drawNominal(p, nominal)
	if len(points) > 1 {
		r.drawRateLine(p, points)
	}
	r.drawGlitches(p, glitches)
	if hasData {
		r.drawStatus(p, latest.Value, latest.Elapsed, len(glitches))
	}
}

// drawGrid draws the oscilloscope-style grid with rate and time labels.
func (r *scopeRenderer) drawGrid(p plotArea) {
	numHLines := 8
	for i := 0; i < numHLines+1; i++ {
		y := p.y + float32(i)*p.h/float32(numHLines)
		r.addLine(colorGrid, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))

		value := p.v.yMax - float64(i)*(p.v.yMax-p.v.yMin)/float64(numHLines)
		r.addText(formatRate(value), colorLabel, 10, fyne.TextAlignTrailing, fyne.NewPos(p.x-5, y-6))
	}

	numVLines := 10
	for i := 0; i < numVLines+1; i++ {
		x := p.x + float32(i)*p.w/float32(numVLines)
		r.addLine(colorGrid, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))

		offset := time.Duration(float64(i) * float64(p.v.xMax.Sub(p.v.xMin)) / float64(numVLines))
		r.addText(formatTime(offset), colorLabel, 10, fyne.TextAlignCenter, fyne.NewPos(x-20, p.y+p.h+5))
	}
}

// drawNominal draws the configured tick rate as a horizontal reference.
func (r *scopeRenderer) drawNominal(p plotArea, nominal float64) {
	y := p.py(nominal)
	r.addLine(colorNominal, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.w, y))
}

// drawRateLine draws the measured tick rate curve.
func (r *scopeRenderer) drawRateLine(p plotArea, points []ratePoint) {
	prev := fyne.NewPos(p.px(points[0].Time), p.py(points[0].Rate))
	for _, pt := range points[1:] {
		next := fyne.NewPos(p.px(pt.Time), p.py(pt.Rate))
		r.addLine(colorRate, 2, prev, next)
		prev = next
	}
}

// drawGlitches draws a vertical marker at each glitch, colored by kind.
func (r *scopeRenderer) drawGlitches(p plotArea, glitches []meter.Glitch) {
	for _, g := range glitches {
		if g.Time.Before(p.v.xMin) || g.Time.After(p.v.xMax) {
			continue
		}
		x := p.px(g.Time)
		r.addLine(glitchColor(g.Kind), 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.h))
		r.addText(g.Kind.String(), glitchColor(g.Kind), 10, fyne.TextAlignCenter, fyne.NewPos(x-20, p.y-14))
	}
}

// drawStatus shows the latest counter value and timer time in the corner.
func (r *scopeRenderer) drawStatus(p plotArea, value uint32, elapsed float64, glitches int) {
	text := report.Line(value)
	text = text[:len(text)-2] + "  t=" + strconv.FormatFloat(elapsed, 'f', 3, 64) + "s"
	if glitches > 0 {
		text += "  glitches=" + strconv.Itoa(glitches)
	}
	r.addText(text, colorStatus, 11, fyne.TextAlignLeading, fyne.NewPos(p.x+10, p.y+10))
}

func (r *scopeRenderer) addLine(c color.Color, width float32, from, to fyne.Position) {
	line := canvas.NewLine(c)
	line.Position1 = from
	line.Position2 = to
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

func (r *scopeRenderer) addText(s string, c color.Color, size float32, align fyne.TextAlign, pos fyne.Position) {
	text := canvas.NewText(s, c)
	text.TextSize = size
	text.Alignment = align
	text.Move(pos)
	r.objects = append(r.objects, text)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

func glitchColor(k meter.GlitchKind) color.Color {
	switch k {
	case meter.GlitchTorn:
		return colorTorn
	case meter.GlitchStall:
		return colorStall
	}
	return colorBackward
}

// formatRate prints a rate in counts per second with an SI suffix.
func formatRate(v float64) string {
	a := math32.Abs(float32(v))
	switch {
	case a >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 3, 64) + "M/s"
	case a >= 1e3:
		return strconv.FormatFloat(v/1e3, 'f', 2, 64) + "k/s"
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + "/s"
}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}
