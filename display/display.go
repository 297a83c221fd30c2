// package display owns per-display LED geometry and the colors most
// recently emitted for each LED.
package display

import "image"

// RGB is one LED color.
type RGB struct {
	R, G, B uint8
}

// Position is a cell in a display's sampling grid.
type Position struct {
	X, Y int
}

// Config describes one display: an HorizontalCount×VerticalCount grid
// over its area and the ordered grid cells that carry LEDs. The
// sequence order is the on-wire LED order. A config with both counts
// zero is a skip placeholder: the display occupies its slot in
// enumeration order but contributes no LEDs.
type Config struct {
	HorizontalCount int
	VerticalCount   int
	Positions       []Position
}

func (c Config) Skip() bool {
	return c.HorizontalCount == 0 && c.VerticalCount == 0
}

// Display pairs a Config with its sampling rectangles and prior-frame
// vector. Rectangles are computed lazily from the first observed pixel
// dimensions and recomputed only when those change.
type Display struct {
	cfg   Config
	size  image.Point
	rects []image.Rectangle
	prior []RGB
}

func New(cfg Config) *Display {
	return &Display{
		cfg:   cfg,
		prior: make([]RGB, len(cfg.Positions)),
	}
}

func (d *Display) LEDCount() int {
	return len(d.cfg.Positions)
}

// Colors is the last emitted color vector. The slice is owned by the
// display; callers must not retain it across ticks.
func (d *Display) Colors() []RGB {
	return d.prior
}

// Resize recomputes the sampling rectangles for the given pixel
// dimensions. Cell (x, y) maps to
// [x·w/hc, (x+1)·w/hc) × [y·h/vc, (y+1)·h/vc); adjacent cells share
// edges with no gap and no overlap.
func (d *Display) Resize(w, h int) {
	if d.size == image.Pt(w, h) {
		return
	}
	d.size = image.Pt(w, h)
	hc, vc := d.cfg.HorizontalCount, d.cfg.VerticalCount
	d.rects = d.rects[:0]
	for _, p := range d.cfg.Positions {
		d.rects = append(d.rects, image.Rect(
			p.X*w/hc, p.Y*h/vc,
			(p.X+1)*w/hc, (p.Y+1)*h/vc,
		))
	}
}

// Rects returns the current sampling rectangles, one per LED. Empty
// until the first Resize.
func (d *Display) Rects() []image.Rectangle {
	return d.rects
}

// Set holds every configured display, skip placeholders included, in
// enumeration order.
type Set struct {
	displays []*Display
}

func NewSet(cfgs []Config) *Set {
	s := &Set{}
	for _, cfg := range cfgs {
		s.displays = append(s.displays, New(cfg))
	}
	return s
}

func (s *Set) Displays() []*Display {
	return s.displays
}

// At looks up the current color of one LED by display and LED index.
func (s *Set) At(display, led int) RGB {
	return s.displays[display].prior[led]
}

// LEDCount is the total LED count across all displays.
func (s *Set) LEDCount() int {
	n := 0
	for _, d := range s.displays {
		n += d.LEDCount()
	}
	return n
}

// Global appends the concatenated color vectors in display order to
// dst. Skip placeholders contribute nothing.
func (s *Set) Global(dst []RGB) []RGB {
	for _, d := range s.displays {
		dst = append(dst, d.prior...)
	}
	return dst
}
