// package gamma provides the brightness correction table applied to
// sampled colors before they reach the LEDs.
package gamma

import "math"

// Table maps linear 8-bit channel values to gamma-corrected ones. The
// same table is applied to all three channels.
type Table [256]uint8

// Exponent for WS2812-class strips driven by AdaLight sketches.
const exponent = 2.8

func New() *Table {
	var t Table
	for i := range t {
		t[i] = uint8(math.Round(math.Pow(float64(i)/255, exponent) * 255))
	}
	return &t
}

func (t *Table) At(v uint8) uint8 {
	return t[v]
}
