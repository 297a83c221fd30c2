package display

import (
	"math"

	"github.com/wravery/adalight/capture"
	"github.com/wravery/adalight/gamma"
)

// Sample derives a fresh color vector from a frame and stores it as the
// new prior vector. Per LED: average every pixel in the sampling
// rectangle (truncating integer mean per channel), gamma-correct, blend
// with the prior color by fade, and clamp to the minimum brightness
// floor. The floor compares the channel sum, not individual channels.
func (d *Display) Sample(f capture.Frame, g *gamma.Table, fade float64, minBrightness int) {
	d.Resize(f.Width, f.Height)
	floor := uint8(minBrightness / 3)
	for i, r := range d.rects {
		n := r.Dx() * r.Dy()
		if n == 0 {
			continue
		}
		var sumR, sumG, sumB int
		for y := r.Min.Y; y < r.Max.Y; y++ {
			row := f.Pixels[y*f.Stride : y*f.Stride+4*r.Max.X]
			for x := r.Min.X; x < r.Max.X; x++ {
				p := row[4*x:]
				sumB += int(p[0])
				sumG += int(p[1])
				sumR += int(p[2])
			}
		}
		c := RGB{
			R: g.At(uint8(sumR / n)),
			G: g.At(uint8(sumG / n)),
			B: g.At(uint8(sumB / n)),
		}
		if fade > 0 {
			p := d.prior[i]
			c = RGB{
				R: blend(c.R, p.R, fade),
				G: blend(c.G, p.G, fade),
				B: blend(c.B, p.B, fade),
			}
		}
		if int(c.R)+int(c.G)+int(c.B) < minBrightness {
			c = RGB{floor, floor, floor}
		}
		d.prior[i] = c
	}
}

func blend(c, p uint8, fade float64) uint8 {
	return uint8(math.Round(float64(c)*(1-fade) + float64(p)*fade))
}
