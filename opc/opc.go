// package opc streams color frames to an Open Pixel Control server
// over TCP.
package opc

import (
	"math"
	"net"

	"github.com/wravery/adalight/display"
)

const (
	cmdSetColors = 0x00
	cmdSysex     = 0xff

	// BobLight alpha extension system ID.
	sysexBobLight = 0xb0b
)

// PixelRange maps part of a channel onto the displays' LEDs.
// DisplayIndex[i] lists the LED indices of display i, in config order,
// that feed this range; the concatenated source LEDs are spread evenly
// over PixelCount output pixels. An empty DisplayIndex leaves the range
// un-driven (black).
type PixelRange struct {
	PixelCount   int
	DisplayIndex [][]int
}

// Channel is one OPC channel with its contiguous pixel ranges.
type Channel struct {
	Channel uint8
	Pixels  []PixelRange
}

// Sink is the OPC client for a single server. The connection is opened
// lazily on the first push; any write error closes it and the next push
// reconnects. Failures never propagate to the caller.
type Sink struct {
	addr     string
	alpha    bool
	channels []Channel

	conn net.Conn
	buf  []byte
	src  []display.RGB

	// Overridable for tests.
	dial func(addr string) (net.Conn, error)
}

// NewSink builds the client for one configured server. The port stays a
// string per getaddrinfo conventions.
func NewSink(host, port string, alpha bool, channels []Channel) *Sink {
	return &Sink{
		addr:     net.JoinHostPort(host, port),
		alpha:    alpha,
		channels: channels,
		dial: func(addr string) (net.Conn, error) {
			return net.Dial("tcp", addr)
		},
	}
}

// Connected reports whether the TCP connection is up.
func (s *Sink) Connected() bool {
	return s.conn != nil
}

// Push sends one color message per channel, plus the BobLight alpha
// sysex when enabled.
func (s *Sink) Push(set *display.Set) error {
	if s.conn == nil {
		conn, err := s.dial(s.addr)
		if err != nil {
			return nil
		}
		s.conn = conn
	}
	buf := s.buf[:0]
	for _, ch := range s.channels {
		buf = s.appendColors(buf, ch, set)
		if s.alpha {
			buf = appendAlpha(buf, ch)
		}
	}
	s.buf = buf
	if _, err := s.conn.Write(buf); err != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Sink) appendColors(dst []byte, ch Channel, set *display.Set) []byte {
	n := 3 * totalPixels(ch)
	dst = append(dst, ch.Channel, cmdSetColors, byte(n>>8), byte(n))
	for _, r := range ch.Pixels {
		s.src = s.src[:0]
		for i, leds := range r.DisplayIndex {
			for _, j := range leds {
				s.src = append(s.src, set.At(i, j))
			}
		}
		dst = appendInterpolated(dst, s.src, r.PixelCount)
	}
	return dst
}

func appendAlpha(dst []byte, ch Channel) []byte {
	total := totalPixels(ch)
	n := 2 + total
	dst = append(dst, ch.Channel, cmdSysex, byte(n>>8), byte(n),
		sysexBobLight>>8, sysexBobLight&0xff)
	for k := 0; k < total; k++ {
		dst = append(dst, 0xff)
	}
	return dst
}

func totalPixels(ch Channel) int {
	n := 0
	for _, r := range ch.Pixels {
		n += r.PixelCount
	}
	return n
}

// appendInterpolated spreads len(src) LEDs over n output pixels by even
// distribution: output k samples source position k·(M−1)/(N−1) with
// linear blending of the two straddling LEDs. No source LEDs produce
// black pixels.
func appendInterpolated(dst []byte, src []display.RGB, n int) []byte {
	if len(src) == 0 {
		for k := 0; k < n; k++ {
			dst = append(dst, 0, 0, 0)
		}
		return dst
	}
	for k := 0; k < n; k++ {
		var pos float64
		if n > 1 {
			pos = float64(k) * float64(len(src)-1) / float64(n-1)
		}
		i0 := int(math.Floor(pos))
		i1 := int(math.Ceil(pos))
		frac := pos - float64(i0)
		a, b := src[i0], src[i1]
		dst = append(dst,
			lerp(a.R, b.R, frac),
			lerp(a.G, b.G, frac),
			lerp(a.B, b.B, frac),
		)
	}
	return dst
}

func lerp(a, b uint8, frac float64) uint8 {
	return uint8(math.RoundToEven(float64(a)*(1-frac) + float64(b)*frac))
}
