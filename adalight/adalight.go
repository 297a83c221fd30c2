// package adalight implements the serial sink for AdaLight-compatible
// microcontrollers.
package adalight

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"time"

	"github.com/tarm/serial"

	"github.com/wravery/adalight/display"
)

// Baud is the rate AdaLight sketches configure.
const Baud = 115200

// magic is printed by the device when it is ready for frames.
var magic = []byte("Ada\n")

const headerSize = 6

// AppendFrame appends one AdaLight frame for the global color vector:
// a six-byte header 'A','d','a',hi,lo,chk with count = len(colors)-1
// and chk = hi^lo^0x55, followed by 3 RGB bytes per LED.
func AppendFrame(dst []byte, colors []display.RGB) []byte {
	count := len(colors) - 1
	hi := byte(count >> 8)
	lo := byte(count)
	dst = append(dst, 'A', 'd', 'a', hi, lo, hi^lo^0x55)
	for _, c := range colors {
		dst = append(dst, c.R, c.G, c.B)
	}
	return dst
}

// Sink streams frames to the first serial device that answers the
// AdaLight probe. It starts disconnected; discovery runs on push, rate
// limited to one attempt per timeout window, and any write error drops
// back to disconnected without disturbing the caller.
type Sink struct {
	device  string
	leds    int
	timeout time.Duration

	port      io.ReadWriteCloser
	lastProbe time.Time
	probed    bool
	buf       []byte
	colors    []display.RGB

	// Overridable for tests.
	openPort  func(name string) (io.ReadWriteCloser, error)
	listPorts func(device string) []string
	now       func() time.Time
}

func NewSink(device string, leds int, timeout time.Duration) *Sink {
	s := &Sink{
		device:  device,
		leds:    leds,
		timeout: timeout,
		now:     time.Now,
	}
	s.openPort = func(name string) (io.ReadWriteCloser, error) {
		return serial.OpenPort(&serial.Config{
			Name:        name,
			Baud:        Baud,
			ReadTimeout: s.timeout,
		})
	}
	s.listPorts = candidates
	return s
}

// Connected reports whether a device is attached.
func (s *Sink) Connected() bool {
	return s.port != nil
}

// Push writes one frame for the set's global color vector. While
// disconnected it attempts discovery first; failures leave the sink
// disconnected and the frame is dropped.
func (s *Sink) Push(set *display.Set) error {
	if s.port == nil {
		if s.probed && s.now().Sub(s.lastProbe) < s.timeout {
			return nil
		}
		s.lastProbe = s.now()
		s.probed = true
		s.port = s.discover()
		if s.port == nil {
			return nil
		}
	}
	s.colors = set.Global(s.colors[:0])
	s.buf = AppendFrame(s.buf[:0], s.colors)
	if err := s.write(s.buf); err != nil {
		s.port.Close()
		s.port = nil
	}
	return nil
}

func (s *Sink) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// write retries partial writes; tarm's port may split large frames.
func (s *Sink) write(frame []byte) error {
	for len(frame) > 0 {
		n, err := s.port.Write(frame)
		if err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}

// discover probes each candidate port with an all-zero frame and waits
// for the "Ada\n" magic. First responder wins.
func (s *Sink) discover() io.ReadWriteCloser {
	probe := AppendFrame(nil, make([]display.RGB, s.leds))
	deadline := s.now().Add(s.timeout)
	for _, name := range s.listPorts(s.device) {
		port, err := s.openPort(name)
		if err != nil {
			continue
		}
		if _, err := port.Write(probe); err != nil {
			port.Close()
			continue
		}
		if s.awaitMagic(port, deadline) {
			return port
		}
		port.Close()
	}
	return nil
}

func (s *Sink) awaitMagic(r io.Reader, deadline time.Time) bool {
	var window [4]byte
	buf := make([]byte, 64)
	for s.now().Before(deadline) {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			copy(window[:], window[1:])
			window[3] = b
			if window == [4]byte(magic) {
				return true
			}
		}
		if err != nil {
			return false
		}
		if n == 0 {
			// Read timeout with nothing buffered.
			return false
		}
	}
	return false
}

func candidates(device string) []string {
	if device != "" {
		return []string{device}
	}
	switch runtime.GOOS {
	case "windows":
		ports := make([]string, 0, 16)
		for i := 1; i <= 16; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
		return ports
	default:
		var ports []string
		for _, pattern := range []string{"/dev/ttyUSB*", "/dev/ttyACM*"} {
			matches, _ := filepath.Glob(pattern)
			ports = append(ports, matches...)
		}
		return ports
	}
}
