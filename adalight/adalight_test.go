package adalight

import (
	"errors"
	"io"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/wravery/adalight/capture"
	"github.com/wravery/adalight/display"
	"github.com/wravery/adalight/gamma"
)

// testSet builds a display set with the given per-display colors by
// sampling a one-row frame through a pass-through gamma table.
func testSet(colors ...[]display.RGB) *display.Set {
	var id gamma.Table
	for i := range id {
		id[i] = uint8(i)
	}
	var cfgs []display.Config
	for _, leds := range colors {
		cfg := display.Config{HorizontalCount: len(leds), VerticalCount: 1}
		for x := range leds {
			cfg.Positions = append(cfg.Positions, display.Position{X: x, Y: 0})
		}
		cfgs = append(cfgs, cfg)
	}
	set := display.NewSet(cfgs)
	for i, leds := range colors {
		pixels := make([]byte, len(leds)*4)
		for j, c := range leds {
			pixels[4*j] = c.B
			pixels[4*j+1] = c.G
			pixels[4*j+2] = c.R
		}
		f := capture.Frame{Pixels: pixels, Stride: len(leds) * 4, Width: len(leds), Height: 1}
		set.Displays()[i].Sample(f, &id, 0, 0)
	}
	return set
}

func TestHeader25LEDs(t *testing.T) {
	frame := AppendFrame(nil, make([]display.RGB, 25))
	want := []byte{'A', 'd', 'a', 0x00, 0x18, 0x4d}
	for i, b := range want {
		if frame[i] != b {
			t.Fatalf("header[%d] = %#x, want %#x", i, frame[i], b)
		}
	}
	if got, want := len(frame), 6+25*3; got != want {
		t.Fatalf("frame length %d, want %d", got, want)
	}
}

func TestHeaderChecksum(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 4096).Draw(t, "leds")
		frame := AppendFrame(nil, make([]display.RGB, n))
		count := n - 1
		hi := byte(count >> 8)
		lo := byte(count)
		if frame[3] != hi || frame[4] != lo {
			t.Fatalf("count bytes %#x %#x, want %#x %#x", frame[3], frame[4], hi, lo)
		}
		if frame[5] != hi^lo^0x55 {
			t.Fatalf("checksum %#x, want %#x", frame[5], hi^lo^0x55)
		}
		if len(frame) != 6+3*n {
			t.Fatalf("frame length %d, want %d", len(frame), 6+3*n)
		}
	})
}

func newTestSink(port io.ReadWriteCloser, leds int) *Sink {
	s := NewSink("", leds, 100*time.Millisecond)
	s.openPort = func(string) (io.ReadWriteCloser, error) {
		return port, nil
	}
	s.listPorts = func(string) []string { return []string{"sim"} }
	return s
}

func TestSinkEndToEnd(t *testing.T) {
	sim := NewSimulator()
	defer sim.Close()
	set := testSet([]display.RGB{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}})
	s := newTestSink(sim, set.LEDCount())
	if err := s.Push(set); err != nil {
		t.Fatal(err)
	}
	if !s.Connected() {
		t.Fatal("sink did not connect")
	}
	// Frame 0 is the all-zero probe, frame 1 the real payload.
	if len(sim.Frames) != 2 {
		t.Fatalf("device saw %d frames, want 2", len(sim.Frames))
	}
	for _, b := range sim.Frames[0] {
		if b != 0 {
			t.Fatal("probe frame is not all zero")
		}
	}
	want := []byte{255, 0, 0, 0, 255, 0, 0, 0, 255}
	got := sim.Frames[1]
	if len(got) != len(want) {
		t.Fatalf("payload length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("payload[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSinkProbeRateLimited(t *testing.T) {
	set := testSet([]display.RGB{{1, 2, 3}})
	s := NewSink("", 1, time.Second)
	probes := 0
	s.listPorts = func(string) []string {
		probes++
		return nil
	}
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	s.Push(set)
	s.Push(set)
	if probes != 1 {
		t.Fatalf("%d probe attempts inside the timeout window, want 1", probes)
	}
	now = now.Add(time.Second)
	s.Push(set)
	if probes != 2 {
		t.Fatalf("%d probe attempts after the window elapsed, want 2", probes)
	}
}

type brokenPort struct{}

func (brokenPort) Read(p []byte) (int, error)  { return 0, errors.New("gone") }
func (brokenPort) Write(p []byte) (int, error) { return 0, errors.New("gone") }
func (brokenPort) Close() error                { return nil }

func TestSinkWriteErrorDisconnects(t *testing.T) {
	set := testSet([]display.RGB{{1, 2, 3}})
	s := NewSink("", 1, time.Second)
	s.port = brokenPort{}
	if err := s.Push(set); err != nil {
		t.Fatalf("transport error escaped: %v", err)
	}
	if s.Connected() {
		t.Fatal("sink still connected after write error")
	}
}

func TestSimulatorRejectsBadChecksum(t *testing.T) {
	sim := NewSimulator()
	defer sim.Close()
	if _, err := sim.Write([]byte{'A', 'd', 'a', 0, 0, 0xff}); err == nil {
		t.Fatal("bad checksum accepted")
	}
}
