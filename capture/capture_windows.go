//go:build windows

package capture

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")

	procEnumDisplayMonitors = user32.NewProc("EnumDisplayMonitors")
	procOpenInputDesktop    = user32.NewProc("OpenInputDesktop")
	procCloseDesktop        = user32.NewProc("CloseDesktop")
	procGetDC               = user32.NewProc("GetDC")
	procReleaseDC           = user32.NewProc("ReleaseDC")

	procCreateCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	procCreateDIBSection   = gdi32.NewProc("CreateDIBSection")
	procSelectObject       = gdi32.NewProc("SelectObject")
	procDeleteObject       = gdi32.NewProc("DeleteObject")
	procDeleteDC           = gdi32.NewProc("DeleteDC")
	procBitBlt             = gdi32.NewProc("BitBlt")
)

const (
	srcCopy    = 0x00cc0020
	captureBlt = 0x40000000

	biRGB         = 0
	dibRGBColors  = 0
	desktopReadOK = 0x0001 // DESKTOP_READOBJECTS
)

type rect struct {
	left, top, right, bottom int32
}

type bitmapInfoHeader struct {
	size          uint32
	width         int32
	height        int32
	planes        uint16
	bitCount      uint16
	compression   uint32
	sizeImage     uint32
	xPelsPerMeter int32
	yPelsPerMeter int32
	clrUsed       uint32
	clrImportant  uint32
}

type bitmapInfo struct {
	header bitmapInfoHeader
	colors [3]uint32
}

// monitor is one attached display plus the GDI objects used to copy its
// content. Objects are created lazily and torn down on any failure so
// the next tick starts from scratch.
type monitor struct {
	bounds rect

	screenDC windows.Handle
	memDC    windows.Handle
	bitmap   windows.Handle
	bits     unsafe.Pointer
	frame    Frame
}

type gdiSource struct {
	monitors []*monitor
}

// Open enumerates attached monitors and prepares a GDI capture source.
// The display count comes from the configuration; when the OS reports
// more monitors than configured the extras are ignored, and when it
// reports fewer the missing slots produce transient results.
func Open(displays int) (Source, error) {
	src := &gdiSource{}
	cb := windows.NewCallback(func(hmon, hdc uintptr, r *rect, lparam uintptr) uintptr {
		src.monitors = append(src.monitors, &monitor{bounds: *r})
		return 1 // continue enumeration
	})
	ret, _, err := procEnumDisplayMonitors.Call(0, 0, cb, 0)
	if ret == 0 {
		return nil, fmt.Errorf("capture: EnumDisplayMonitors: %v", err)
	}
	if len(src.monitors) == 0 {
		return nil, fmt.Errorf("capture: no monitors found")
	}
	if len(src.monitors) > displays {
		src.monitors = src.monitors[:displays]
	}
	for len(src.monitors) < displays {
		src.monitors = append(src.monitors, nil)
	}
	return src, nil
}

func (s *gdiSource) Snapshot() Snapshot {
	if !inputDesktopOpen() {
		// Secure desktop (UAC, lock screen): nothing is capturable.
		return Snapshot{Throttled: true}
	}
	snap := Snapshot{Displays: make([]Result, len(s.monitors))}
	for i, m := range s.monitors {
		if m == nil {
			snap.Displays[i] = Result{Status: StatusTransient, Err: fmt.Errorf("capture: monitor %d not attached", i)}
			continue
		}
		if err := m.grab(); err != nil {
			m.teardown()
			snap.Displays[i] = Result{Status: StatusTransient, Err: err}
			continue
		}
		snap.Displays[i] = Result{Status: StatusFrame, Frame: m.frame}
	}
	return snap
}

func (s *gdiSource) Close() {
	for _, m := range s.monitors {
		if m != nil {
			m.teardown()
		}
	}
}

// inputDesktopOpen reports whether the input desktop can be opened for
// reading, which fails while a secure desktop is active.
func inputDesktopOpen() bool {
	h, _, _ := procOpenInputDesktop.Call(0, 0, desktopReadOK)
	if h == 0 {
		return false
	}
	procCloseDesktop.Call(h)
	return true
}

func (m *monitor) setup() error {
	w := int(m.bounds.right - m.bounds.left)
	h := int(m.bounds.bottom - m.bounds.top)
	dc, _, err := procGetDC.Call(0)
	if dc == 0 {
		return fmt.Errorf("capture: GetDC: %v", err)
	}
	m.screenDC = windows.Handle(dc)
	mem, _, err := procCreateCompatibleDC.Call(dc)
	if mem == 0 {
		m.teardown()
		return fmt.Errorf("capture: CreateCompatibleDC: %v", err)
	}
	m.memDC = windows.Handle(mem)
	info := bitmapInfo{
		header: bitmapInfoHeader{
			size:        uint32(unsafe.Sizeof(bitmapInfoHeader{})),
			width:       int32(w),
			height:      -int32(h), // top-down rows
			planes:      1,
			bitCount:    32,
			compression: biRGB,
		},
	}
	bmp, _, err := procCreateDIBSection.Call(
		mem,
		uintptr(unsafe.Pointer(&info)),
		dibRGBColors,
		uintptr(unsafe.Pointer(&m.bits)),
		0, 0,
	)
	if bmp == 0 {
		m.teardown()
		return fmt.Errorf("capture: CreateDIBSection: %v", err)
	}
	m.bitmap = windows.Handle(bmp)
	procSelectObject.Call(mem, bmp)
	m.frame = Frame{
		Pixels: make([]byte, w*h*4),
		Stride: w * 4,
		Width:  w,
		Height: h,
	}
	return nil
}

func (m *monitor) grab() error {
	if m.bitmap == 0 {
		if err := m.setup(); err != nil {
			return err
		}
	}
	w, h := m.frame.Width, m.frame.Height
	ret, _, err := procBitBlt.Call(
		uintptr(m.memDC), 0, 0, uintptr(w), uintptr(h),
		uintptr(m.screenDC), uintptr(m.bounds.left), uintptr(m.bounds.top),
		srcCopy|captureBlt,
	)
	if ret == 0 {
		return fmt.Errorf("capture: BitBlt: %v", err)
	}
	src := unsafe.Slice((*byte)(m.bits), len(m.frame.Pixels))
	copy(m.frame.Pixels, src)
	return nil
}

func (m *monitor) teardown() {
	if m.bitmap != 0 {
		procDeleteObject.Call(uintptr(m.bitmap))
		m.bitmap = 0
		m.bits = nil
	}
	if m.memDC != 0 {
		procDeleteDC.Call(uintptr(m.memDC))
		m.memDC = 0
	}
	if m.screenDC != 0 {
		procReleaseDC.Call(0, uintptr(m.screenDC))
		m.screenDC = 0
	}
}
