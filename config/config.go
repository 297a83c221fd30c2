// package config loads and validates the AdaLight.json document.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Defaults applied to absent options.
const (
	DefaultMinBrightness = 64
	DefaultFade          = 0.05
	DefaultTimeout       = 5000
	DefaultFPSMax        = 30
	DefaultThrottleTimer = 3000
)

type Config struct {
	MinBrightness int     `json:"minBrightness"`
	Fade          float64 `json:"fade"`
	// Timeout and ThrottleTimer are milliseconds.
	Timeout       int       `json:"timeout"`
	FPSMax        int       `json:"fpsMax"`
	ThrottleTimer int       `json:"throttleTimer"`
	Displays      []Display `json:"displays"`
	Servers       []Server  `json:"servers"`
}

type Display struct {
	HorizontalCount int        `json:"horizontalCount"`
	VerticalCount   int        `json:"verticalCount"`
	Positions       []Position `json:"positions"`
}

func (d Display) Skip() bool {
	return d.HorizontalCount == 0 && d.VerticalCount == 0
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Server struct {
	Host string `json:"host"`
	// Port stays a string per getaddrinfo conventions.
	Port         string    `json:"port"`
	AlphaChannel bool      `json:"alphaChannel"`
	Channels     []Channel `json:"channels"`
}

type Channel struct {
	Channel int          `json:"channel"`
	Pixels  []PixelRange `json:"pixels"`
}

type PixelRange struct {
	PixelCount   int     `json:"pixelCount"`
	DisplayIndex [][]int `json:"displayIndex"`
}

func (c *Config) SerialTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

func (c *Config) Throttle() time.Duration {
	return time.Duration(c.ThrottleTimer) * time.Millisecond
}

// LEDCount is the total LED count across all displays.
func (c *Config) LEDCount() int {
	n := 0
	for _, d := range c.Displays {
		n += len(d.Positions)
	}
	return n
}

// Load reads, defaults and validates a configuration document. Any
// validation failure is fatal to startup.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (*Config, error) {
	cfg := &Config{
		MinBrightness: DefaultMinBrightness,
		Fade:          DefaultFade,
		Timeout:       DefaultTimeout,
		FPSMax:        DefaultFPSMax,
		ThrottleTimer: DefaultThrottleTimer,
	}
	dec := json.NewDecoder(r)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MinBrightness < 0 || c.MinBrightness > 255 {
		return fmt.Errorf("minBrightness %d out of range [0,255]", c.MinBrightness)
	}
	if c.Fade < 0 || c.Fade > 0.5 {
		return fmt.Errorf("fade %g out of range [0,0.5]", c.Fade)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout %d must be positive", c.Timeout)
	}
	if c.FPSMax <= 0 {
		return fmt.Errorf("fpsMax %d must be positive", c.FPSMax)
	}
	if c.ThrottleTimer <= 0 {
		return fmt.Errorf("throttleTimer %d must be positive", c.ThrottleTimer)
	}
	for i, d := range c.Displays {
		if err := d.validate(); err != nil {
			return fmt.Errorf("displays[%d]: %w", i, err)
		}
	}
	for i, s := range c.Servers {
		if err := s.validate(c.Displays); err != nil {
			return fmt.Errorf("servers[%d]: %w", i, err)
		}
	}
	return nil
}

func (d Display) validate() error {
	if d.Skip() {
		if len(d.Positions) > 0 {
			return fmt.Errorf("skip placeholder carries %d positions", len(d.Positions))
		}
		return nil
	}
	if d.HorizontalCount <= 0 || d.VerticalCount <= 0 {
		return fmt.Errorf("grid %dx%d invalid", d.HorizontalCount, d.VerticalCount)
	}
	for i, p := range d.Positions {
		if p.X < 0 || p.X >= d.HorizontalCount || p.Y < 0 || p.Y >= d.VerticalCount {
			return fmt.Errorf("positions[%d] (%d,%d) outside %dx%d grid",
				i, p.X, p.Y, d.HorizontalCount, d.VerticalCount)
		}
	}
	return nil
}

func (s Server) validate(displays []Display) error {
	if s.Host == "" {
		return fmt.Errorf("missing host")
	}
	if s.Port == "" {
		return fmt.Errorf("missing port")
	}
	for i, ch := range s.Channels {
		if ch.Channel < 0 || ch.Channel > 255 {
			return fmt.Errorf("channels[%d]: channel %d out of range [0,255]", i, ch.Channel)
		}
		for j, r := range ch.Pixels {
			if r.PixelCount <= 0 {
				return fmt.Errorf("channels[%d].pixels[%d]: pixelCount %d must be positive", i, j, r.PixelCount)
			}
			if len(r.DisplayIndex) > len(displays) {
				return fmt.Errorf("channels[%d].pixels[%d]: %d display entries for %d displays",
					i, j, len(r.DisplayIndex), len(displays))
			}
			for di, leds := range r.DisplayIndex {
				for _, led := range leds {
					if led < 0 || led >= len(displays[di].Positions) {
						return fmt.Errorf("channels[%d].pixels[%d]: display %d has no LED %d",
							i, j, di, led)
					}
				}
			}
		}
	}
	return nil
}
