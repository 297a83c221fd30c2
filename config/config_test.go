package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
	"minBrightness": 64,
	"fade": 0.05,
	"timeout": 5000,
	"fpsMax": 30,
	"throttleTimer": 3000,
	"displays": [
		{
			"horizontalCount": 10,
			"verticalCount": 5,
			"positions": [
				{"x": 0, "y": 4}, {"x": 0, "y": 3}, {"x": 0, "y": 2},
				{"x": 0, "y": 1}, {"x": 0, "y": 0}, {"x": 1, "y": 0},
				{"x": 2, "y": 0}, {"x": 3, "y": 0}, {"x": 4, "y": 0}
			]
		},
		{"horizontalCount": 0, "verticalCount": 0, "positions": []}
	],
	"servers": [
		{
			"host": "192.168.1.14",
			"port": "7890",
			"alphaChannel": true,
			"channels": [
				{
					"channel": 0,
					"pixels": [
						{"pixelCount": 32, "displayIndex": [[0, 1, 2, 3]]},
						{"pixelCount": 16, "displayIndex": []}
					]
				}
			]
		}
	]
}`

func TestDecodeSampleDocument(t *testing.T) {
	cfg, err := Decode(strings.NewReader(sampleDoc))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.MinBrightness)
	assert.Equal(t, 0.05, cfg.Fade)
	assert.Equal(t, 5*time.Second, cfg.SerialTimeout())
	assert.Equal(t, 3*time.Second, cfg.Throttle())
	assert.Equal(t, 30, cfg.FPSMax)
	require.Len(t, cfg.Displays, 2)
	assert.False(t, cfg.Displays[0].Skip())
	assert.True(t, cfg.Displays[1].Skip())
	assert.Equal(t, 9, cfg.LEDCount())
	require.Len(t, cfg.Servers, 1)
	srv := cfg.Servers[0]
	assert.Equal(t, "192.168.1.14", srv.Host)
	assert.Equal(t, "7890", srv.Port)
	assert.True(t, srv.AlphaChannel)
	require.Len(t, srv.Channels, 1)
	assert.Equal(t, 32, srv.Channels[0].Pixels[0].PixelCount)
}

func TestDecodeDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`{"displays": []}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultMinBrightness, cfg.MinBrightness)
	assert.Equal(t, DefaultFade, cfg.Fade)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultFPSMax, cfg.FPSMax)
	assert.Equal(t, DefaultThrottleTimer, cfg.ThrottleTimer)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "fade out of range",
			doc:  `{"fade": 0.6}`,
			want: "fade",
		},
		{
			name: "negative minBrightness",
			doc:  `{"minBrightness": -1}`,
			want: "minBrightness",
		},
		{
			name: "position outside grid",
			doc: `{"displays": [{"horizontalCount": 2, "verticalCount": 2,
				"positions": [{"x": 2, "y": 0}]}]}`,
			want: "outside",
		},
		{
			name: "placeholder with positions",
			doc: `{"displays": [{"horizontalCount": 0, "verticalCount": 0,
				"positions": [{"x": 0, "y": 0}]}]}`,
			want: "placeholder",
		},
		{
			name: "displayIndex references missing LED",
			doc: `{"displays": [{"horizontalCount": 1, "verticalCount": 1,
				"positions": [{"x": 0, "y": 0}]}],
				"servers": [{"host": "h", "port": "7890", "channels": [
					{"channel": 0, "pixels": [{"pixelCount": 4, "displayIndex": [[0, 1]]}]}]}]}`,
			want: "no LED",
		},
		{
			name: "displayIndex references missing display",
			doc: `{"displays": [],
				"servers": [{"host": "h", "port": "7890", "channels": [
					{"channel": 0, "pixels": [{"pixelCount": 4, "displayIndex": [[0]]}]}]}]}`,
			want: "display",
		},
		{
			name: "missing host",
			doc:  `{"servers": [{"port": "7890"}]}`,
			want: "host",
		},
		{
			name: "zero pixelCount",
			doc: `{"servers": [{"host": "h", "port": "7890", "channels": [
				{"channel": 0, "pixels": [{"pixelCount": 0}]}]}]}`,
			want: "pixelCount",
		},
		{
			name: "channel out of range",
			doc: `{"servers": [{"host": "h", "port": "7890", "channels": [
				{"channel": 256, "pixels": []}]}]}`,
			want: "channel",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
