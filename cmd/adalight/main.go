// command adalight drives ambient LED strips from desktop screen
// content. It samples the edges of every attached display, smooths the
// colors and streams them to an AdaLight serial device and to any
// configured Open Pixel Control servers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wravery/adalight/adalight"
	"github.com/wravery/adalight/capture"
	"github.com/wravery/adalight/config"
	"github.com/wravery/adalight/display"
	"github.com/wravery/adalight/gamma"
	"github.com/wravery/adalight/opc"
	"github.com/wravery/adalight/pipeline"
)

var (
	configPath = flag.String("config", "AdaLight.json", "configuration document")
	serialDev  = flag.String("device", "", "serial device, overrides port discovery")
	debug      = flag.Bool("debug", false, "log recovered capture errors and sink close errors; sink connect and write failures are not logged")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "adalight: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	set := display.NewSet(displayConfigs(cfg))
	src, err := capture.Open(len(cfg.Displays))
	if err != nil {
		return err
	}
	defer src.Close()

	p := pipeline.New(src, set, gamma.New(), pipeline.Options{
		FPSMax:        cfg.FPSMax,
		ThrottleTimer: cfg.Throttle(),
		Fade:          cfg.Fade,
		MinBrightness: cfg.MinBrightness,
	})
	p.Debug = *debug
	p.AddSink(adalight.NewSink(*serialDev, set.LEDCount(), cfg.SerialTimeout()))
	for _, srv := range cfg.Servers {
		p.AddSink(opc.NewSink(srv.Host, srv.Port, srv.AlphaChannel, opcChannels(srv)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Printf("adalight: %d LEDs across %d displays, %d FPS max", set.LEDCount(), len(cfg.Displays), cfg.FPSMax)
	return p.Run(ctx)
}

func displayConfigs(cfg *config.Config) []display.Config {
	configs := make([]display.Config, len(cfg.Displays))
	for i, d := range cfg.Displays {
		dc := display.Config{
			HorizontalCount: d.HorizontalCount,
			VerticalCount:   d.VerticalCount,
		}
		for _, p := range d.Positions {
			dc.Positions = append(dc.Positions, display.Position{X: p.X, Y: p.Y})
		}
		configs[i] = dc
	}
	return configs
}

func opcChannels(srv config.Server) []opc.Channel {
	channels := make([]opc.Channel, len(srv.Channels))
	for i, ch := range srv.Channels {
		oc := opc.Channel{Channel: uint8(ch.Channel)}
		for _, r := range ch.Pixels {
			oc.Pixels = append(oc.Pixels, opc.PixelRange{
				PixelCount:   r.PixelCount,
				DisplayIndex: r.DisplayIndex,
			})
		}
		channels[i] = oc
	}
	return channels
}
