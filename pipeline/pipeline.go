// package pipeline binds capture, sampling and the sinks into one
// frame-paced loop.
package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/wravery/adalight/capture"
	"github.com/wravery/adalight/display"
	"github.com/wravery/adalight/gamma"
)

// Sink consumes one sampled color vector per tick.
type Sink interface {
	Push(set *display.Set) error
	Close() error
}

// Options are the sampling and pacing knobs from the configuration
// document, read-only after construction.
type Options struct {
	FPSMax        int
	ThrottleTimer time.Duration
	Fade          float64
	MinBrightness int
}

type Pipeline struct {
	// Debug enables logging of recovered capture and sink errors.
	Debug bool

	src   capture.Source
	set   *display.Set
	gamma *gamma.Table
	opts  Options
	sinks []Sink
}

func New(src capture.Source, set *display.Set, g *gamma.Table, opts Options) *Pipeline {
	return &Pipeline{
		src:   src,
		set:   set,
		gamma: g,
		opts:  opts,
	}
}

// AddSink registers a sink. Sinks are pushed in registration order and
// closed in reverse order on shutdown.
func (p *Pipeline) AddSink(s Sink) {
	p.sinks = append(p.sinks, s)
}

// Run loops until ctx is cancelled. Each tick snapshots the capture
// source, samples every display that produced a fresh frame and fans
// the set out to all sinks. Throttled snapshots sleep ThrottleTimer
// instead; otherwise the tick is padded to the FPSMax budget. Overruns
// proceed immediately with no catch-up.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.closeSinks()
	budget := time.Second / time.Duration(p.opts.FPSMax)
	for {
		if ctx.Err() != nil {
			return nil
		}
		start := time.Now()
		snap := p.src.Snapshot()
		if snap.Throttled {
			if !sleep(ctx, p.opts.ThrottleTimer) {
				return nil
			}
			continue
		}
		displays := p.set.Displays()
		for i, res := range snap.Displays {
			if i >= len(displays) {
				break
			}
			switch res.Status {
			case capture.StatusFrame:
				displays[i].Sample(res.Frame, p.gamma, p.opts.Fade, p.opts.MinBrightness)
			case capture.StatusTransient:
				if p.Debug {
					log.Printf("capture: display %d: %v", i, res.Err)
				}
			}
		}
		for _, s := range p.sinks {
			if err := s.Push(p.set); err != nil && p.Debug {
				log.Printf("sink: %v", err)
			}
		}
		if pad := budget - time.Since(start); pad > 0 {
			if !sleep(ctx, pad) {
				return nil
			}
		}
	}
}

func (p *Pipeline) closeSinks() {
	for i := len(p.sinks) - 1; i >= 0; i-- {
		if err := p.sinks[i].Close(); err != nil && p.Debug {
			log.Printf("sink: close: %v", err)
		}
	}
}

// sleep waits for d or cancellation, reporting false when cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
