package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/khanhnv2901/netguard/internal/capture"
)

const defaultLineWidth = 80

// progressPrinter keeps a single status line updated while the traffic monitor runs.
type progressPrinter struct {
	out    io.Writer
	name   string
	window time.Duration
	stats  func() capture.Stats

	mu      sync.Mutex
	elapsed time.Duration

	updates   chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func newProgressPrinter(out io.Writer, name string, window time.Duration, stats func() capture.Stats) *progressPrinter {
	if stats == nil {
		stats = func() capture.Stats { return capture.Stats{} }
	}
	return &progressPrinter{
		out:     out,
		name:    name,
		window:  window,
		stats:   stats,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	p.startOnce.Do(func() {
		go p.loop()
	})
}

// Tick records the elapsed monitoring time and requests a redraw.
func (p *progressPrinter) Tick(elapsed time.Duration) {
	p.mu.Lock()
	p.elapsed = elapsed
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

// Stop ends the status line. It is safe to call more than once and before Start.
func (p *progressPrinter) Stop() {
	if p == nil {
		return
	}
	p.stopOnce.Do(func() {
		neverStarted := false
		p.startOnce.Do(func() { neverStarted = true })
		if neverStarted {
			return
		}
		close(p.done)
		<-p.stopped
		fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", lineWidth(p.out)))
		p.print()
		fmt.Fprintln(p.out)
	})
}

func (p *progressPrinter) loop() {
	defer close(p.stopped)

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.updates:
			p.print()
		case <-ticker.C:
			p.print()
		case <-p.done:
			return
		}
	}
}

func (p *progressPrinter) print() {
	p.mu.Lock()
	elapsed := p.elapsed
	p.mu.Unlock()

	s := p.stats()

	window := "until interrupted"
	if p.window > 0 {
		window = p.window.String()
	}

	line := fmt.Sprintf("\r[%s] Elapsed: %s/%s Packets:%d Leaks:%d FileEvents:%d",
		p.name, elapsed.Truncate(time.Second), window, s.PacketsSeen, s.Leaks, s.FileEvents)
	fmt.Fprintf(p.out, "%s", line)
}

// isTerminal reports whether w is an interactive terminal; the status line
// relies on carriage returns and is noise anywhere else.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func lineWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultLineWidth
}
