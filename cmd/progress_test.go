package cmd

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khanhnv2901/netguard/internal/capture"
)

// syncBuffer guards a bytes.Buffer written by the printer goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressPrinterRendersStats(t *testing.T) {
	var out syncBuffer
	stats := func() capture.Stats {
		return capture.Stats{PacketsSeen: 42, Leaks: 2, FileEvents: 1}
	}

	p := newProgressPrinter(&out, "monitor", 30*time.Second, stats)
	p.Start()
	p.Tick(12500 * time.Millisecond)
	p.Stop()

	got := out.String()
	want := "[monitor] Elapsed: 12s/30s Packets:42 Leaks:2 FileEvents:1"
	if !strings.Contains(got, want) {
		t.Fatalf("expected output to contain %q, got %q", want, got)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Fatalf("expected Stop to end the line, got %q", got)
	}
}

func TestProgressPrinterOpenEndedWindow(t *testing.T) {
	var out syncBuffer
	p := newProgressPrinter(&out, "monitor", 0, nil)
	p.Start()
	p.Stop()

	if got := out.String(); !strings.Contains(got, "until interrupted") {
		t.Fatalf("expected open-ended window label, got %q", got)
	}
}

func TestProgressPrinterStopWithoutStart(t *testing.T) {
	var out syncBuffer
	p := newProgressPrinter(&out, "monitor", time.Second, nil)

	p.Stop()
	p.Stop()
	p.Start() // no-op after Stop

	if got := out.String(); got != "" {
		t.Fatalf("expected no output when never started, got %q", got)
	}

	var nilPrinter *progressPrinter
	nilPrinter.Stop()
}

func TestProgressPrinterStopIsIdempotent(t *testing.T) {
	var out syncBuffer
	p := newProgressPrinter(&out, "monitor", time.Second, nil)
	p.Start()
	p.Stop()
	first := out.String()
	p.Stop()

	if out.String() != first {
		t.Fatal("second Stop should not print again")
	}
}

func TestProgressOnlyOnTerminals(t *testing.T) {
	var buf bytes.Buffer
	if isTerminal(&buf) {
		t.Fatal("a buffer is not a terminal")
	}
	if got := lineWidth(&buf); got != defaultLineWidth {
		t.Fatalf("expected fallback width %d, got %d", defaultLineWidth, got)
	}
}
