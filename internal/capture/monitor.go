// Package capture watches physical interfaces for traffic that bypasses the
// VPN tunnel and watches sensitive files for changes while a run is in progress.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/netguard/internal/domain/policy"
	"github.com/khanhnv2901/netguard/internal/domain/posture"
	"github.com/khanhnv2901/netguard/internal/shared/constants"
)

// Stats is a live snapshot of monitor counters.
type Stats struct {
	PacketsSeen uint64
	Leaks       uint64
	FileEvents  uint64
}

type event struct {
	leak *posture.LeakEvent
	file *posture.FileEvent
	err  string
}

// Monitor captures leaked packets on the policy's physical interfaces.
type Monitor struct {
	Opener     Opener
	LocalAddrs func(vpnInterface string) ([]netip.Addr, error)
	Logger     *zap.SugaredLogger

	logLimiter *rate.Limiter
	packets    atomic.Uint64
	leaks      atomic.Uint64
	files      atomic.Uint64
	suppressed atomic.Uint64
}

// NewMonitor returns a monitor that logs at most five leaks per second.
func NewMonitor(opener Opener, logger *zap.SugaredLogger) *Monitor {
	if opener == nil {
		opener = NewPcapOpener(constants.CaptureReadTimeout)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Monitor{
		Opener:     opener,
		LocalAddrs: OSLocalAddrs,
		Logger:     logger,
		logLimiter: rate.NewLimiter(rate.Every(time.Second/5), 5),
	}
}

// Stats is safe to call while Run is in progress.
func (m *Monitor) Stats() Stats {
	return Stats{
		PacketsSeen: m.packets.Load(),
		Leaks:       m.leaks.Load(),
		FileEvents:  m.files.Load(),
	}
}

// Start runs the monitor in its own goroutine. The channel receives exactly one
// result and is never closed.
func (m *Monitor) Start(ctx context.Context, p policy.Policy) <-chan *posture.TrafficMonitorResult {
	out := make(chan *posture.TrafficMonitorResult, 1)
	go func() {
		started := time.Now()
		defer func() {
			if r := recover(); r != nil {
				m.Logger.Errorw("Traffic monitor panicked", "panic", r)
				out <- &posture.TrafficMonitorResult{
					Interfaces:  slices.Clone(p.PhysicalInterfaces),
					StartedAt:   started,
					EndedAt:     time.Now(),
					PacketsSeen: m.packets.Load(),
					Errors:      []string{fmt.Sprintf("Traffic monitor panicked: %v", r)},
					Interrupted: ctx.Err() != nil,
				}
			}
		}()
		out <- m.Run(ctx, p)
	}()
	return out
}

// Run blocks until MonitorDuration elapses or ctx is cancelled. A zero
// duration runs until cancellation. Failures are recorded in the result.
func (m *Monitor) Run(ctx context.Context, p policy.Policy) *posture.TrafficMonitorResult {
	log := m.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	limiter := m.logLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}

	res := &posture.TrafficMonitorResult{StartedAt: time.Now()}
	devices := m.selectDevices(p.PhysicalInterfaces, res)
	res.Interfaces = devices
	if len(devices) == 0 {
		res.Errors = append(res.Errors, "No valid physical interfaces found to monitor.")
	}

	var locals []netip.Addr
	if m.LocalAddrs != nil {
		var err error
		locals, err = m.LocalAddrs(p.VPNInterface)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to determine local addresses: %v", err))
		}
	}
	if len(locals) == 0 {
		log.Warn("no local addresses found on physical interfaces; leak filter is not restricted by source")
		res.Findings = append(res.Findings, "No local IP addresses found on physical interfaces; capture filter matches any source.")
	}
	filter := BuildFilter(locals, p)
	log.Infow("Starting traffic monitor", "interfaces", devices, "filter", filter, "duration", p.MonitorDuration)

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.MonitorDuration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.MonitorDuration)
	}
	defer cancel()

	events := make(chan event, 64)
	var wg sync.WaitGroup
	for _, dev := range devices {
		wg.Add(1)
		go func(dev string) {
			defer wg.Done()
			m.capture(runCtx, dev, filter, events)
		}(dev)
	}
	if len(p.WatchedFiles) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			watchFiles(runCtx, p.WatchedFiles, events)
		}()
	}
	go func() {
		wg.Wait()
		close(events)
	}()

	for ev := range events {
		switch {
		case ev.leak != nil:
			res.Leaks = append(res.Leaks, *ev.leak)
			if limiter.Allow() {
				log.Warnw("Potential traffic leak", "leak", ev.leak.String())
			} else {
				m.suppressed.Add(1)
			}
		case ev.file != nil:
			m.files.Add(1)
			res.FileEvents = append(res.FileEvents, *ev.file)
			log.Warnw("Watched file changed", "path", ev.file.Path, "op", ev.file.Op)
		case ev.err != "":
			res.Errors = append(res.Errors, ev.err)
			log.Errorw("Traffic monitor error", "error", ev.err)
		}
	}

	res.EndedAt = time.Now()
	res.PacketsSeen = m.packets.Load()
	res.Interrupted = ctx.Err() != nil
	if n := m.suppressed.Load(); n > 0 {
		log.Infow("Leak log lines suppressed", "count", n)
	}
	if n := len(res.Leaks); n > 0 {
		res.Findings = append(res.Findings, fmt.Sprintf("Detected %d potential leak(s) on %v.", n, devices))
	}
	log.Infow("Traffic monitor stopped",
		"packets", res.PacketsSeen,
		"leaks", len(res.Leaks),
		"file_events", len(res.FileEvents),
		"interrupted", res.Interrupted,
		"cause", context.Cause(ctx),
	)
	return res
}

func (m *Monitor) selectDevices(configured []string, res *posture.TrafficMonitorResult) []string {
	if len(configured) == 0 {
		return nil
	}
	available, err := m.Opener.Devices()
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("Failed to list capture devices: %v", err))
		return nil
	}
	var out []string
	for _, name := range configured {
		if !slices.Contains(available, name) {
			res.Errors = append(res.Errors, fmt.Sprintf("Configured physical interface '%s' not found.", name))
			continue
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func (m *Monitor) capture(ctx context.Context, device, filter string, events chan<- event) {
	src, err := m.Opener.Open(device, filter)
	if err != nil {
		events <- event{err: fmt.Sprintf("Failed to start capture on %s: %v", device, err)}
		return
	}
	defer src.Close()

	decoder := src.LinkType()
	for ctx.Err() == nil {
		data, ci, err := src.ReadPacketData()
		switch {
		case err == nil:
		case errors.Is(err, pcap.NextErrorTimeoutExpired):
			continue
		case errors.Is(err, io.EOF):
			return
		default:
			events <- event{err: fmt.Sprintf("Capture on %s failed: %v", device, err)}
			return
		}
		m.packets.Add(1)
		leak, ok := DecodeLeak(data, decoder, device, ci)
		if !ok {
			continue
		}
		m.leaks.Add(1)
		events <- event{leak: &leak}
	}
}
