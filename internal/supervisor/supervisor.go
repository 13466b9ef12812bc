// Package supervisor sequences a verification run: static checks, the optional
// traffic monitor task, aggregation, persistence and the exit decision.
package supervisor

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanhnv2901/netguard/internal/checker"
	"github.com/khanhnv2901/netguard/internal/domain/policy"
	"github.com/khanhnv2901/netguard/internal/domain/posture"
	"github.com/khanhnv2901/netguard/internal/scoring"
	"github.com/khanhnv2901/netguard/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/netguard/internal/shared/errors"
)

// TrafficMonitor runs as a concurrent task. The returned channel delivers
// exactly one result, after ctx is cancelled or the capture window ends.
type TrafficMonitor interface {
	Start(ctx context.Context, p policy.Policy) <-chan *posture.TrafficMonitorResult
}

// Outcome is everything a caller needs after Run returns.
type Outcome struct {
	RunID       string
	State       State
	ExitCode    int
	Results     *posture.AllCheckResults
	Score       float64
	Critical    []string
	Findings    []scoring.Finding
	StartedAt   time.Time
	CompletedAt time.Time

	// ModerateConfidence is set when the run passed with a score below the high threshold.
	ModerateConfidence bool
	Interrupted        bool

	Report    *posture.RunReport
	Err       error
	ReportErr error
}

// Supervisor owns AllCheckResults for the duration of one run.
type Supervisor struct {
	Policy     policy.Policy
	Collectors []checker.Collector
	Monitor    TrafficMonitor
	Scorer     *scoring.Scorer
	Repository posture.Repository
	Logger     *zap.SugaredLogger

	// Skip lists categories disabled by the operator.
	Skip []posture.Category

	Operator string
	Hostname string

	PollInterval time.Duration
	JoinTimeout  time.Duration

	// OnState and OnTick are optional observers for progress output.
	OnState func(State)
	OnTick  func(elapsed time.Duration)
}

// New returns a supervisor with default scoring, poll and join settings.
func New(p policy.Policy, collectors []checker.Collector, monitor TrafficMonitor, logger *zap.SugaredLogger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Supervisor{
		Policy:       p,
		Collectors:   collectors,
		Monitor:      monitor,
		Scorer:       scoring.NewScorer(),
		Logger:       logger,
		PollInterval: constants.MonitorPollInterval,
		JoinTimeout:  constants.MonitorJoinTimeout,
	}
}

// Run executes one verification run. It never panics and always returns an
// Outcome with a terminal state. Cancelling ctx is treated as an operator
// interrupt; the partial results are still scored and saved.
func (s *Supervisor) Run(ctx context.Context) *Outcome {
	if s.Logger == nil {
		s.Logger = zap.NewNop().Sugar()
	}
	out := &Outcome{
		RunID:     uuid.NewString(),
		Results:   &posture.AllCheckResults{},
		StartedAt: time.Now(),
	}
	log := s.Logger.With("run_id", out.RunID)

	if err := s.guard(out, func() {
		s.transition(out, StateInit)
		s.runStatic(ctx, out)
		s.runMonitor(ctx, out)
	}); err != nil {
		log.Errorw("Verification pipeline aborted", "error", err)
		out.Err = err
	}

	if err := s.guard(out, func() {
		s.transition(out, StateAggregate)
		s.aggregate(out)
	}); err != nil {
		log.Errorw("Aggregation failed", "error", err)
		if out.Err == nil {
			out.Err = err
		}
	}

	if ctx.Err() != nil {
		out.Interrupted = true
	}
	final := s.decide(out)
	out.ExitCode = final.ExitCode()

	if err := s.guard(out, func() {
		s.transition(out, StateReport)
		s.report(ctx, out, final)
	}); err != nil {
		log.Errorw("Reporting failed", "error", err)
		out.ReportErr = err
	}

	out.CompletedAt = time.Now()
	_ = s.guard(out, func() { s.transition(out, final) })
	out.State = final

	log.Infow("Verification finished",
		"state", out.State,
		"exit_code", out.ExitCode,
		"score", out.Score,
		"duration", out.Duration(),
	)
	return out
}

func (s *Supervisor) guard(out *Outcome, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w during %s: %v", sharedErrors.ErrPipelinePanic, out.State, r)
		}
	}()
	fn()
	return nil
}

func (s *Supervisor) transition(out *Outcome, next State) {
	s.Logger.Debugw("State transition", "from", out.State, "to", next)
	out.State = next
	if s.OnState != nil {
		s.OnState(next)
	}
}

func (s *Supervisor) runStatic(ctx context.Context, out *Outcome) {
	s.transition(out, StateStaticChecks)
	for _, c := range s.Collectors {
		if ctx.Err() != nil {
			s.Logger.Warnw("Interrupted during static checks; remaining checks not run", "cause", context.Cause(ctx))
			out.Interrupted = true
			return
		}
		if s.skipped(c.Category()) {
			s.store(out, posture.Skipped{Of: c.Category(), Reason: "disabled by operator"})
			continue
		}
		if r := s.runStep(ctx, c); r != nil {
			s.store(out, r)
		}
	}
}

func (s *Supervisor) runStep(ctx context.Context, c checker.Collector) (res posture.CategoryResult) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Errorw("Check panicked", "category", c.Category(), "panic", r)
			res = posture.Failed{Of: c.Category(), Reason: fmt.Sprintf("%v: %v", sharedErrors.ErrCollectorPanic, r)}
		}
	}()

	s.Logger.Infow("Running check", "category", c.Category())
	r, err := c.Collect(ctx, s.Policy)
	if err != nil {
		s.Logger.Errorw("Check failed", "category", c.Category(), "error", err)
		return posture.Failed{Of: c.Category(), Reason: err.Error()}
	}
	return r
}

func (s *Supervisor) runMonitor(ctx context.Context, out *Outcome) {
	switch {
	case s.skipped(posture.CategoryTrafficMonitor):
		s.transition(out, StateSkipMonitoring)
		s.store(out, posture.Skipped{Of: posture.CategoryTrafficMonitor, Reason: "disabled by operator"})
		return
	case !s.Policy.MonitoringEnabled():
		s.transition(out, StateSkipMonitoring)
		s.store(out, posture.Skipped{Of: posture.CategoryTrafficMonitor, Reason: "no physical interfaces configured"})
		return
	case s.Monitor == nil:
		s.transition(out, StateSkipMonitoring)
		s.store(out, posture.Failed{Of: posture.CategoryTrafficMonitor, Reason: "traffic monitor unavailable"})
		return
	case ctx.Err() != nil:
		s.transition(out, StateSkipMonitoring)
		out.Interrupted = true
		return
	}

	s.transition(out, StateMonitoring)
	monCtx, monCancel := context.WithCancelCause(ctx)
	defer monCancel(nil)

	started := time.Now()
	results := s.Monitor.Start(monCtx, s.Policy)

	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case res := <-results:
			s.storeMonitor(out, res)
			return
		case <-ticker.C:
			if s.OnTick != nil {
				s.OnTick(time.Since(started))
			}
			if ctx.Err() == nil {
				continue
			}
			out.Interrupted = true
			s.Logger.Warnw("Interrupt received; stopping traffic monitor", "cause", context.Cause(ctx))
			monCancel(context.Cause(ctx))
			s.join(out, results)
			return
		}
	}
}

func (s *Supervisor) join(out *Outcome, results <-chan *posture.TrafficMonitorResult) {
	timer := time.NewTimer(s.joinTimeout())
	defer timer.Stop()
	select {
	case res := <-results:
		s.storeMonitor(out, res)
	case <-timer.C:
		s.Logger.Errorw("Traffic monitor did not stop in time", "timeout", s.joinTimeout())
		s.store(out, posture.Failed{Of: posture.CategoryTrafficMonitor, Reason: sharedErrors.ErrMonitorJoinTimeout.Error()})
	}
}

func (s *Supervisor) storeMonitor(out *Outcome, res *posture.TrafficMonitorResult) {
	if res == nil {
		s.store(out, posture.Failed{Of: posture.CategoryTrafficMonitor, Reason: "traffic monitor returned no result"})
		return
	}
	s.store(out, res)
}

func (s *Supervisor) store(out *Outcome, r posture.CategoryResult) {
	if err := out.Results.Set(r); err != nil {
		s.Logger.Errorw("Discarding category result", "category", r.Category(), "error", err)
	}
}

func (s *Supervisor) aggregate(out *Outcome) {
	scorer := s.Scorer
	if scorer == nil {
		scorer = scoring.NewScorer()
	}
	a := scorer.Assess(out.Results)
	out.Score = a.Score
	out.Findings = a.Findings
	out.Critical = a.Messages()
	out.Results.ConfidenceScore = a.Score
	out.Results.CriticalFindings = out.Critical
}

func (s *Supervisor) decide(out *Outcome) State {
	switch {
	case out.Err != nil:
		return StateExitError
	case out.Interrupted:
		return StateExitInterrupted
	case out.Score >= constants.ConfidenceHigh:
		return StateExitOK
	case out.Score >= constants.ConfidenceModerate:
		out.ModerateConfidence = true
		s.Logger.Warnw("Moderate confidence in VPN posture", "score", out.Score)
		return StateExitOK
	default:
		return StateExitLowConfidence
	}
}

func (s *Supervisor) report(ctx context.Context, out *Outcome, final State) {
	out.Report = &posture.RunReport{
		ID:               out.RunID,
		Operator:         s.Operator,
		Hostname:         s.Hostname,
		StartedAt:        out.StartedAt,
		CompletedAt:      time.Now(),
		State:            string(final),
		ExitCode:         out.ExitCode,
		Score:            out.Score,
		CriticalFindings: out.Critical,
		Results:          out.Results,
	}
	if s.Repository == nil {
		return
	}
	// an interrupted run still gets persisted
	if err := s.Repository.Save(context.WithoutCancel(ctx), out.Report); err != nil {
		s.Logger.Errorw("Failed to save run report", "error", err)
		out.ReportErr = err
	}
}

func (s *Supervisor) skipped(c posture.Category) bool {
	return slices.Contains(s.Skip, c)
}

func (s *Supervisor) pollInterval() time.Duration {
	if s.PollInterval <= 0 {
		return constants.MonitorPollInterval
	}
	return s.PollInterval
}

func (s *Supervisor) joinTimeout() time.Duration {
	if s.JoinTimeout <= 0 {
		return constants.MonitorJoinTimeout
	}
	return s.JoinTimeout
}
