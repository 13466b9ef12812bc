package supervisor

import "time"

// State is a step of the verification state machine.
type State string

const (
	StateInit              State = "INIT"
	StateStaticChecks      State = "STATIC_CHECKS"
	StateMonitoring        State = "MONITORING"
	StateSkipMonitoring    State = "SKIP_MONITORING"
	StateAggregate         State = "AGGREGATE"
	StateReport            State = "REPORT"
	StateExitOK            State = "EXIT_OK"
	StateExitLowConfidence State = "EXIT_LOW_CONFIDENCE"
	StateExitError         State = "EXIT_ERROR"
	StateExitInterrupted   State = "EXIT_INTERRUPTED"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitLowConfidence = 1
	ExitError         = 2
	ExitInterrupted   = 130
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	switch s {
	case StateExitOK, StateExitLowConfidence, StateExitError, StateExitInterrupted:
		return true
	}
	return false
}

// ExitCode maps a terminal state to its process exit code.
func (s State) ExitCode() int {
	switch s {
	case StateExitLowConfidence:
		return ExitLowConfidence
	case StateExitError:
		return ExitError
	case StateExitInterrupted:
		return ExitInterrupted
	}
	return ExitOK
}

// Duration is the wall time between the start and the end of a run.
func (o *Outcome) Duration() time.Duration {
	if o.CompletedAt.IsZero() {
		return 0
	}
	return o.CompletedAt.Sub(o.StartedAt)
}
