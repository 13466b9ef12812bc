package errors

import "errors"

// Domain errors
var (
	// Run lifecycle errors
	ErrInterrupted        = errors.New("interrupted by operator signal")
	ErrMonitorJoinTimeout = errors.New("monitor task did not stop before join timeout")
	ErrCollectorPanic     = errors.New("collector panicked")
	ErrPipelinePanic      = errors.New("verification pipeline panicked")

	// Policy errors
	ErrInvalidPolicy        = errors.New("invalid policy")
	ErrEmptyInterfaceName   = errors.New("VPN interface name cannot be empty")
	ErrInvalidPort          = errors.New("port must be between 1 and 65535")
	ErrInvalidLookupURL     = errors.New("external IP check URL must be http or https")
	ErrRequiredModulesUnset = errors.New("enforce_required_modules_only requires required_kernel_modules")

	// Capture errors
	ErrCaptureUnavailable = errors.New("packet capture unavailable")

	// Report errors
	ErrReportNotFound = errors.New("report not found")
	ErrInvalidRunID   = errors.New("invalid run ID")

	// Audit errors
	ErrInvalidHashAlgorithm = errors.New("invalid hash algorithm")
	ErrDigestNotFound       = errors.New("report digest not found")

	// Repository errors
	ErrRepositoryOperation   = errors.New("repository operation failed")
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")
)
