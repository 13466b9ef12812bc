// Package constants centralizes defaults shared across the CLI.
//
// File permissions, network timeouts, supervisor poll intervals and the
// confidence thresholds live here so cmd/ and internal/ packages can refer to
// them without introducing import cycles.
package constants
