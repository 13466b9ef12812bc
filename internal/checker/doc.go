// Package checker holds the static posture verifiers.
//
// Architecture overview:
//
//   - Verifiers implement the Collector interface (Collect + Category) so the
//     supervisor can run them uniformly and convert failures into Failed slots.
//   - InterfaceVerifier turns an InterfaceSource observation into an
//     InterfaceCheckResult: link state, IP-network membership and, when the
//     policy opts in, the IPLookup cross-check of the externally reported IP.
//   - DNSVerifier parses the resolver file and compares the nameserver set with
//     the expected resolvers using set equality.
//
// None of the verifiers return errors for observation, parse or transport
// failures. Those become status values plus plain-sentence findings so a run
// always produces a decision, even when telemetry is partial.
package checker
