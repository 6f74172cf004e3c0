// Rosetta is a universal adapter fabric for LLM chat services.
//
// It bridges N frontend wire formats to M backends through a typed
// intermediate representation, providing:
//   - Strategy-based routing with circuit breakers and failover
//   - Model translation across provider families
//   - Composable middleware (validation, transformation, retry, tracing)
//   - Prometheus metrics and lifecycle events
//
// Usage:
//
//	# Start the fabric with the default demo configuration
//	rosetta run
//
//	# Start with a configuration file
//	rosetta run --config /etc/rosetta/rosetta.yaml
//
//	# Check a configuration without starting
//	rosetta validate --config rosetta.yaml
//
//	# Show version information
//	rosetta version
package main

func main() {
	Execute()
}
