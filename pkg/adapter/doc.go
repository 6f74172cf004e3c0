/*
Package adapter defines the contracts between the Rosetta fabric and the
adapters that speak concrete provider protocols.

A Frontend converts caller-shaped payloads to and from the IR. A Backend
executes IR requests against a provider and converts the results back. The
fabric core never touches a vendor wire format; it routes, retries, and
transforms IR between these two contracts.

Example usage:

	front := adapter.NewPassthrough("passthrough")
	back := adapter.NewStaticBackend(adapter.StaticConfig{
		Name:   "demo",
		Models: []string{"demo-small"},
	})
	defer back.Close()

	irReq, err := front.ToIR(req)
	if err != nil {
		return err
	}
	resp, err := back.Execute(ctx, irReq)

Optional behavior (health checks, cost estimation, model listing) is
declared through the HealthChecker, CostEstimator, and ModelLister
interfaces; holders discover it with type assertions, so small adapters and
test doubles only implement what they need.

All adapter operations fail with *Error carrying a taxonomy code, a
retryability flag, and provenance naming the component that failed.
*/
package adapter
