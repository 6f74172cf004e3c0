/*
Package warnings provides structured drift-capture for the Rosetta fabric.

Every lossy or substitutive transformation performed while moving a request
between wire formats produces a Warning: a parameter clamped to a legal
range, a system message re-projected for a backend that has no system role,
a model identifier substituted during failover. Warnings ride on response
metadata and stream metadata so callers can observe exactly how their
request drifted on its way through the fabric.

Collecting Warnings:

Layers that produce warnings append them to a Registry, which is safe for
concurrent use:

	reg := warnings.NewRegistry()
	reg.Add(warnings.Warning{
		Category: warnings.CategoryParameterClamped,
		Severity: warnings.SeverityWarning,
		Message:  "temperature 3.1 clamped to 2.0",
		Field:    "temperature",
	})

Merging:

When a request fans out across layers (or backends), each producing its own
warning list, Merge combines them. Merging deduplicates on the triple
(category, field, message) and the first writer wins:

	combined := warnings.Merge(fromNormalizer, fromRouter, fromBackend)

Formatting:

Format renders a warning as "[SEVERITY] message (source)", the form used in
log output and surfaced summaries.
*/
package warnings
