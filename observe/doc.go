// Package observe provides observability primitives for memoized functions.
//
// It is a pure instrumentation library: structured logging, OpenTelemetry
// spans around computations, and lookup/compute metrics. The cache package
// consumes a *Middleware; a nil *Middleware records nothing.
package observe
