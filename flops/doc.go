// Package flops counts floating point work per algorithmic phase.
//
// Counters are process-scoped accumulators created by the caller and passed
// by reference into the engines (hss.WithCounters, hssmpi.WithCounters).
// At the end of a distributed run Counters.Reduce sums them across ranks
// into one reporting rank, and Snapshot.Summarize produces the familiar
// breakdown (compression, sampling, factorization, Schur, dense fallback,
// total). NewCollector exposes the same numbers to Prometheus.
//
// The counts are theoretical operation counts (GemmFlops, LUFlops,
// TrsmFlops), not hardware measurements.
package flops
