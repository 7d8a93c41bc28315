// Package comm is a message-passing substrate for distributed numerical
// kernels that run inside a single Go process.
//
// A World holds a fixed number of ranks; Run drives each rank from its own
// goroutine. Ranks talk through communicators (Comm) that cover contiguous
// ranges of world ranks, the same shape a recursive tree partition produces:
//
//   - point-to-point messages are addressed by (range, sequence, src, dst),
//     so independent sub-communicators never interfere;
//   - collectives (Barrier, Bcast, AllGather, AllToAll, ReduceSum,
//     AllReduceSum, Agree) must be entered by every member in the same order;
//   - every blocking call honours context cancellation, which is how a
//     failing rank releases its peers.
//
// Agree is a cheap cross-rank consistency check: it turns a divergent
// branch decision, which would otherwise deadlock a later collective, into
// ErrDisagreement on every member.
package comm
