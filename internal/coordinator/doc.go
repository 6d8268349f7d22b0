// Package coordinator owns the poll lifecycle between the hub client and
// everything that consumes device state.
//
// One goroutine runs all cycles, whether triggered by the interval ticker
// or an explicit Refresh, so at most one cycle is ever in flight. Within a
// cycle devices are fetched strictly in order, bounding worst-case cycle
// latency at devices × per-request timeout.
//
// The snapshot (MAC → latest status document) follows an all-or-nothing
// rule: a cycle either replaces it wholesale or leaves it untouched. The
// single exception is SetStateKey, the optimistic-write entry point used
// by command handlers, which swaps in a patched copy of one device's
// document. Consumers subscribe for change events rather than polling the
// snapshot themselves.
package coordinator
