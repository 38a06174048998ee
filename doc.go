// Package atomic_value provides lock-free containers for small values:
// generic Cell holds any pointer-free value of at most 8 bytes packed into
// one atomic machine word, F64/F32 hold IEEE floats with numeric and
// tolerance-aware operations, Ref holds values wider than a word through
// boxed snapshots. All conditional updates run the same protocol: observe
// the current value, compute a candidate, attempt one hardware CAS, retry
// from a fresh observation when another writer got there first.
//
// Progress is lock-free, not wait-free: an update may retry under
// contention, and nothing here takes an OS lock or parks a thread. Spinning
// operations pause through Backoff (hot re-checks, then scheduler yields,
// then short sleeps). None of them accept a timeout; a caller that needs
// bounded waiting composes it outside, e.g. with TryUpdateIf in its own
// deadline loop.
//
// Equality everywhere is bit equality of the stored word, never the Go ==
// of the value type. For floats that means NaN matches a bit-identical NaN
// and -0 does not match +0. Ordering is sequentially consistent per
// container; operations on two different containers are not ordered
// relative to each other.
package atomic_value
