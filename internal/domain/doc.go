// Package domain owns variable domain concerns.
//
// Ownership boundary:
// - variable trees (data, relation, alt, agg, repeat)
// - per-session memory and per-attempt paths
// - abstraction of bits into candidate paths
// - specialization of trees into bits
// - deferred relation callbacks and their dependency order
//
// The engine is single-threaded per operation. A Memory is owned by one
// session and is never locked; callers that share one across goroutines
// must serialize access or hand each goroutine a Duplicate.
package domain
