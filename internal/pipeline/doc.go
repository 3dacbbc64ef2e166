// Package pipeline runs every stored bundle through the fixed processing
// chain: text extraction, thumbnail rendering, search indexing.
//
// Each stage owns a durable work queue: a directory under the pipeline root
// holding one symlink per pending bundle, named by the bundle id and pointing
// at its storage directory. Enqueueing is a single idempotent symlink
// creation, so pending work survives daemon restarts and needs no in-memory
// state reconciliation. One worker goroutine per stage sweeps its queue,
// applies the stage transform, and hands successfully processed bundles to
// the next stage. Failures leave the reference in place for retry; the retry
// policy (attempt ceiling, backoff, dead-letter directory) is configurable.
//
// Sweep order is best-effort FIFO by reference modification time; no stronger
// ordering is guaranteed. Per bundle, stages always run in chain order.
package pipeline
