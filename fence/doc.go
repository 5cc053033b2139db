// Package fence tracks CPU/GPU progress with a monotonically increasing
// fence counter.
//
// A Synchronizer pairs a queue with a fence. Each Signal schedules a write of
// the next counter value, exactly one above the previous one, after all work
// submitted so far. Wait blocks the calling goroutine until the GPU has
// written a value. WaitIfPending is the per-frame backpressure point: it only
// blocks when the value has not been reached yet. Flush signals and waits in
// one step to drain the queue before resources are destroyed.
package fence
