// Package taskqueue buffers tasks that exceed current execution capacity.
// Deferred tasks wait here until the coordinator drains them in arrival order.
package taskqueue

import "errors"

// ErrQueueClosed is returned once a queue is closed and drained.
var ErrQueueClosed = errors.New("task queue is closed")
