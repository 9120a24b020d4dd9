package services

import (
	"sync/atomic"

	"github.com/kerbaras/mangadl/pkg/data"
)

// ProgressFunc receives progress events. It is called from worker
// goroutines and must not block.
type ProgressFunc func(data.ProgressEvent)

func (p ProgressFunc) emit(event data.ProgressEvent) {
	if p != nil {
		p(event)
	}
}

// ChannelProgress forwards events to ch without blocking. Events are
// dropped while the channel is full.
func ChannelProgress(ch chan<- data.ProgressEvent) ProgressFunc {
	return func(event data.ProgressEvent) {
		select {
		case ch <- event:
		default:
			// Channel full, skip this update
		}
	}
}

// counter tracks completed units out of a fixed total and reports each
// increment.
type counter struct {
	done  atomic.Int64
	total int
}

func newCounter(total int) *counter {
	return &counter{total: total}
}

// inc records one completed unit and returns the new count.
func (c *counter) inc() int {
	return int(c.done.Add(1))
}
