// Package queue delivers check tasks from the coordinator to the workers.
//
// Delivery is at least once: a delivery that is never acknowledged is handed
// out again, to this or another consumer. There is no ordering guarantee.
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmpty means nothing was delivered within the receive block window.
	ErrEmpty = errors.New("queue: no delivery")
	// ErrClosed is returned by operations on a closed queue.
	ErrClosed = errors.New("queue: closed")
)

// Delivery is one physical delivery of a task payload.
type Delivery struct {
	ID      string
	Payload []byte
	// Redelivered is true when the payload was handed out before without an ack.
	Redelivered bool
}

type Queue interface {
	Publish(ctx context.Context, payload []byte) error
	// Receive blocks until a delivery is available, the block window passes
	// (ErrEmpty) or ctx is done.
	Receive(ctx context.Context) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Ping(ctx context.Context) error
	Close() error
}

// Extender is implemented by queues that hand deliveries left idle for too
// long to another consumer. A consumer still working on a delivery calls
// Extend at least every ExtendEvery to keep it.
type Extender interface {
	ExtendEvery() time.Duration
	Extend(ctx context.Context, d *Delivery) error
}
