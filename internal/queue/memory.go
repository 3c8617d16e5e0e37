package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Queue. Un-acked deliveries stay in flight until
// Nack puts them back.
type Memory struct {
	mu       sync.Mutex
	ready    []*Delivery
	inflight map[string]*Delivery
	seq      int
	closed   bool

	block  time.Duration
	signal chan struct{}
}

// NewMemory returns an empty queue whose Receive waits up to block.
func NewMemory(block time.Duration) *Memory {
	return &Memory{
		inflight: make(map[string]*Delivery),
		block:    block,
		signal:   make(chan struct{}, 1),
	}
}

func (m *Memory) Publish(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.seq++
	m.ready = append(m.ready, &Delivery{
		ID:      strconv.Itoa(m.seq),
		Payload: append([]byte(nil), payload...),
	})
	m.notify()
	return nil
}

func (m *Memory) Receive(ctx context.Context) (*Delivery, error) {
	timer := time.NewTimer(m.block)
	defer timer.Stop()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		if len(m.ready) > 0 {
			d := m.ready[0]
			m.ready = m.ready[1:]
			m.inflight[d.ID] = d
			m.mu.Unlock()
			return d, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.signal:
		case <-timer.C:
			return nil, ErrEmpty
		}
	}
}

func (m *Memory) Ack(_ context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[d.ID]; !ok {
		return fmt.Errorf("failed to ack task %s: not in flight", d.ID)
	}
	delete(m.inflight, d.ID)
	return nil
}

// Nack returns an in-flight delivery to the head of the queue, as a broker
// does once the delivery's visibility lapses.
func (m *Memory) Nack(d *Delivery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[d.ID]; !ok {
		return
	}
	delete(m.inflight, d.ID)
	redelivery := &Delivery{ID: d.ID, Payload: d.Payload, Redelivered: true}
	m.ready = append([]*Delivery{redelivery}, m.ready...)
	m.notify()
}

// Len reports queued and in-flight deliveries.
func (m *Memory) Len() (ready, inflight int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ready), len(m.inflight)
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.notify()
	return nil
}

func (m *Memory) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}
