package rabbit

import (
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// pendingConfirms routes publisher confirmations of one channel to the
// Publish call waiting for them. run drains the channel's NotifyPublish
// listener for its whole life, so confirmations nobody waits for anymore
// never back up into the connection reader.
type pendingConfirms struct {
	mu      sync.Mutex
	nextTag uint64
	waiters map[uint64]chan amqp.Confirmation
	closed  bool
}

func newPendingConfirms() *pendingConfirms {
	return &pendingConfirms{waiters: make(map[uint64]chan amqp.Confirmation)}
}

// expect registers a waiter for the next delivery tag. The returned channel
// yields the confirmation, or is closed if the channel goes away first.
// Callers serialize expect, published and forget per publish.
func (p *pendingConfirms) expect() (uint64, <-chan amqp.Confirmation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tag := p.nextTag + 1
	wait := make(chan amqp.Confirmation, 1)
	if p.closed {
		close(wait)
		return tag, wait
	}
	p.waiters[tag] = wait
	return tag, wait
}

// published records that tag was handed to the broker.
func (p *pendingConfirms) published(tag uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextTag = tag
}

// forget drops the waiter for tag; a late confirmation is discarded.
func (p *pendingConfirms) forget(tag uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.waiters, tag)
}

func (p *pendingConfirms) resolve(c amqp.Confirmation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if wait, ok := p.waiters[c.DeliveryTag]; ok {
		delete(p.waiters, c.DeliveryTag)
		wait <- c
	}
}

func (p *pendingConfirms) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for tag, wait := range p.waiters {
		close(wait)
		delete(p.waiters, tag)
	}
}

// run consumes confirms until the listener is closed.
func (p *pendingConfirms) run(confirms <-chan amqp.Confirmation) {
	for c := range confirms {
		p.resolve(c)
	}
	p.close()
}

// waiting returns the number of registered waiters.
func (p *pendingConfirms) waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
