// Package loopback is an in-process transport connecting two domains in one
// binary. By default messages are delivered synchronously; tests can hold
// delivery and replay the queue out of order or more than once to exercise
// the relays' tolerance for both.
package loopback

import (
	"context"
	"fmt"
	"sync"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/transport"
)

type endpoint struct {
	domainID uint64
	relay    domain.Address
	receiver transport.Receiver
}

type message struct {
	origin         domain.Address
	srcDomainID    uint64
	targetDomainID uint64
	payload        []byte
}

// Loopback routes payloads between attached domains.
type Loopback struct {
	id domain.Address

	mu        sync.Mutex
	endpoints []endpoint
	holding   bool
	queue     []message
}

// New creates a loopback transport presenting id as its caller identity on
// delivery.
func New(id domain.Address) *Loopback {
	return &Loopback{id: id}
}

// ID returns the transport's caller identity.
func (l *Loopback) ID() domain.Address {
	return l.id
}

// Attach registers a domain endpoint. relay is the address the endpoint's
// messages originate from; receiver handles inbound delivery.
func (l *Loopback) Attach(domainID uint64, relay domain.Address, receiver transport.Receiver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.endpoints = append(l.endpoints, endpoint{domainID: domainID, relay: relay, receiver: receiver})
}

// Send routes the payload to the endpoint registered for targetDomainID.
// The source domain is resolved from the origin address, so only attached
// relays can send. While the transport is holding, the message is queued
// instead of delivered.
func (l *Loopback) Send(ctx context.Context, origin domain.Address, targetDomainID uint64, payload []byte) error {
	l.mu.Lock()
	src, ok := l.endpointByRelay(origin)
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("loopback: origin %s is not an attached relay", origin)
	}

	msg := message{
		origin:         origin,
		srcDomainID:    src.domainID,
		targetDomainID: targetDomainID,
		payload:        append([]byte(nil), payload...),
	}
	if l.holding {
		l.queue = append(l.queue, msg)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	return l.deliver(ctx, msg)
}

// Hold stops synchronous delivery; subsequent sends queue until flushed.
func (l *Loopback) Hold() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holding = true
}

// Pending reports how many messages are queued.
func (l *Loopback) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Flush delivers all queued messages in send order and resumes synchronous
// delivery. The first delivery error aborts the flush; remaining messages
// stay queued.
func (l *Loopback) Flush(ctx context.Context) error {
	return l.FlushOrder(ctx)
}

// FlushOrder delivers queued messages by index in the given order, then
// clears the queue and resumes synchronous delivery. Indices may repeat to
// force duplicate delivery; with no indices the whole queue is delivered in
// send order.
func (l *Loopback) FlushOrder(ctx context.Context, indices ...int) error {
	l.mu.Lock()
	queued := l.queue
	if len(indices) == 0 {
		indices = make([]int, len(queued))
		for i := range queued {
			indices[i] = i
		}
	}
	for _, i := range indices {
		if i < 0 || i >= len(queued) {
			l.mu.Unlock()
			return fmt.Errorf("loopback: flush index %d out of range", i)
		}
	}
	l.queue = nil
	l.holding = false
	l.mu.Unlock()

	for _, i := range indices {
		if err := l.deliver(ctx, queued[i]); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loopback) deliver(ctx context.Context, msg message) error {
	l.mu.Lock()
	target, ok := l.endpointByDomain(msg.targetDomainID)
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("loopback: no endpoint for domain %d", msg.targetDomainID)
	}
	return target.receiver.Receive(ctx, l.id, msg.srcDomainID, msg.origin, msg.payload)
}

func (l *Loopback) endpointByRelay(relay domain.Address) (endpoint, bool) {
	for _, ep := range l.endpoints {
		if ep.relay == relay {
			return ep, true
		}
	}
	return endpoint{}, false
}

func (l *Loopback) endpointByDomain(domainID uint64) (endpoint, bool) {
	for _, ep := range l.endpoints {
		if ep.domainID == domainID {
			return ep, true
		}
	}
	return endpoint{}, false
}
