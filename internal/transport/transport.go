// Package transport carries opaque relay payloads between domains.
//
// A Sender makes no delivery guarantees beyond what its implementation
// states: messages may arrive late, duplicated, or reordered. Relays must
// tolerate all three.
package transport

import (
	"context"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
)

// Sender pushes one payload toward the named target domain. origin is the
// identity of the relay doing the sending; receivers use it to validate the
// message source.
type Sender interface {
	Send(ctx context.Context, origin domain.Address, targetDomainID uint64, payload []byte) error
}

// Receiver is the inbound entry point of a relay. caller is the transport's
// own identity; srcDomainID and src name the message origin.
type Receiver interface {
	Receive(ctx context.Context, caller domain.Address, srcDomainID uint64, src domain.Address, payload []byte) error
}
