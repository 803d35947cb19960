package ledgerfakes

import (
	"context"
	"sync"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/ledger/storage"
)

// SentMessage captures one transport send for assertions.
type SentMessage struct {
	Origin         domain.Address
	TargetDomainID uint64
	Payload        []byte
}

// FakeSender is a transport.Sender fake that records sends and can be
// primed to fail.
type FakeSender struct {
	mu   sync.Mutex
	Sent []SentMessage
	// Err, when set, is returned by every Send call.
	Err error
}

// Send records the message or returns the primed error.
func (f *FakeSender) Send(_ context.Context, origin domain.Address, targetDomainID uint64, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, SentMessage{
		Origin:         origin,
		TargetDomainID: targetDomainID,
		Payload:        append([]byte(nil), payload...),
	})
	return nil
}

// SentCount returns how many messages were accepted.
func (f *FakeSender) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// ForwardCall captures one authority-to-relay forward.
type ForwardCall struct {
	Caller  domain.Address
	QuestID uint64
	User    domain.Address
}

// FakeForwarder is a service.Forwarder fake that records forwards and can
// be primed to fail.
type FakeForwarder struct {
	mu    sync.Mutex
	Calls []ForwardCall
	// Err, when set, is returned by every forward call.
	Err error
}

// SendQuestCompletion records the forward or returns the primed error.
func (f *FakeForwarder) SendQuestCompletion(_ context.Context, caller domain.Address, questID uint64, user domain.Address, _ storage.EventAppender) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Calls = append(f.Calls, ForwardCall{Caller: caller, QuestID: questID, User: user})
	return nil
}

// CallCount returns how many forwards were accepted.
func (f *FakeForwarder) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
