package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/ledger/event"
	perrors "github.com/louisbranch/questbridge/internal/platform/errors"
	"github.com/louisbranch/questbridge/internal/testkit/ledgerfakes"
)

var (
	ledgerAddr      = domain.MustParseAddress("0x1111111111111111111111111111111111111111")
	relayAddr       = domain.MustParseAddress("0x2222222222222222222222222222222222222222")
	counterpartAddr = domain.MustParseAddress("0x3333333333333333333333333333333333333333")
	transportAddr   = domain.MustParseAddress("0x4444444444444444444444444444444444444444")
	userAddr        = domain.MustParseAddress("0x5555555555555555555555555555555555555555")
	strangerAddr    = domain.MustParseAddress("0x6666666666666666666666666666666666666666")
)

const (
	localDomainID       = 5
	counterpartDomainID = 9
)

// fakeApplier records ApplyRemoteCompletion calls.
type fakeApplier struct {
	calls []struct {
		caller  domain.Address
		questID uint64
		user    domain.Address
	}
	err error
}

func (f *fakeApplier) ApplyRemoteCompletion(_ context.Context, caller domain.Address, questID uint64, user domain.Address) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, struct {
		caller  domain.Address
		questID uint64
		user    domain.Address
	}{caller, questID, user})
	return nil
}

// memRecorder is an in-memory Recorder.
type memRecorder struct {
	sent     []Record
	received []Record
}

func (m *memRecorder) RecordSent(rec Record) error     { m.sent = append(m.sent, rec); return nil }
func (m *memRecorder) RecordReceived(rec Record) error { m.received = append(m.received, rec); return nil }

func newTestRelay(sender *ledgerfakes.FakeSender, applier CompletionApplier, history Recorder) (*Relay, *ledgerfakes.MemoryStore) {
	journal := ledgerfakes.NewMemoryStore()
	r := New(Config{
		Address:             relayAddr,
		Ledger:              ledgerAddr,
		Counterpart:         counterpartAddr,
		LocalDomainID:       localDomainID,
		CounterpartDomainID: counterpartDomainID,
		Transport:           sender,
		TransportID:         transportAddr,
		Journal:             journal,
		History:             history,
	}, applier)
	r.clock = func() time.Time { return time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC) }
	return r, journal
}

func TestSendQuestCompletionRejectsNonLedgerCaller(t *testing.T) {
	sender := &ledgerfakes.FakeSender{}
	r, journal := newTestRelay(sender, &fakeApplier{}, nil)

	err := r.SendQuestCompletion(context.Background(), strangerAddr, 1, userAddr, journal)
	if !errors.Is(err, perrors.New(perrors.CodeAuthCallerNotLedger, "")) {
		t.Fatalf("expected AUTH_CALLER_NOT_LEDGER, got %v", err)
	}
	if sender.SentCount() != 0 {
		t.Fatalf("expected no sends, got %d", sender.SentCount())
	}
}

func TestSendQuestCompletionEncodesAndJournals(t *testing.T) {
	sender := &ledgerfakes.FakeSender{}
	history := &memRecorder{}
	r, journal := newTestRelay(sender, &fakeApplier{}, history)

	if err := r.SendQuestCompletion(context.Background(), ledgerAddr, 7, userAddr, journal); err != nil {
		t.Fatalf("send: %v", err)
	}

	if sender.SentCount() != 1 {
		t.Fatalf("expected 1 send, got %d", sender.SentCount())
	}
	msg := sender.Sent[0]
	if msg.Origin != relayAddr {
		t.Fatalf("expected relay's own address as origin, got %s", msg.Origin)
	}
	if msg.TargetDomainID != counterpartDomainID {
		t.Fatalf("expected target domain %d, got %d", counterpartDomainID, msg.TargetDomainID)
	}
	questID, user, err := DecodeCompletion(msg.Payload)
	if err != nil {
		t.Fatalf("decode sent payload: %v", err)
	}
	if questID != 7 || user != userAddr {
		t.Fatalf("unexpected payload quest %d user %s", questID, user)
	}

	events := journal.EventsOfType(event.TypeMessageSent)
	if len(events) != 1 {
		t.Fatalf("expected 1 message_sent event, got %d", len(events))
	}
	var payload event.MessageSentPayload
	if err := events[0].Decode(&payload); err != nil {
		t.Fatalf("decode event payload: %v", err)
	}
	if payload.QuestID != 7 || payload.TargetDomainID != counterpartDomainID {
		t.Fatalf("unexpected event payload %+v", payload)
	}

	if len(history.sent) != 1 || history.sent[0].QuestID != 7 {
		t.Fatalf("expected history record for quest 7, got %+v", history.sent)
	}
}

func TestSendQuestCompletionPropagatesTransportFailure(t *testing.T) {
	sender := &ledgerfakes.FakeSender{Err: errors.New("link down")}
	r, journal := newTestRelay(sender, &fakeApplier{}, nil)

	err := r.SendQuestCompletion(context.Background(), ledgerAddr, 7, userAddr, journal)
	if err == nil {
		t.Fatal("expected transport failure to surface")
	}
	if got := len(journal.EventsOfType(event.TypeMessageSent)); got != 0 {
		t.Fatalf("expected no message_sent events on failure, got %d", got)
	}
}

func TestReceiveAppliesAndJournals(t *testing.T) {
	applier := &fakeApplier{}
	history := &memRecorder{}
	r, journal := newTestRelay(&ledgerfakes.FakeSender{}, applier, history)

	payload := EncodeCompletion(7, userAddr)
	if err := r.Receive(context.Background(), transportAddr, counterpartDomainID, counterpartAddr, payload); err != nil {
		t.Fatalf("receive: %v", err)
	}

	if len(applier.calls) != 1 {
		t.Fatalf("expected 1 apply, got %d", len(applier.calls))
	}
	call := applier.calls[0]
	if call.caller != relayAddr {
		t.Fatalf("expected relay address as apply caller, got %s", call.caller)
	}
	if call.questID != 7 || call.user != userAddr {
		t.Fatalf("unexpected apply call %+v", call)
	}

	events := journal.EventsOfType(event.TypeMessageReceived)
	if len(events) != 1 {
		t.Fatalf("expected 1 message_received event, got %d", len(events))
	}
	var received event.MessageReceivedPayload
	if err := events[0].Decode(&received); err != nil {
		t.Fatalf("decode event payload: %v", err)
	}
	if received.SourceDomainID != counterpartDomainID {
		t.Fatalf("expected source domain %d, got %d", counterpartDomainID, received.SourceDomainID)
	}

	if len(history.received) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(history.received))
	}
}

func TestReceiveRejectsNonTransportCaller(t *testing.T) {
	applier := &fakeApplier{}
	r, _ := newTestRelay(&ledgerfakes.FakeSender{}, applier, nil)

	payload := EncodeCompletion(7, userAddr)
	err := r.Receive(context.Background(), strangerAddr, counterpartDomainID, counterpartAddr, payload)
	if !errors.Is(err, perrors.New(perrors.CodeAuthCallerNotTransport, "")) {
		t.Fatalf("expected AUTH_CALLER_NOT_TRANSPORT, got %v", err)
	}
	if len(applier.calls) != 0 {
		t.Fatal("expected no apply on rejected caller")
	}
}

// A message claiming an unexpected source domain is rejected before any
// state changes, even when the sender address itself checks out.
func TestReceiveRejectsWrongSourceDomain(t *testing.T) {
	applier := &fakeApplier{}
	r, journal := newTestRelay(&ledgerfakes.FakeSender{}, applier, nil)

	payload := EncodeCompletion(7, userAddr)
	err := r.Receive(context.Background(), transportAddr, 77, counterpartAddr, payload)
	if !errors.Is(err, perrors.New(perrors.CodeSourceDomainMismatch, "")) {
		t.Fatalf("expected AUTH_SOURCE_DOMAIN_MISMATCH, got %v", err)
	}
	if len(applier.calls) != 0 {
		t.Fatal("expected no apply on domain mismatch")
	}
	if got := len(journal.EventsOfType(event.TypeMessageReceived)); got != 0 {
		t.Fatalf("expected no received events, got %d", got)
	}
}

func TestReceiveRejectsWrongSourceRelay(t *testing.T) {
	applier := &fakeApplier{}
	r, _ := newTestRelay(&ledgerfakes.FakeSender{}, applier, nil)

	payload := EncodeCompletion(7, userAddr)
	err := r.Receive(context.Background(), transportAddr, counterpartDomainID, strangerAddr, payload)
	if !errors.Is(err, perrors.New(perrors.CodeSourceRelayMismatch, "")) {
		t.Fatalf("expected AUTH_SOURCE_RELAY_MISMATCH, got %v", err)
	}
	if len(applier.calls) != 0 {
		t.Fatal("expected no apply on relay mismatch")
	}
}

func TestReceiveRejectsMalformedPayload(t *testing.T) {
	applier := &fakeApplier{}
	r, _ := newTestRelay(&ledgerfakes.FakeSender{}, applier, nil)

	err := r.Receive(context.Background(), transportAddr, counterpartDomainID, counterpartAddr, []byte{1, 2, 3})
	if !errors.Is(err, perrors.New(perrors.CodePayloadMalformed, "")) {
		t.Fatalf("expected VALIDATION_PAYLOAD_MALFORMED, got %v", err)
	}
	if len(applier.calls) != 0 {
		t.Fatal("expected no apply on malformed payload")
	}
}

func TestReceiveSurfacesApplyFailureWithoutJournaling(t *testing.T) {
	applier := &fakeApplier{err: errors.New("ledger offline")}
	r, journal := newTestRelay(&ledgerfakes.FakeSender{}, applier, nil)

	payload := EncodeCompletion(7, userAddr)
	if err := r.Receive(context.Background(), transportAddr, counterpartDomainID, counterpartAddr, payload); err == nil {
		t.Fatal("expected apply failure to surface")
	}
	if got := len(journal.EventsOfType(event.TypeMessageReceived)); got != 0 {
		t.Fatalf("expected no received events after apply failure, got %d", got)
	}
}
