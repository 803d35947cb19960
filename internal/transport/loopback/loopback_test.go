package loopback

import (
	"context"
	"fmt"
	"testing"

	"github.com/louisbranch/questbridge/internal/ledger/authz"
	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/ledger/event"
	"github.com/louisbranch/questbridge/internal/ledger/service"
	"github.com/louisbranch/questbridge/internal/relay"
	"github.com/louisbranch/questbridge/internal/testkit/ledgerfakes"
)

var (
	transportID = domain.MustParseAddress("0x00000000000000000000000000000000000000ff")
	moduleAddr  = domain.MustParseAddress("0x00000000000000000000000000000000000000aa")
	userAddr    = domain.MustParseAddress("0x00000000000000000000000000000000000000bb")
)

// testDomain is one fully wired side of the bridge.
type testDomain struct {
	id        uint64
	ledger    domain.Address
	relayAddr domain.Address
	store     *ledgerfakes.MemoryStore
	caps      *authz.Registry
	authority *service.Authority
	registry  *service.Registry
	relay     *relay.Relay
}

func addr(suffix byte) domain.Address {
	var a domain.Address
	a[domain.AddressLength-1] = suffix
	a[0] = 0x10
	return a
}

// newBridge wires two mirrored domains over one loopback transport.
func newBridge(t *testing.T) (*Loopback, *testDomain, *testDomain) {
	t.Helper()

	lb := New(transportID)
	a := newDomain(t, 5, addr(0x01), addr(0x02))
	b := newDomain(t, 9, addr(0x03), addr(0x04))

	a.relay = relay.New(relay.Config{
		Address:             a.relayAddr,
		Ledger:              a.ledger,
		Counterpart:         b.relayAddr,
		LocalDomainID:       a.id,
		CounterpartDomainID: b.id,
		Transport:           lb,
		TransportID:         transportID,
		Journal:             a.store,
	}, a.authority)
	b.relay = relay.New(relay.Config{
		Address:             b.relayAddr,
		Ledger:              b.ledger,
		Counterpart:         a.relayAddr,
		LocalDomainID:       b.id,
		CounterpartDomainID: a.id,
		Transport:           lb,
		TransportID:         transportID,
		Journal:             b.store,
	}, b.authority)

	a.authority.AttachForwarder(a.relay)
	b.authority.AttachForwarder(b.relay)

	lb.Attach(a.id, a.relayAddr, a.relay)
	lb.Attach(b.id, b.relayAddr, b.relay)

	// Each authority accepts remote updates from its own relay.
	a.caps.Grant(authz.CapabilityRelayUpdate, a.relayAddr)
	b.caps.Grant(authz.CapabilityRelayUpdate, b.relayAddr)
	return lb, a, b
}

func newDomain(t *testing.T, id uint64, ledger, relayAddr domain.Address) *testDomain {
	t.Helper()
	store := ledgerfakes.NewMemoryStore()
	caps := authz.NewRegistry()
	caps.Grant(authz.CapabilityCompleteQuest, moduleAddr)

	d := &testDomain{
		id:        id,
		ledger:    ledger,
		relayAddr: relayAddr,
		store:     store,
		caps:      caps,
		authority: service.NewAuthority(store, caps, ledger),
		registry:  service.NewRegistry(store),
	}

	if _, err := d.authority.RegisterUser(context.Background(), userAddr); err != nil {
		t.Fatalf("register user on domain %d: %v", id, err)
	}
	return d
}

// mirrorQuest creates the same quest on both domains and asserts the ids
// line up, as mirrored registries require.
func mirrorQuest(t *testing.T, a, b *testDomain, xpReward uint64) uint64 {
	t.Helper()
	input := domain.CreateQuestInput{
		Name:     fmt.Sprintf("Bridge quest %d xp", xpReward),
		XPReward: xpReward,
		Type:     domain.QuestTypeDeFi,
		Creator:  moduleAddr,
	}
	questA, err := a.registry.CreateQuest(context.Background(), input)
	if err != nil {
		t.Fatalf("create quest on domain %d: %v", a.id, err)
	}
	questB, err := b.registry.CreateQuest(context.Background(), input)
	if err != nil {
		t.Fatalf("create quest on domain %d: %v", b.id, err)
	}
	if questA.ID != questB.ID {
		t.Fatalf("mirrored quest ids diverged: %d vs %d", questA.ID, questB.ID)
	}
	return questA.ID
}

func assertCredited(t *testing.T, d *testDomain, questID uint64, wantXP uint64) {
	t.Helper()
	progress, err := d.authority.Progress(context.Background(), userAddr)
	if err != nil {
		t.Fatalf("progress on domain %d: %v", d.id, err)
	}
	if progress.XP != wantXP {
		t.Fatalf("domain %d: expected xp %d, got %d", d.id, wantXP, progress.XP)
	}
	if !progress.HasCompleted(questID) {
		t.Fatalf("domain %d: quest %d not in completed set", d.id, questID)
	}
}

func TestCompletionPropagatesAcrossBridge(t *testing.T) {
	_, a, b := newBridge(t)
	questID := mirrorQuest(t, a, b, 250)

	if err := a.authority.CompleteQuest(context.Background(), moduleAddr, questID, userAddr); err != nil {
		t.Fatalf("complete on domain %d: %v", a.id, err)
	}

	assertCredited(t, a, questID, 250)
	assertCredited(t, b, questID, 250)

	if got := len(a.store.EventsOfType(event.TypeMessageSent)); got != 1 {
		t.Fatalf("expected 1 message_sent on origin, got %d", got)
	}
	if got := len(b.store.EventsOfType(event.TypeMessageReceived)); got != 1 {
		t.Fatalf("expected 1 message_received on target, got %d", got)
	}
	// The target's credit came through the relay path, not a re-broadcast.
	if got := len(b.store.EventsOfType(event.TypeMessageSent)); got != 0 {
		t.Fatalf("expected no re-broadcast from target, got %d sends", got)
	}
}

func TestDuplicateDeliveryCreditsOnce(t *testing.T) {
	lb, a, b := newBridge(t)
	questID := mirrorQuest(t, a, b, 100)

	lb.Hold()
	if err := a.authority.CompleteQuest(context.Background(), moduleAddr, questID, userAddr); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if lb.Pending() != 1 {
		t.Fatalf("expected 1 queued message, got %d", lb.Pending())
	}

	// Deliver the same message twice.
	if err := lb.FlushOrder(context.Background(), 0, 0); err != nil {
		t.Fatalf("flush: %v", err)
	}

	assertCredited(t, b, questID, 100)
	if got := len(b.store.EventsOfType(event.TypeQuestCompleted)); got != 1 {
		t.Fatalf("expected single credit on redelivery, got %d completion events", got)
	}
	// Both deliveries are journaled as traffic.
	if got := len(b.store.EventsOfType(event.TypeMessageReceived)); got != 2 {
		t.Fatalf("expected 2 message_received events, got %d", got)
	}
}

// Out-of-order delivery still converges: both domains end with identical
// completed sets and XP totals.
func TestReorderedDeliveryConverges(t *testing.T) {
	lb, a, b := newBridge(t)
	first := mirrorQuest(t, a, b, 100)
	second := mirrorQuest(t, a, b, 150)

	lb.Hold()
	for _, questID := range []uint64{first, second} {
		if err := a.authority.CompleteQuest(context.Background(), moduleAddr, questID, userAddr); err != nil {
			t.Fatalf("complete quest %d: %v", questID, err)
		}
	}

	// Deliver in reverse send order.
	if err := lb.FlushOrder(context.Background(), 1, 0); err != nil {
		t.Fatalf("flush: %v", err)
	}

	assertCredited(t, a, first, 250)
	assertCredited(t, a, second, 250)
	assertCredited(t, b, first, 250)
	assertCredited(t, b, second, 250)
}

func TestBidirectionalCompletionsConverge(t *testing.T) {
	_, a, b := newBridge(t)
	first := mirrorQuest(t, a, b, 100)
	second := mirrorQuest(t, a, b, 150)

	if err := a.authority.CompleteQuest(context.Background(), moduleAddr, first, userAddr); err != nil {
		t.Fatalf("complete on a: %v", err)
	}
	if err := b.authority.CompleteQuest(context.Background(), moduleAddr, second, userAddr); err != nil {
		t.Fatalf("complete on b: %v", err)
	}

	assertCredited(t, a, first, 250)
	assertCredited(t, a, second, 250)
	assertCredited(t, b, first, 250)
	assertCredited(t, b, second, 250)
}

func TestSendRejectsUnattachedOrigin(t *testing.T) {
	lb, _, _ := newBridge(t)

	err := lb.Send(context.Background(), addr(0x77), 9, []byte{1})
	if err == nil {
		t.Fatal("expected unattached origin to be rejected")
	}
}

func TestSendRejectsUnknownTargetDomain(t *testing.T) {
	lb, a, _ := newBridge(t)

	err := lb.Send(context.Background(), a.relayAddr, 42, []byte{1})
	if err == nil {
		t.Fatal("expected unknown target domain to be rejected")
	}
}

func TestFlushOrderRejectsOutOfRangeIndex(t *testing.T) {
	lb, a, b := newBridge(t)
	questID := mirrorQuest(t, a, b, 100)

	lb.Hold()
	if err := a.authority.CompleteQuest(context.Background(), moduleAddr, questID, userAddr); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := lb.FlushOrder(context.Background(), 3); err == nil {
		t.Fatal("expected out-of-range index to be rejected")
	}
}
