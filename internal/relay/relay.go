// Package relay moves quest completions between a ledger and its
// counterpart domain. One relay instance serves one domain; its peer on the
// other side is configured as the counterpart.
package relay

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/ledger/event"
	"github.com/louisbranch/questbridge/internal/ledger/storage"
	perrors "github.com/louisbranch/questbridge/internal/platform/errors"
	"github.com/louisbranch/questbridge/internal/transport"
)

// CompletionApplier is the slice of the ledger authority the relay needs on
// the receive path.
type CompletionApplier interface {
	ApplyRemoteCompletion(ctx context.Context, caller domain.Address, questID uint64, user domain.Address) error
}

// Record is one relayed message as kept by a history recorder.
type Record struct {
	QuestID  uint64         `json:"quest_id"`
	User     domain.Address `json:"user"`
	DomainID uint64         `json:"domain_id"`
	At       time.Time      `json:"at"`
}

// Recorder persists an audit trail of relayed messages. It is optional; a
// nil recorder disables history.
type Recorder interface {
	RecordSent(rec Record) error
	RecordReceived(rec Record) error
}

// Config wires one relay instance.
type Config struct {
	// Address is the relay's own identity, presented as origin on the
	// transport and checked by the counterpart on receive.
	Address domain.Address
	// Ledger is the identity of the local ledger authority. Only this
	// address may ask the relay to send.
	Ledger domain.Address
	// Counterpart is the peer relay's identity on the other domain.
	Counterpart domain.Address
	// LocalDomainID and CounterpartDomainID name the two domains on the
	// wire.
	LocalDomainID       uint64
	CounterpartDomainID uint64

	Transport transport.Sender
	// TransportID is the identity the transport presents when delivering
	// inbound messages. Only this caller may invoke Receive.
	TransportID domain.Address
	// Journal receives the relay's message_received events. Send events
	// ride the sending ledger's own atomic unit instead.
	Journal storage.EventAppender
	// History is optional message auditing.
	History Recorder
}

// Relay validates and forwards completion messages in both directions.
type Relay struct {
	cfg     Config
	applier CompletionApplier
	clock   func() time.Time
	tracer  trace.Tracer
}

// New creates a relay. applier is the local authority that remote
// completions are applied to.
func New(cfg Config, applier CompletionApplier) *Relay {
	return &Relay{
		cfg:     cfg,
		applier: applier,
		clock:   time.Now,
		tracer:  otel.Tracer("questbridge/relay"),
	}
}

// Address returns the relay's own identity.
func (r *Relay) Address() domain.Address {
	return r.cfg.Address
}

// SendQuestCompletion encodes the completion and pushes it toward the
// counterpart domain. Only the configured ledger may call it.
//
// The journal argument is the sending ledger's event appender, so the
// message_sent entry commits or rolls back together with the ledger
// mutation that triggered it. A transport failure propagates to the caller
// and unwinds that whole unit.
func (r *Relay) SendQuestCompletion(ctx context.Context, caller domain.Address, questID uint64, user domain.Address, journal storage.EventAppender) error {
	ctx, span := r.tracer.Start(ctx, "Relay.SendQuestCompletion", trace.WithAttributes(
		attribute.Int64("quest.id", int64(questID)),
		attribute.Int64("relay.target_domain", int64(r.cfg.CounterpartDomainID)),
	))
	defer span.End()

	if caller != r.cfg.Ledger {
		return perrors.WithMetadata(perrors.CodeAuthCallerNotLedger, "caller is not the local ledger", map[string]string{"caller": caller.String()})
	}

	payload := EncodeCompletion(questID, user)
	if err := r.cfg.Transport.Send(ctx, r.cfg.Address, r.cfg.CounterpartDomainID, payload); err != nil {
		return err
	}

	now := r.clock().UTC()
	evt, err := event.New(event.TypeMessageSent, now, event.MessageSentPayload{
		QuestID:        questID,
		User:           user,
		TargetDomainID: r.cfg.CounterpartDomainID,
	})
	if err != nil {
		return err
	}
	if _, err := journal.AppendEvent(ctx, evt); err != nil {
		return err
	}

	if r.cfg.History != nil {
		return r.cfg.History.RecordSent(Record{
			QuestID:  questID,
			User:     user,
			DomainID: r.cfg.CounterpartDomainID,
			At:       now,
		})
	}
	return nil
}

// Receive handles a message delivered by the transport. The caller must be
// the transport's configured identity, and the message must originate from
// the counterpart domain's registered relay; both sides enforce this
// symmetrically.
//
// A valid message is decoded and applied to the local ledger. Redelivered
// duplicates still get a message_received record even though the apply is a
// no-op, so the journal reflects traffic, not effect.
func (r *Relay) Receive(ctx context.Context, caller domain.Address, srcDomainID uint64, src domain.Address, payload []byte) error {
	ctx, span := r.tracer.Start(ctx, "Relay.Receive", trace.WithAttributes(
		attribute.Int64("relay.source_domain", int64(srcDomainID)),
	))
	defer span.End()

	if caller != r.cfg.TransportID {
		return perrors.WithMetadata(perrors.CodeAuthCallerNotTransport, "caller is not the configured transport", map[string]string{"caller": caller.String()})
	}
	if srcDomainID != r.cfg.CounterpartDomainID {
		return perrors.WithMetadata(perrors.CodeSourceDomainMismatch, "message source domain is not the counterpart", map[string]string{
			"got": strconv.FormatUint(srcDomainID, 10),
		})
	}
	if src != r.cfg.Counterpart {
		return perrors.WithMetadata(perrors.CodeSourceRelayMismatch, "message sender is not the counterpart relay", map[string]string{"sender": src.String()})
	}

	questID, user, err := DecodeCompletion(payload)
	if err != nil {
		return err
	}

	if err := r.applier.ApplyRemoteCompletion(ctx, r.cfg.Address, questID, user); err != nil {
		return err
	}

	now := r.clock().UTC()
	evt, err := event.New(event.TypeMessageReceived, now, event.MessageReceivedPayload{
		QuestID:        questID,
		User:           user,
		SourceDomainID: srcDomainID,
	})
	if err != nil {
		return err
	}
	if _, err := r.cfg.Journal.AppendEvent(ctx, evt); err != nil {
		return err
	}

	if r.cfg.History != nil {
		return r.cfg.History.RecordReceived(Record{
			QuestID:  questID,
			User:     user,
			DomainID: srcDomainID,
			At:       now,
		})
	}
	return nil
}
