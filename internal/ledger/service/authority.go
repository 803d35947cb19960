package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/questbridge/internal/ledger/authz"
	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/ledger/event"
	"github.com/louisbranch/questbridge/internal/ledger/storage"
	perrors "github.com/louisbranch/questbridge/internal/platform/errors"
)

// Forwarder pushes a local completion toward the counterpart domain. The
// caller's event appender is handed through so the forwarder's journal
// entries ride the same atomic unit as the ledger mutation.
type Forwarder interface {
	SendQuestCompletion(ctx context.Context, caller domain.Address, questID uint64, user domain.Address, journal storage.EventAppender) error
}

// Authority is the quest-completion state-transition gatekeeper for one
// domain. It owns the user progress ledger and decides who may mark a quest
// complete.
type Authority struct {
	// mu serializes state-mutating calls, mirroring the one-call-at-a-time
	// execution model of the hosting domain.
	mu         sync.Mutex
	store      storage.Store
	caps       *authz.Registry
	addr       domain.Address
	forwarders []Forwarder
	clock      func() time.Time
	tracer     trace.Tracer
}

// NewAuthority creates an Authority backed by the given store and
// capability registry. addr is the ledger's own identity, used as the
// caller when invoking relay send entry points.
func NewAuthority(store storage.Store, caps *authz.Registry, addr domain.Address) *Authority {
	return &Authority{
		store:  store,
		caps:   caps,
		addr:   addr,
		clock:  time.Now,
		tracer: otel.Tracer("questbridge/ledger"),
	}
}

// Address returns the ledger's own identity.
func (a *Authority) Address() domain.Address {
	return a.addr
}

// AttachForwarder registers a relay forwarder. When more than one is
// attached the authority fans out every completion to all of them; the
// choice is explicit rather than a silent single-relay preference.
func (a *Authority) AttachForwarder(f Forwarder) {
	if f == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.forwarders = append(a.forwarders, f)
}

// RegisterUser allocates a zero-XP, level-1 progress record for the
// identity. Re-registration is rejected, not a no-op.
func (a *Authority) RegisterUser(ctx context.Context, user domain.Address) (domain.UserProgress, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	progress := domain.NewUserProgress(user, a.clock)
	err := a.store.Atomically(ctx, func(tx storage.Tx) error {
		id, err := tx.InsertProgress(ctx, progress)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return perrors.WithMetadata(perrors.CodeUserAlreadyRegistered, "user is already registered", map[string]string{"user": user.String()})
		}
		if err != nil {
			return err
		}
		progress.ID = id

		evt, err := event.New(event.TypeUserRegistered, progress.CreatedAt, event.UserRegisteredPayload{UserID: id, User: user})
		if err != nil {
			return err
		}
		_, err = tx.AppendEvent(ctx, evt)
		return err
	})
	if err != nil {
		return domain.UserProgress{}, err
	}
	return progress, nil
}

// Progress returns the user's progress record, completed set included.
func (a *Authority) Progress(ctx context.Context, user domain.Address) (domain.UserProgress, error) {
	progress, err := a.store.GetProgress(ctx, user)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.UserProgress{}, perrors.WithMetadata(perrors.CodeUserNotFound, "user is not registered", map[string]string{"user": user.String()})
	}
	return progress, err
}

// HasCompleted reports whether the quest has been credited to the user.
// Completed-set membership is the sole completion evidence.
func (a *Authority) HasCompleted(ctx context.Context, user domain.Address, questID uint64) (bool, error) {
	return a.store.HasCompleted(ctx, user, questID)
}

// CompleteQuest marks a quest complete on behalf of a quest-variant module.
//
// The caller must hold the complete_quest capability, the quest must be
// active, and the (quest, user) pair must not already be completed; a
// duplicate here is a hard failure. On success the user is credited, the
// completion and any level-up are journaled, and the completion is forwarded
// to every attached relay. All of it is one atomic unit: a forwarding
// failure rolls back the ledger mutation.
func (a *Authority) CompleteQuest(ctx context.Context, caller domain.Address, questID uint64, user domain.Address) error {
	ctx, span := a.tracer.Start(ctx, "Authority.CompleteQuest", trace.WithAttributes(
		attribute.Int64("quest.id", int64(questID)),
		attribute.String("quest.user", user.String()),
	))
	defer span.End()

	if !a.caps.Allowed(authz.CapabilityCompleteQuest, caller) {
		return perrors.WithMetadata(perrors.CodeAuthCallerNotCompleter, "caller is not a registered quest module", map[string]string{"caller": caller.String()})
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.store.Atomically(ctx, func(tx storage.Tx) error {
		quest, err := tx.GetQuest(ctx, questID)
		if errors.Is(err, storage.ErrNotFound) {
			return perrors.WithMetadata(perrors.CodeQuestNotFound, "quest does not exist", map[string]string{"quest_id": formatUint(questID)})
		}
		if err != nil {
			return err
		}
		if !quest.Active {
			return perrors.WithMetadata(perrors.CodeQuestInactive, "quest is not active", map[string]string{"quest_id": formatUint(questID)})
		}

		done, err := tx.HasCompleted(ctx, user, questID)
		if err != nil {
			return err
		}
		if done {
			return perrors.WithMetadata(perrors.CodeQuestAlreadyCompleted, "quest is already completed for user", map[string]string{
				"quest_id": formatUint(questID),
				"user":     user.String(),
			})
		}

		if err := a.credit(ctx, tx, quest, user); err != nil {
			return err
		}

		for _, forwarder := range a.forwarders {
			if err := forwarder.SendQuestCompletion(ctx, a.addr, questID, user, tx); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyRemoteCompletion applies a completion delivered from the counterpart
// domain. The caller must hold the relay_update capability.
//
// An already-completed pair is a silent no-op: no error, no event, no
// mutation. The transport may redeliver messages, so idempotency here is the
// system's only defense against double-crediting. A fresh pair receives the
// identical credit/level/journal treatment as a direct completion, without
// further relay forwarding; there is no re-broadcast loop.
func (a *Authority) ApplyRemoteCompletion(ctx context.Context, caller domain.Address, questID uint64, user domain.Address) error {
	ctx, span := a.tracer.Start(ctx, "Authority.ApplyRemoteCompletion", trace.WithAttributes(
		attribute.Int64("quest.id", int64(questID)),
		attribute.String("quest.user", user.String()),
	))
	defer span.End()

	if !a.caps.Allowed(authz.CapabilityRelayUpdate, caller) {
		return perrors.WithMetadata(perrors.CodeAuthCallerNotRelay, "caller is not a registered relay", map[string]string{"caller": caller.String()})
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.store.Atomically(ctx, func(tx storage.Tx) error {
		done, err := tx.HasCompleted(ctx, user, questID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		quest, err := tx.GetQuest(ctx, questID)
		if errors.Is(err, storage.ErrNotFound) {
			return perrors.WithMetadata(perrors.CodeQuestNotFound, "quest does not exist", map[string]string{"quest_id": formatUint(questID)})
		}
		if err != nil {
			return err
		}

		// The origin domain already enforced the active flag; a quest
		// deactivated after the fact must not block convergence.
		return a.credit(ctx, tx, quest, user)
	})
}

// credit applies the quest reward to the user inside the caller's atomic
// unit: XP, completed set, derived level, and journal entries.
func (a *Authority) credit(ctx context.Context, tx storage.Tx, quest domain.Quest, user domain.Address) error {
	progress, err := tx.GetProgress(ctx, user)
	if errors.Is(err, storage.ErrNotFound) {
		return perrors.WithMetadata(perrors.CodeUserNotRegistered, "user is not registered", map[string]string{"user": user.String()})
	}
	if err != nil {
		return err
	}

	now := a.clock().UTC()
	leveledUp := progress.Credit(quest.ID, quest.XPReward, now)

	if err := tx.UpdateProgress(ctx, progress); err != nil {
		return err
	}
	if err := tx.InsertCompletion(ctx, user, quest.ID, now); err != nil {
		return err
	}

	completed, err := event.New(event.TypeQuestCompleted, now, event.QuestCompletedPayload{
		QuestID:  quest.ID,
		User:     user,
		XPEarned: quest.XPReward,
	})
	if err != nil {
		return err
	}
	if _, err := tx.AppendEvent(ctx, completed); err != nil {
		return err
	}

	if leveledUp {
		levelUp, err := event.New(event.TypeUserLevelUp, now, event.UserLevelUpPayload{
			User:     user,
			NewLevel: progress.Level,
		})
		if err != nil {
			return err
		}
		if _, err := tx.AppendEvent(ctx, levelUp); err != nil {
			return err
		}
	}
	return nil
}
