package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/ledger/event"
	"github.com/louisbranch/questbridge/internal/ledger/storage"
	perrors "github.com/louisbranch/questbridge/internal/platform/errors"
)

// Registry manages quest metadata. Any caller may author a quest; gating
// authorship is surrounding application policy, not core concern. Quests are
// never removed.
type Registry struct {
	store storage.Store
	clock func() time.Time
}

// NewRegistry creates a quest registry backed by the given store.
func NewRegistry(store storage.Store) *Registry {
	return &Registry{store: store, clock: time.Now}
}

// CreateQuest validates input, assigns the next quest id, stores an active
// quest, and journals a quest.created event.
func (r *Registry) CreateQuest(ctx context.Context, input domain.CreateQuestInput) (domain.Quest, error) {
	quest, err := domain.NewQuest(input, r.clock)
	if err != nil {
		return domain.Quest{}, err
	}

	err = r.store.Atomically(ctx, func(tx storage.Tx) error {
		id, err := tx.InsertQuest(ctx, quest)
		if err != nil {
			return err
		}
		quest.ID = id

		evt, err := event.New(event.TypeQuestCreated, quest.CreatedAt, event.QuestCreatedPayload{
			QuestID:  id,
			Name:     quest.Name,
			Creator:  quest.Creator,
			XPReward: quest.XPReward,
			Type:     quest.Type.String(),
		})
		if err != nil {
			return err
		}
		_, err = tx.AppendEvent(ctx, evt)
		return err
	})
	if err != nil {
		return domain.Quest{}, err
	}
	return quest, nil
}

// GetQuest fetches a quest definition by id.
func (r *Registry) GetQuest(ctx context.Context, id uint64) (domain.Quest, error) {
	quest, err := r.store.GetQuest(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Quest{}, perrors.WithMetadata(perrors.CodeQuestNotFound, "quest does not exist", map[string]string{"quest_id": formatUint(id)})
	}
	return quest, err
}

// SetQuestActive toggles a quest's active flag. Configuration surface; the
// core trusts the administrative caller.
func (r *Registry) SetQuestActive(ctx context.Context, id uint64, active bool) error {
	err := r.store.SetQuestActive(ctx, id, active)
	if errors.Is(err, storage.ErrNotFound) {
		return perrors.WithMetadata(perrors.CodeQuestNotFound, "quest does not exist", map[string]string{"quest_id": formatUint(id)})
	}
	return err
}

func formatUint(value uint64) string {
	return strconv.FormatUint(value, 10)
}
