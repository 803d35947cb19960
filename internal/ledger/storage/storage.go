package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/ledger/event"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates an insert conflicts with an existing record.
var ErrAlreadyExists = errors.New("record already exists")

// QuestStore persists quest definitions. Quest IDs are dense, positive, and
// assigned in strictly increasing order on insert.
type QuestStore interface {
	InsertQuest(ctx context.Context, quest domain.Quest) (uint64, error)
	GetQuest(ctx context.Context, id uint64) (domain.Quest, error)
	SetQuestActive(ctx context.Context, id uint64, active bool) error
}

// ProgressStore persists per-user progress records and the completed-quest
// set. Completed-set membership is the sole completion evidence, so
// HasCompleted must be a direct membership lookup.
type ProgressStore interface {
	InsertProgress(ctx context.Context, progress domain.UserProgress) (uint64, error)
	GetProgress(ctx context.Context, user domain.Address) (domain.UserProgress, error)
	UpdateProgress(ctx context.Context, progress domain.UserProgress) error
	HasCompleted(ctx context.Context, user domain.Address, questID uint64) (bool, error)
	InsertCompletion(ctx context.Context, user domain.Address, questID uint64, at time.Time) error
}

// EventAppender appends entries to the per-domain event journal. The journal
// sequence number is assigned on append.
type EventAppender interface {
	AppendEvent(ctx context.Context, evt event.Event) (uint64, error)
}

// EventStore provides append and read access to the event journal.
type EventStore interface {
	EventAppender
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
}

// Tx groups the stores visible inside one atomic unit.
type Tx interface {
	QuestStore
	ProgressStore
	EventStore
}

// Store is the full ledger persistence surface. Atomically executes fn
// within a single all-or-nothing unit: if fn returns an error, every
// mutation made through its Tx is rolled back.
type Store interface {
	Tx
	Atomically(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
