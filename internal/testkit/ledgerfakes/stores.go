// Package ledgerfakes provides lightweight in-memory fakes for ledger tests.
package ledgerfakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/ledger/event"
	"github.com/louisbranch/questbridge/internal/ledger/storage"
)

type completionKey struct {
	User    domain.Address
	QuestID uint64
}

type completionRecord struct {
	At    time.Time
	Order int
}

// memState holds a snapshot of all ledger state. Atomic units operate on a
// deep clone and swap it in on success, giving all-or-nothing semantics.
type memState struct {
	nextQuestID uint64
	quests      map[uint64]domain.Quest
	nextUserID  uint64
	progress    map[domain.Address]domain.UserProgress
	completions map[completionKey]completionRecord
	nextOrder   int
	nextSeq     uint64
	events      []event.Event
}

func newMemState() *memState {
	return &memState{
		quests:      make(map[uint64]domain.Quest),
		progress:    make(map[domain.Address]domain.UserProgress),
		completions: make(map[completionKey]completionRecord),
	}
}

func (s *memState) clone() *memState {
	out := &memState{
		nextQuestID: s.nextQuestID,
		quests:      make(map[uint64]domain.Quest, len(s.quests)),
		nextUserID:  s.nextUserID,
		progress:    make(map[domain.Address]domain.UserProgress, len(s.progress)),
		completions: make(map[completionKey]completionRecord, len(s.completions)),
		nextOrder:   s.nextOrder,
		nextSeq:     s.nextSeq,
		events:      append([]event.Event(nil), s.events...),
	}
	for id, quest := range s.quests {
		out.quests[id] = quest
	}
	for addr, progress := range s.progress {
		out.progress[addr] = progress
	}
	for key, record := range s.completions {
		out.completions[key] = record
	}
	return out
}

func (s *memState) insertQuest(quest domain.Quest) uint64 {
	s.nextQuestID++
	quest.ID = s.nextQuestID
	s.quests[quest.ID] = quest
	return quest.ID
}

func (s *memState) getQuest(id uint64) (domain.Quest, error) {
	quest, ok := s.quests[id]
	if !ok {
		return domain.Quest{}, storage.ErrNotFound
	}
	return quest, nil
}

func (s *memState) setQuestActive(id uint64, active bool) error {
	quest, ok := s.quests[id]
	if !ok {
		return storage.ErrNotFound
	}
	quest.Active = active
	s.quests[id] = quest
	return nil
}

func (s *memState) insertProgress(progress domain.UserProgress) (uint64, error) {
	if _, ok := s.progress[progress.User]; ok {
		return 0, storage.ErrAlreadyExists
	}
	s.nextUserID++
	progress.ID = s.nextUserID
	progress.Completed = nil
	s.progress[progress.User] = progress
	return progress.ID, nil
}

func (s *memState) getProgress(user domain.Address) (domain.UserProgress, error) {
	progress, ok := s.progress[user]
	if !ok {
		return domain.UserProgress{}, storage.ErrNotFound
	}
	type entry struct {
		QuestID uint64
		Order   int
	}
	var entries []entry
	for key, record := range s.completions {
		if key.User == user {
			entries = append(entries, entry{QuestID: key.QuestID, Order: record.Order})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Order < entries[j].Order })
	progress.Completed = nil
	for _, e := range entries {
		progress.Completed = append(progress.Completed, e.QuestID)
	}
	return progress, nil
}

func (s *memState) updateProgress(progress domain.UserProgress) error {
	existing, ok := s.progress[progress.User]
	if !ok {
		return storage.ErrNotFound
	}
	existing.XP = progress.XP
	existing.Level = progress.Level
	existing.UpdatedAt = progress.UpdatedAt
	s.progress[progress.User] = existing
	return nil
}

func (s *memState) hasCompleted(user domain.Address, questID uint64) bool {
	_, ok := s.completions[completionKey{User: user, QuestID: questID}]
	return ok
}

func (s *memState) insertCompletion(user domain.Address, questID uint64, at time.Time) error {
	key := completionKey{User: user, QuestID: questID}
	if _, ok := s.completions[key]; ok {
		return storage.ErrAlreadyExists
	}
	s.nextOrder++
	s.completions[key] = completionRecord{At: at, Order: s.nextOrder}
	return nil
}

func (s *memState) appendEvent(evt event.Event) uint64 {
	s.nextSeq++
	evt.Seq = s.nextSeq
	s.events = append(s.events, evt)
	return evt.Seq
}

func (s *memState) listEvents(afterSeq uint64, limit int) []event.Event {
	if limit <= 0 {
		limit = 100
	}
	var out []event.Event
	for _, evt := range s.events {
		if evt.Seq > afterSeq {
			out = append(out, evt)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// MemoryStore is an in-memory storage.Store fake with snapshot-based atomic
// units.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// Atomically runs fn against a clone of the current state and swaps the
// clone in only when fn succeeds.
func (m *MemoryStore) Atomically(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.state.clone()
	if err := fn(&txView{state: staged}); err != nil {
		return err
	}
	m.state = staged
	return nil
}

// Close implements storage.Store.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) InsertQuest(_ context.Context, quest domain.Quest) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertQuest(quest), nil
}

func (m *MemoryStore) GetQuest(_ context.Context, id uint64) (domain.Quest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.getQuest(id)
}

func (m *MemoryStore) SetQuestActive(_ context.Context, id uint64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.setQuestActive(id, active)
}

func (m *MemoryStore) InsertProgress(_ context.Context, progress domain.UserProgress) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertProgress(progress)
}

func (m *MemoryStore) GetProgress(_ context.Context, user domain.Address) (domain.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.getProgress(user)
}

func (m *MemoryStore) UpdateProgress(_ context.Context, progress domain.UserProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateProgress(progress)
}

func (m *MemoryStore) HasCompleted(_ context.Context, user domain.Address, questID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.hasCompleted(user, questID), nil
}

func (m *MemoryStore) InsertCompletion(_ context.Context, user domain.Address, questID uint64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertCompletion(user, questID, at)
}

func (m *MemoryStore) AppendEvent(_ context.Context, evt event.Event) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.appendEvent(evt), nil
}

func (m *MemoryStore) ListEvents(_ context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.listEvents(afterSeq, limit), nil
}

// EventsOfType returns journaled events matching the given type, in
// sequence order. Test helper.
func (m *MemoryStore) EventsOfType(t event.Type) []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.Event
	for _, evt := range m.state.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

// txView exposes a staged memState as a storage.Tx. The enclosing
// MemoryStore lock is held for the duration of the atomic unit.
type txView struct {
	state *memState
}

func (v *txView) InsertQuest(_ context.Context, quest domain.Quest) (uint64, error) {
	return v.state.insertQuest(quest), nil
}

func (v *txView) GetQuest(_ context.Context, id uint64) (domain.Quest, error) {
	return v.state.getQuest(id)
}

func (v *txView) SetQuestActive(_ context.Context, id uint64, active bool) error {
	return v.state.setQuestActive(id, active)
}

func (v *txView) InsertProgress(_ context.Context, progress domain.UserProgress) (uint64, error) {
	return v.state.insertProgress(progress)
}

func (v *txView) GetProgress(_ context.Context, user domain.Address) (domain.UserProgress, error) {
	return v.state.getProgress(user)
}

func (v *txView) UpdateProgress(_ context.Context, progress domain.UserProgress) error {
	return v.state.updateProgress(progress)
}

func (v *txView) HasCompleted(_ context.Context, user domain.Address, questID uint64) (bool, error) {
	return v.state.hasCompleted(user, questID), nil
}

func (v *txView) InsertCompletion(_ context.Context, user domain.Address, questID uint64, at time.Time) error {
	return v.state.insertCompletion(user, questID, at)
}

func (v *txView) AppendEvent(_ context.Context, evt event.Event) (uint64, error) {
	return v.state.appendEvent(evt), nil
}

func (v *txView) ListEvents(_ context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	return v.state.listEvents(afterSeq, limit), nil
}
