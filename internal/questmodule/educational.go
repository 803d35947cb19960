// Package questmodule hosts quest-variant modules: the external components
// that verify a quest's condition and ask the authority to mark it
// complete. Only the educational (answer-hash) variant lives in-repo; the
// others exist solely as completer capabilities.
package questmodule

import (
	"context"
	"crypto/sha256"
	"strconv"
	"strings"
	"sync"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	perrors "github.com/louisbranch/questbridge/internal/platform/errors"
)

// Completer is the slice of the authority a variant module calls.
type Completer interface {
	CompleteQuest(ctx context.Context, caller domain.Address, questID uint64, user domain.Address) error
}

// Educational verifies free-text answers against stored hashes. Answers are
// never kept in the clear; only their sha256 digests are compared.
type Educational struct {
	addr   domain.Address
	ledger Completer

	mu      sync.RWMutex
	answers map[uint64][sha256.Size]byte
}

// NewEducational creates the module. addr must hold the complete_quest
// capability on the target authority.
func NewEducational(addr domain.Address, ledger Completer) *Educational {
	return &Educational{
		addr:    addr,
		ledger:  ledger,
		answers: make(map[uint64][sha256.Size]byte),
	}
}

// Address returns the module's completer identity.
func (m *Educational) Address() domain.Address {
	return m.addr
}

// SetAnswer stores the expected answer for a quest as a hash.
func (m *Educational) SetAnswer(questID uint64, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[questID] = hashAnswer(answer)
}

// SubmitAnswer checks the user's answer and completes the quest on a match.
// A wrong answer never reaches the ledger.
func (m *Educational) SubmitAnswer(ctx context.Context, questID uint64, user domain.Address, answer string) error {
	m.mu.RLock()
	want, ok := m.answers[questID]
	m.mu.RUnlock()
	if !ok {
		return perrors.WithMetadata(perrors.CodeQuestNotFound, "no answer configured for quest", map[string]string{
			"quest_id": strconv.FormatUint(questID, 10),
		})
	}

	if hashAnswer(answer) != want {
		return perrors.WithMetadata(perrors.CodeAnswerIncorrect, "answer does not match", map[string]string{
			"quest_id": strconv.FormatUint(questID, 10),
		})
	}

	return m.ledger.CompleteQuest(ctx, m.addr, questID, user)
}

// hashAnswer normalizes before hashing so casing and padding do not matter.
func hashAnswer(answer string) [sha256.Size]byte {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	return sha256.Sum256([]byte(normalized))
}
