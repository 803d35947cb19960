package domain

import (
	"errors"
	"testing"
	"time"

	perrors "github.com/louisbranch/questbridge/internal/platform/errors"
)

func fixedClock() time.Time {
	return time.Date(2026, 2, 11, 9, 30, 0, 0, time.UTC)
}

func TestNewQuest(t *testing.T) {
	creator := MustParseAddress("0x1111111111111111111111111111111111111111")
	quest, err := NewQuest(CreateQuestInput{
		Name:        "  Stake 100 tokens  ",
		Description: "Lock at least 100 tokens in the staking pool",
		XPReward:    250,
		Type:        QuestTypeDeFi,
		Creator:     creator,
	}, fixedClock)
	if err != nil {
		t.Fatalf("new quest: %v", err)
	}
	if quest.Name != "Stake 100 tokens" {
		t.Fatalf("expected trimmed name, got %q", quest.Name)
	}
	if !quest.Active {
		t.Fatal("expected new quest to be active")
	}
	if quest.XPReward != 250 {
		t.Fatalf("expected reward 250, got %d", quest.XPReward)
	}
	if quest.Creator != creator {
		t.Fatalf("expected creator %s, got %s", creator, quest.Creator)
	}
	if !quest.CreatedAt.Equal(fixedClock()) {
		t.Fatalf("expected created_at %v, got %v", fixedClock(), quest.CreatedAt)
	}
	if quest.ID != 0 {
		t.Fatalf("expected unassigned id, got %d", quest.ID)
	}
}

func TestNewQuestRejectsEmptyName(t *testing.T) {
	_, err := NewQuest(CreateQuestInput{Name: "   ", Type: QuestTypeNFT}, fixedClock)
	if !errors.Is(err, perrors.New(perrors.CodeQuestNameEmpty, "")) {
		t.Fatalf("expected QUEST_NAME_EMPTY, got %v", err)
	}
}

func TestNewQuestRejectsInvalidType(t *testing.T) {
	_, err := NewQuest(CreateQuestInput{Name: "quiz", Type: QuestTypeUnspecified}, fixedClock)
	if !errors.Is(err, perrors.New(perrors.CodeQuestTypeInvalid, "")) {
		t.Fatalf("expected QUEST_TYPE_INVALID, got %v", err)
	}
}

func TestQuestTypeRoundTrip(t *testing.T) {
	for _, questType := range []QuestType{QuestTypeDeFi, QuestTypeNFT, QuestTypeSocial, QuestTypeEducational} {
		parsed, err := ParseQuestType(questType.String())
		if err != nil {
			t.Fatalf("parse %q: %v", questType.String(), err)
		}
		if parsed != questType {
			t.Fatalf("expected %v, got %v", questType, parsed)
		}
	}
	if _, err := ParseQuestType("governance"); err == nil {
		t.Fatal("expected error for unknown quest type")
	}
}
