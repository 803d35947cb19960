package service

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	perrors "github.com/louisbranch/questbridge/internal/platform/errors"
	"github.com/louisbranch/questbridge/internal/testkit/ledgerfakes"
)

func TestCreateQuestValidation(t *testing.T) {
	registry := NewRegistry(ledgerfakes.NewMemoryStore())
	registry.clock = testClock

	tests := []struct {
		name  string
		input domain.CreateQuestInput
		code  perrors.Code
	}{
		{
			name:  "empty name",
			input: domain.CreateQuestInput{Name: "   ", XPReward: 10, Type: domain.QuestTypeNFT},
			code:  perrors.CodeQuestNameEmpty,
		},
		{
			name:  "missing type",
			input: domain.CreateQuestInput{Name: "Own a founder badge", XPReward: 10},
			code:  perrors.CodeQuestTypeInvalid,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := registry.CreateQuest(context.Background(), tc.input)
			if !errors.Is(err, perrors.New(tc.code, "")) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestCreateQuestTrimsAndActivates(t *testing.T) {
	registry := NewRegistry(ledgerfakes.NewMemoryStore())
	registry.clock = testClock

	quest, err := registry.CreateQuest(context.Background(), domain.CreateQuestInput{
		Name:        "  Refer three friends  ",
		Description: " referral drive ",
		XPReward:    75,
		Type:        domain.QuestTypeSocial,
		Creator:     moduleAddr,
	})
	if err != nil {
		t.Fatalf("create quest: %v", err)
	}
	if quest.Name != "Refer three friends" {
		t.Fatalf("expected trimmed name, got %q", quest.Name)
	}
	if quest.Description != "referral drive" {
		t.Fatalf("expected trimmed description, got %q", quest.Description)
	}
	if !quest.Active {
		t.Fatal("expected new quest to be active")
	}

	got, err := registry.GetQuest(context.Background(), quest.ID)
	if err != nil {
		t.Fatalf("get quest: %v", err)
	}
	if got.XPReward != 75 || got.Type != domain.QuestTypeSocial {
		t.Fatalf("unexpected stored quest %+v", got)
	}
}

func TestGetQuestNotFound(t *testing.T) {
	registry := NewRegistry(ledgerfakes.NewMemoryStore())

	_, err := registry.GetQuest(context.Background(), 9)
	if !errors.Is(err, perrors.New(perrors.CodeQuestNotFound, "")) {
		t.Fatalf("expected STATE_QUEST_NOT_FOUND, got %v", err)
	}
}

func TestSetQuestActiveNotFound(t *testing.T) {
	registry := NewRegistry(ledgerfakes.NewMemoryStore())

	err := registry.SetQuestActive(context.Background(), 9, false)
	if !errors.Is(err, perrors.New(perrors.CodeQuestNotFound, "")) {
		t.Fatalf("expected STATE_QUEST_NOT_FOUND, got %v", err)
	}
}
