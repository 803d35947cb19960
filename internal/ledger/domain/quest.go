package domain

import (
	"strings"
	"time"

	perrors "github.com/louisbranch/questbridge/internal/platform/errors"
)

// QuestType tags a quest with the condition family its variant module checks.
type QuestType int

const (
	// QuestTypeUnspecified represents an invalid quest type value.
	QuestTypeUnspecified QuestType = iota
	// QuestTypeDeFi indicates a staking-threshold quest.
	QuestTypeDeFi
	// QuestTypeNFT indicates an NFT-ownership quest.
	QuestTypeNFT
	// QuestTypeSocial indicates a referral-count quest.
	QuestTypeSocial
	// QuestTypeEducational indicates an answer-hash quest.
	QuestTypeEducational
)

// String returns the canonical label for the quest type.
func (t QuestType) String() string {
	switch t {
	case QuestTypeDeFi:
		return "defi"
	case QuestTypeNFT:
		return "nft"
	case QuestTypeSocial:
		return "social"
	case QuestTypeEducational:
		return "educational"
	default:
		return "unspecified"
	}
}

// ParseQuestType maps a label to its QuestType.
func ParseQuestType(s string) (QuestType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "defi":
		return QuestTypeDeFi, nil
	case "nft":
		return QuestTypeNFT, nil
	case "social":
		return QuestTypeSocial, nil
	case "educational":
		return QuestTypeEducational, nil
	default:
		return QuestTypeUnspecified, perrors.WithMetadata(perrors.CodeQuestTypeInvalid, "unknown quest type", map[string]string{"value": s})
	}
}

// Quest represents a task definition with an XP reward.
// Quests are created once and never deleted; the active flag may later be
// toggled by configuration.
type Quest struct {
	ID          uint64
	Name        string
	Description string
	XPReward    uint64
	Active      bool
	Creator     Address
	Type        QuestType
	CreatedAt   time.Time
}

// CreateQuestInput describes the metadata needed to create a quest.
type CreateQuestInput struct {
	Name        string
	Description string
	XPReward    uint64
	Type        QuestType
	Creator     Address
}

// NewQuest validates input and builds an active quest. The quest ID is
// assigned by storage on insert.
func NewQuest(input CreateQuestInput, now func() time.Time) (Quest, error) {
	if now == nil {
		now = time.Now
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Quest{}, perrors.New(perrors.CodeQuestNameEmpty, "quest name is required")
	}
	switch input.Type {
	case QuestTypeDeFi, QuestTypeNFT, QuestTypeSocial, QuestTypeEducational:
	default:
		return Quest{}, perrors.New(perrors.CodeQuestTypeInvalid, "quest type is required")
	}

	return Quest{
		Name:        input.Name,
		Description: strings.TrimSpace(input.Description),
		XPReward:    input.XPReward,
		Active:      true,
		Creator:     input.Creator,
		Type:        input.Type,
		CreatedAt:   now().UTC(),
	}, nil
}
