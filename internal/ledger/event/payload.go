package event

import "github.com/louisbranch/questbridge/internal/ledger/domain"

// QuestCreatedPayload captures the payload for quest.created events.
type QuestCreatedPayload struct {
	QuestID  uint64         `json:"quest_id"`
	Name     string         `json:"name"`
	Creator  domain.Address `json:"creator"`
	XPReward uint64         `json:"xp_reward"`
	Type     string         `json:"type"`
}

// QuestCompletedPayload captures the payload for quest.completed events.
type QuestCompletedPayload struct {
	QuestID  uint64         `json:"quest_id"`
	User     domain.Address `json:"user"`
	XPEarned uint64         `json:"xp_earned"`
}

// UserRegisteredPayload captures the payload for user.registered events.
type UserRegisteredPayload struct {
	UserID uint64         `json:"user_id"`
	User   domain.Address `json:"user"`
}

// UserLevelUpPayload captures the payload for user.level_up events.
type UserLevelUpPayload struct {
	User     domain.Address `json:"user"`
	NewLevel uint32         `json:"new_level"`
}

// MessageSentPayload captures the payload for relay.message_sent events.
type MessageSentPayload struct {
	QuestID        uint64         `json:"quest_id"`
	User           domain.Address `json:"user"`
	TargetDomainID uint64         `json:"target_domain_id"`
}

// MessageReceivedPayload captures the payload for relay.message_received events.
type MessageReceivedPayload struct {
	QuestID        uint64         `json:"quest_id"`
	User           domain.Address `json:"user"`
	SourceDomainID uint64         `json:"source_domain_id"`
}
