package domain

import "time"

// xpPerLevel is the XP span of a single level.
const xpPerLevel = 100

// LevelForXP derives the level tier for an XP total.
// Level 1 covers 0-99 XP, level 2 covers 100-199, and so on. Because XP is
// monotonically non-decreasing, the derived level never decreases either.
func LevelForXP(xp uint64) uint32 {
	return uint32(xp/xpPerLevel) + 1
}

// UserProgress tracks one user's accumulated XP, derived level, and the set
// of quests credited to them. The completed set is the sole evidence that a
// (quest, user) pair has been credited.
type UserProgress struct {
	ID        uint64
	User      Address
	XP        uint64
	Level     uint32
	Completed []uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserProgress builds a zero-XP, level-1 record for a newly registered
// user. The user ID is assigned by storage on insert.
func NewUserProgress(user Address, now func() time.Time) UserProgress {
	if now == nil {
		now = time.Now
	}
	createdAt := now().UTC()
	return UserProgress{
		User:      user,
		XP:        0,
		Level:     LevelForXP(0),
		Completed: nil,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// Credit applies a quest reward: it adds the reward to the XP total, appends
// the quest to the completed set, and recomputes the level. It reports
// whether the level increased. Callers are responsible for checking that the
// quest is not already in the completed set.
func (p *UserProgress) Credit(questID uint64, reward uint64, at time.Time) (leveledUp bool) {
	p.XP += reward
	p.Completed = append(p.Completed, questID)
	newLevel := LevelForXP(p.XP)
	leveledUp = newLevel > p.Level
	p.Level = newLevel
	p.UpdatedAt = at.UTC()
	return leveledUp
}

// HasCompleted reports whether the quest is in the completed set.
func (p UserProgress) HasCompleted(questID uint64) bool {
	for _, id := range p.Completed {
		if id == questID {
			return true
		}
	}
	return false
}
