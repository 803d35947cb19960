// Package domain holds the core QuestBridge value types: addresses, quest
// definitions, and per-user progress records, together with the XP/level
// derivation rules. Types here carry no storage or transport concerns.
package domain
