// Package service implements the ledger's state machines: the quest
// registry and the quest-completion authority.
//
// The authority is the single gatekeeper for the NotCompleted -> Completed
// transition of a (quest, user) pair. Direct completions arrive from
// registered quest-variant modules and treat duplicates as hard failures;
// cross-domain updates arrive from registered relays and treat duplicates as
// silent no-ops, because the transport may legitimately redeliver a message.
//
// Every state-mutating call executes serially per domain and inside one
// atomic storage unit. Relay forwarding happens inside that unit, so a
// transport failure unwinds the local mutation as well.
package service
