package domain

import (
	"strings"
	"time"
)

// ChangeOperation describes a persisted activity operation for an item.
type ChangeOperation string

// ChangeOperation values used by the activity ledger.
const (
	ChangeOperationCreate   ChangeOperation = "create"
	ChangeOperationUpdate   ChangeOperation = "update"
	ChangeOperationMove     ChangeOperation = "move"
	ChangeOperationComplete ChangeOperation = "complete"
	ChangeOperationReopen   ChangeOperation = "reopen"
	ChangeOperationArchive  ChangeOperation = "archive"
	ChangeOperationRestore  ChangeOperation = "restore"
	ChangeOperationDelete   ChangeOperation = "delete"
)

// ActorType identifies who performed a mutation.
type ActorType string

// ActorType values.
const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAgent  ActorType = "agent"
	ActorTypeSystem ActorType = "system"
)

// NormalizeActorType folds case and whitespace, mapping unknown values to user.
func NormalizeActorType(actorType ActorType) ActorType {
	switch normalized := ActorType(strings.ToLower(strings.TrimSpace(string(actorType)))); normalized {
	case ActorTypeAgent, ActorTypeSystem:
		return normalized
	default:
		return ActorTypeUser
	}
}

// ChangeEvent represents a single activity-log entry for a board item.
type ChangeEvent struct {
	ID         int64             `json:"id"`
	Board      BoardKind         `json:"board"`
	ItemID     string            `json:"item_id"`
	Operation  ChangeOperation   `json:"operation"`
	ActorID    string            `json:"actor_id,omitempty"`
	ActorType  ActorType         `json:"actor_type,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
