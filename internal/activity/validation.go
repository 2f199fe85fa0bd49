package activity

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/model"
)

const (
	maxIDLength     = 64
	maxDetailLength = 200
)

// ValidateEventPayload checks a payload read from the stream.
func ValidateEventPayload(payload EventPayload) error {
	if payload.GroupID == "" {
		return fmt.Errorf("group_id is required")
	}
	if payload.ActorID == "" {
		return fmt.Errorf("actor_id is required")
	}
	if len(payload.GroupID) > maxIDLength || len(payload.ActorID) > maxIDLength || len(payload.SubjectID) > maxIDLength {
		return fmt.Errorf("id too long")
	}
	if !model.ActivityKind(payload.Kind).Valid() {
		return fmt.Errorf("unknown kind %q", payload.Kind)
	}
	if payload.Amount != "" {
		if _, err := decimal.NewFromString(payload.Amount); err != nil {
			return fmt.Errorf("amount is not a decimal")
		}
	}
	if len(payload.Detail) > maxDetailLength {
		return fmt.Errorf("detail too long")
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	return nil
}
