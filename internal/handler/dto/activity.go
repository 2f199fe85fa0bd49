package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/model"
)

// ActivityResponse is a feed entry in API responses.
type ActivityResponse struct {
	ID         string           `json:"id"`
	ActorID    string           `json:"actor_id"`
	Kind       string           `json:"kind"`
	SubjectID  string           `json:"subject_id,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// ToActivityResponses converts feed entries.
func ToActivityResponses(list []*model.Activity) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(list))
	for _, a := range list {
		out = append(out, ActivityResponse{
			ID:         a.ID,
			ActorID:    a.ActorID,
			Kind:       string(a.Kind),
			SubjectID:  a.SubjectID,
			Amount:     a.Amount,
			Detail:     a.Detail,
			OccurredAt: a.OccurredAt,
		})
	}
	return out
}
