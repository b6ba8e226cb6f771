package claim

import (
	"context"
	"time"

	"github.com/rcm/rcm/internal/domain/encounter"
	"github.com/rcm/rcm/internal/platform/advisory"
)

// Snapshot is the read-only view of a claim handed to an Advisor.
type Snapshot struct {
	Patient   *encounter.Patient   `json:"patient"`
	Encounter *encounter.Encounter `json:"encounter"`
	Charges   []*encounter.Charge  `json:"charges"`
	Claim     *Claim               `json:"claim"`
}

// Advisor reviews a claim snapshot. Failures are treated by the service as
// "no suggestions".
type Advisor interface {
	Review(ctx context.Context, snap Snapshot) (*Advisory, error)
}

// ModelClient is implemented by *advisory.Client.
type ModelClient interface {
	Review(ctx context.Context, input any) (*advisory.Result, error)
}

type modelAdvisor struct {
	client ModelClient
	now    func() time.Time
}

// NewModelAdvisor adapts a chat-model client to Advisor.
func NewModelAdvisor(client ModelClient) Advisor {
	return &modelAdvisor{client: client, now: time.Now}
}

func (a *modelAdvisor) Review(ctx context.Context, snap Snapshot) (*Advisory, error) {
	res, err := a.client.Review(ctx, snap)
	if err != nil {
		return nil, err
	}
	changes := make([]FieldError, 0, len(res.SuggestedChanges))
	for _, s := range res.SuggestedChanges {
		changes = append(changes, FieldError{Field: s.Field, Message: s.Message})
	}
	return &Advisory{
		Summary:          res.Summary,
		Risks:            res.Risks,
		SuggestedChanges: changes,
		Confidence:       res.Confidence,
		RanAt:            a.now().UTC(),
	}, nil
}

func fallbackAdvisory(summary, risk string, now time.Time) *Advisory {
	return &Advisory{
		Summary:          summary,
		Risks:            []string{risk},
		SuggestedChanges: []FieldError{},
		Confidence:       0,
		RanAt:            now.UTC(),
	}
}
