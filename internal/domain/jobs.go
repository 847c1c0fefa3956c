package domain

import (
	"context"
	"encoding/json"
	"time"
)

// IntakePost описывает один пост в пакете от генератора контента.
type IntakePost struct {
	Channel  Channel         `json:"channel"`
	Format   AssetFormat     `json:"format"`
	Weight   PostWeight      `json:"weight,omitempty"`
	PillarID string          `json:"pillar_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// IntakeJob — пакет контента от внешнего генератора: корневой пост и производные
// от одного материала.
type IntakeJob struct {
	BatchID     string       `json:"batch_id"`
	Asset       Asset        `json:"asset"`
	Core        IntakePost   `json:"core"`
	Derivatives []IntakePost `json:"derivatives,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
}

// IntakeQueue описывает очередь пакетов контента.
type IntakeQueue interface {
	Enqueue(ctx context.Context, job IntakeJob) error
	Pop(ctx context.Context) (IntakeJob, error)
}
