package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"content-factory/internal/domain"
)

type transitionRequest struct {
	To string `json:"to"`
}

type scheduleRunRequest struct {
	Start string `json:"start"`
}

type scheduleRequest struct {
	Date string `json:"date"`
}

type postDTO struct {
	ID            string          `json:"id"`
	AssetID       string          `json:"asset_id"`
	IsCore        bool            `json:"is_core"`
	ParentPostID  string          `json:"parent_post_id,omitempty"`
	DerivativeIDs []string        `json:"derivative_ids,omitempty"`
	Channel       string          `json:"channel"`
	Format        string          `json:"format"`
	Status        string          `json:"status"`
	Weight        string          `json:"weight"`
	Score         *int            `json:"score,omitempty"`
	PillarID      string          `json:"pillar_id,omitempty"`
	ScheduledDate string          `json:"scheduled_date,omitempty"`
	RejectReason  string          `json:"reject_reason,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toPostDTO(p domain.Post) postDTO {
	dto := postDTO{
		ID:            p.ID,
		AssetID:       p.AssetID,
		IsCore:        p.IsCore,
		ParentPostID:  p.ParentPostID,
		DerivativeIDs: p.DerivativeIDs,
		Channel:       string(p.Channel),
		Format:        string(p.Format),
		Status:        string(p.Status),
		Weight:        string(p.Weight),
		Score:         p.Score,
		PillarID:      p.PillarID,
		RejectReason:  string(p.RejectReason),
		Payload:       json.RawMessage(p.PayloadJSON),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.ScheduledDate != nil {
		dto.ScheduledDate = p.ScheduledDate.Format("2006-01-02")
	}
	return dto
}

type assignmentDTO struct {
	PostID        string `json:"post_id"`
	ScheduledDate string `json:"scheduled_date"`
}

type conflictDTO struct {
	Kind    string `json:"kind"`
	Date    string `json:"date"`
	Message string `json:"message"`
}

type scheduleResultDTO struct {
	Assignments []assignmentDTO `json:"assignments"`
	Unplaced    []postDTO       `json:"unplaced"`
	Conflicts   []conflictDTO   `json:"conflicts"`
	RunAt       time.Time       `json:"run_at"`
}

func toScheduleResultDTO(result domain.ScheduleResult) scheduleResultDTO {
	dto := scheduleResultDTO{
		Assignments: make([]assignmentDTO, 0, len(result.Assignments)),
		Unplaced:    make([]postDTO, 0, len(result.Unplaced)),
		Conflicts:   toConflictDTOs(result.Conflicts),
		RunAt:       result.RunAt,
	}
	for _, a := range result.Assignments {
		dto.Assignments = append(dto.Assignments, assignmentDTO{
			PostID:        a.PostID,
			ScheduledDate: a.ScheduledDate.Format("2006-01-02"),
		})
	}
	for _, p := range result.Unplaced {
		dto.Unplaced = append(dto.Unplaced, toPostDTO(p))
	}
	return dto
}

func toConflictDTOs(conflicts []domain.ConflictReport) []conflictDTO {
	out := make([]conflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictDTO{
			Kind:    string(c.Kind),
			Date:    c.Date.Format("2006-01-02"),
			Message: c.Message,
		})
	}
	return out
}

type slotDTO struct {
	DayOfWeek int      `json:"day_of_week"`
	Label     string   `json:"label"`
	Channels  []string `json:"channels"`
}

func toSlotDTO(t domain.WeeklySlotTemplate) slotDTO {
	channels := make([]string, 0, len(t.Channels))
	for _, c := range t.Channels {
		channels = append(channels, string(c))
	}
	return slotDTO{DayOfWeek: int(t.DayOfWeek), Label: t.Label, Channels: channels}
}

func fromSlotDTO(s slotDTO) domain.WeeklySlotTemplate {
	channels := make([]domain.Channel, 0, len(s.Channels))
	for _, c := range s.Channels {
		channels = append(channels, domain.Channel(c))
	}
	return domain.WeeklySlotTemplate{DayOfWeek: time.Weekday(s.DayOfWeek), Label: s.Label, Channels: channels}
}

type pillarDTO struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func chiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func addrFromPort(port int) string {
	return fmt.Sprintf(":%d", port)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
