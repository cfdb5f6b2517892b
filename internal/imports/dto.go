package imports

import (
	"time"

	"github.com/google/uuid"

	"github.com/equinox-erp/equinox/internal/shared"
)

type ResolveRequest struct {
	Resolutions []ResolutionItem `json:"resolutions" validate:"required,min=1,dive"`
}

type ResolutionItem struct {
	Row        int    `json:"row" validate:"required,gt=0"`
	Resolution string `json:"resolution" validate:"required,oneof=skip overwrite create_new"`
}

type CategoriesRequest struct {
	Categories []CategoryTaxItem `json:"categories" validate:"required,min=1,dive"`
}

type CategoryTaxItem struct {
	Category   string   `json:"category" validate:"required,max=200"`
	HSNCode    string   `json:"hsn_code" validate:"omitempty,numeric,min=4,max=8"`
	GSTPercent *float64 `json:"gst_percent" validate:"omitempty,gte=0,lte=28"`
}

type ApplyRequest struct {
	Preset     string   `json:"preset" validate:"omitempty,max=50"`
	HSNCode    string   `json:"hsn_code" validate:"omitempty,numeric,min=4,max=8"`
	GSTPercent *float64 `json:"gst_percent" validate:"omitempty,gte=0,lte=28"`
}

type BackRequest struct {
	Step int `json:"step" validate:"required,gte=1,lte=4"`
}

type uploadForm struct {
	Division string `validate:"required,max=20"`
	Layout   string `validate:"omitempty,oneof=fixed heuristic template auto freeform"`
	FileName string `validate:"required,max=255"`
}

type RowView struct {
	ValidatedRow
	Status RowStatus `json:"status"`
}

type SessionResponse struct {
	BatchID    uuid.UUID            `json:"batch_id"`
	Division   string               `json:"division"`
	FileName   string               `json:"file_name"`
	Layout     string               `json:"layout"`
	Step       string               `json:"step"`
	StepNumber int                  `json:"step_number"`
	Summary    Summary              `json:"summary"`
	Rows       []RowView            `json:"rows"`
	Categories []CategoryAssignment `json:"categories,omitempty"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func newSessionResponse(s *ImportSession) SessionResponse {
	resp := SessionResponse{
		BatchID:    s.BatchID,
		Division:   s.DivisionCode,
		FileName:   s.FileName,
		Layout:     s.Layout,
		Step:       s.Step.String(),
		StepNumber: int(s.Step),
		Summary:    s.Summary(),
		Rows:       make([]RowView, 0, len(s.Rows)),
		UpdatedAt:  s.UpdatedAt,
	}
	for _, r := range s.Rows {
		resp.Rows = append(resp.Rows, RowView{ValidatedRow: r, Status: r.Status()})
	}
	if s.Assignments != nil {
		resp.Categories = s.Assignments.Items
	}
	return resp
}

type ApplyResponse struct {
	Changed int             `json:"changed"`
	Session SessionResponse `json:"session"`
}

type BatchListResponse struct {
	Batches    []ImportBatch     `json:"batches"`
	Pagination shared.Pagination `json:"pagination"`
}

type JobResponse struct {
	BatchID uuid.UUID `json:"batch_id"`
	TaskID  string    `json:"task_id"`
	Queued  bool      `json:"queued"`
}
