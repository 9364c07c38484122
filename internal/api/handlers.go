// Package api exposes the thin HTTP facade that UI shells call into.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"example.com/routine/internal/auth"
	"example.com/routine/internal/channel"
	"example.com/routine/internal/domain"
)

// Handler serves per-request schedule reads and mutations. Each request
// resolves the caller's identity from its bearer token; mutations are full
// overwrites through the same store the sync engine uses.
type Handler struct {
	template []domain.ActivityTemplate
	store    channel.RecordStore
}

// NewHandler builds a Handler.
func NewHandler(template []domain.ActivityTemplate, store channel.RecordStore) *Handler {
	return &Handler{template: template, store: store}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/schedule", h.schedule)
	mux.HandleFunc("/v1/schedule/toggle", h.toggle)
	mux.HandleFunc("/v1/schedule/comment", h.comment)
	mux.HandleFunc("/v1/template", h.templateCatalog)
	mux.HandleFunc("/healthz", healthz)
}

// RequiredScopes is the scope rule for the facade routes: mutations need
// routine:write, schedule reads accept either scope, and the template catalog
// is open to any valid token. Scope enforcement happens in the auth
// middleware; handlers only resolve the identity.
func RequiredScopes(r *http.Request) []string {
	switch {
	case strings.HasPrefix(r.URL.Path, "/v1/schedule/"):
		return []string{auth.ScopeRoutineWrite}
	case r.URL.Path == "/v1/schedule":
		return []string{auth.ScopeRoutineRead, auth.ScopeRoutineWrite}
	}
	return nil
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	date, err := domain.ParseDateKey(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return
	}

	records, err := h.store.GetRecord(r.Context(), identity, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toScheduleView(date, domain.Merge(h.template, records)))
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(schedule domain.DailySchedule, req MutationRequest) {
		schedule[req.Index].IsDone = !schedule[req.Index].IsDone
	})
}

func (h *Handler) comment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(schedule domain.DailySchedule, req MutationRequest) {
		schedule[req.Index].Comment = req.Comment
	})
}

// mutate loads the merged schedule, applies the change, and overwrites the
// whole record, preserving last-write-wins semantics for the full date.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, apply func(domain.DailySchedule, MutationRequest)) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req MutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	date, err := domain.ParseDateKey(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return
	}
	if req.Index < 0 || req.Index >= len(h.template) {
		writeError(w, http.StatusBadRequest, "validation_failed", "index out of range")
		return
	}

	records, err := h.store.GetRecord(r.Context(), identity, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	schedule := domain.Merge(h.template, records)
	apply(schedule, req)

	if err := h.store.PutRecord(r.Context(), identity, date, schedule); err != nil {
		if errors.Is(err, domain.ErrNoIdentity) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "identity not resolved")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toScheduleView(date, schedule))
}

func (h *Handler) templateCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	slots := make([]TemplateSlotView, 0, len(h.template))
	for _, slot := range h.template {
		slots = append(slots, TemplateSlotView{
			TimeLabel:   slot.TimeLabel,
			Description: slot.Description,
			Details:     slot.Details,
		})
	}

	sections := make([]SectionView, 0, 3)
	for _, section := range domain.Sections(h.template) {
		sections = append(sections, SectionView{Name: section.Name, TimeLabels: section.TimeLabels})
	}

	writeJSON(w, http.StatusOK, TemplateResponse{Slots: slots, Sections: sections})
}

// MutationRequest is the payload for toggle and comment mutations.
type MutationRequest struct {
	Date    string `json:"date"`
	Index   int    `json:"index"`
	Comment string `json:"comment"`
}

// Validate ensures request correctness.
func (r MutationRequest) Validate() error {
	if strings.TrimSpace(r.Date) == "" {
		return errors.New("date is required")
	}
	if r.Index < 0 {
		return errors.New("index must be >= 0")
	}
	return nil
}

// ActivityView is the per-slot payload returned to shells.
type ActivityView struct {
	TimeLabel   string `json:"time_label"`
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
	IsDone      bool   `json:"is_done"`
	Comment     string `json:"comment"`
}

// ScheduleView packages a merged schedule for one date.
type ScheduleView struct {
	Date       string         `json:"date"`
	Activities []ActivityView `json:"activities"`
	DoneCount  int            `json:"done_count"`
	Total      int            `json:"total"`
}

// TemplateSlotView mirrors one catalog slot.
type TemplateSlotView struct {
	TimeLabel   string `json:"time_label"`
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
}

// SectionView is a static time-of-day grouping for presentation.
type SectionView struct {
	Name       string   `json:"name"`
	TimeLabels []string `json:"time_labels"`
}

// TemplateResponse packages the catalog and its section groupings.
type TemplateResponse struct {
	Slots    []TemplateSlotView `json:"slots"`
	Sections []SectionView      `json:"sections"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toScheduleView(date domain.DateKey, schedule domain.DailySchedule) ScheduleView {
	view := ScheduleView{
		Date:       date.String(),
		Activities: make([]ActivityView, 0, len(schedule)),
		Total:      len(schedule),
	}
	for _, record := range schedule {
		if record.IsDone {
			view.DoneCount++
		}
		view.Activities = append(view.Activities, ActivityView{
			TimeLabel:   record.TimeLabel,
			Description: record.Description,
			Details:     record.Details,
			IsDone:      record.IsDone,
			Comment:     record.Comment,
		})
	}
	return view
}
