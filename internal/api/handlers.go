package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"medbook/internal/domain"
	"medbook/internal/export"
	"medbook/internal/models"
)

func (s *HTTPServer) handleCreateProfessional(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      uuid.UUID `json:"user_id"`
		DisplayName string    `json:"display_name"`
		IsAvailable *bool     `json:"is_available"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.DisplayName) == "" {
		s.writeDomainError(w, r, domain.Invalid("display_name", "is required"))
		return
	}

	p := &models.Professional{
		UserID:      body.UserID,
		DisplayName: strings.TrimSpace(body.DisplayName),
		IsAvailable: body.IsAvailable == nil || *body.IsAvailable,
	}
	if err := s.svc.Professionals.CreateProfessional(r.Context(), p); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *HTTPServer) handleListProfessionals(w http.ResponseWriter, r *http.Request) {
	onlyAvailable, _ := strconv.ParseBool(r.URL.Query().Get("available"))
	professionals, err := s.svc.Professionals.ListProfessionals(r.Context(), onlyAvailable)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"professionals": professionals})
}

func (s *HTTPServer) handleGetProfessional(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "professionalID")
	if !ok {
		return
	}
	p, err := s.svc.Professionals.GetProfessional(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handleSetProfessionalAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "professionalID")
	if !ok {
		return
	}
	var body struct {
		IsAvailable bool `json:"is_available"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.svc.Professionals.SetProfessionalAvailability(r.Context(), id, body.IsAvailable); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListRules(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "professionalID")
	if !ok {
		return
	}
	activeOnly := true
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		activeOnly = v
	}

	rules, err := s.svc.Availability.ListRules(r.Context(), id, activeOnly)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (s *HTTPServer) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "professionalID")
	if !ok {
		return
	}
	var rule models.AvailabilityRule
	if !decodeBody(w, r, &rule) {
		return
	}
	rule.ID = uuid.Nil
	rule.ProfessionalID = id

	if err := s.svc.Availability.CreateRule(r.Context(), &rule); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *HTTPServer) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "ruleID")
	if !ok {
		return
	}
	rule, err := s.svc.Availability.GetRule(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *HTTPServer) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "ruleID")
	if !ok {
		return
	}
	var rule models.AvailabilityRule
	if !decodeBody(w, r, &rule) {
		return
	}
	rule.ID = id

	if err := s.svc.Availability.UpdateRule(r.Context(), &rule); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	updated, err := s.svc.Availability.GetRule(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleDeactivateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "ruleID")
	if !ok {
		return
	}
	if err := s.svc.Availability.DeactivateRule(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleGenerateSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "professionalID")
	if !ok {
		return
	}
	date, ok := dateQuery(w, r, "date")
	if !ok {
		return
	}
	slots, err := s.svc.Availability.GenerateSlots(r.Context(), id, date)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// handleGetSlots serves either ?date= or ?from=&to=.
func (s *HTTPServer) handleGetSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "professionalID")
	if !ok {
		return
	}

	var (
		slots []*models.Slot
		err   error
	)
	if r.URL.Query().Get("date") != "" {
		date, ok := dateQuery(w, r, "date")
		if !ok {
			return
		}
		slots, err = s.svc.Availability.GetSlotsByDate(r.Context(), id, date)
	} else {
		from, ok := dateQuery(w, r, "from")
		if !ok {
			return
		}
		to, ok := dateQuery(w, r, "to")
		if !ok {
			return
		}
		slots, err = s.svc.Availability.GetSlotsForRange(r.Context(), id, from, to)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (s *HTTPServer) handleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "professionalID")
	if !ok {
		return
	}
	start, ok := timeQuery(w, r, "start")
	if !ok {
		return
	}
	duration, err := strconv.Atoi(r.URL.Query().Get("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "duration must be an integer number of minutes")
		return
	}

	available, err := s.svc.Availability.IsSlotAvailable(r.Context(), id, start, duration)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available":        available,
		"start":            start.UTC(),
		"duration_minutes": duration,
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "professionalID")
	if !ok {
		return
	}
	from, ok := dateQuery(w, r, "from")
	if !ok {
		return
	}
	to, ok := dateQuery(w, r, "to")
	if !ok {
		return
	}
	if s.svc.Exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	p, err := s.svc.Professionals.GetProfessional(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	f, err := s.svc.Exporter.Build(r.Context(), p, from, to)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(p.ID, from, to)))
	if _, err := f.WriteTo(w); err != nil {
		s.logger.Error().Err(err).Str("professional_id", id.String()).Msg("Failed to stream export")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// decodeOptionalBody accepts an empty body as the zero value.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func dateQuery(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is required", name))
		return time.Time{}, false
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s format; expected YYYY-MM-DD", name))
		return time.Time{}, false
	}
	return date, true
}

func timeQuery(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s; expected RFC3339 timestamp", name))
		return time.Time{}, false
	}
	return t, true
}
