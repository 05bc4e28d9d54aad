package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"medbook/internal/domain"
	"medbook/internal/metrics"
	"medbook/internal/models"
)

// AvailabilityService turns weekly rules into concrete slots and answers
// whether a time window can be booked.
type AvailabilityService struct {
	store        domain.AvailabilityStore
	slotDuration time.Duration
	logger       *zerolog.Logger
}

func NewAvailabilityService(store domain.AvailabilityStore, slotDuration time.Duration, logger *zerolog.Logger) *AvailabilityService {
	if slotDuration <= 0 {
		slotDuration = models.DefaultSlotDurationMinutes * time.Minute
	}
	return &AvailabilityService{store: store, slotDuration: slotDuration, logger: logger}
}

func (s *AvailabilityService) SlotDuration() time.Duration {
	return s.slotDuration
}

// GenerateSlots materializes the slots of every active rule applying to date
// and returns all slots of that date. Repeated calls create nothing new.
func (s *AvailabilityService) GenerateSlots(ctx context.Context, professionalID uuid.UUID, date time.Time) (slots []*models.Slot, err error) {
	started := time.Now()
	day := models.DateOf(date)
	ctx, span := startSpan(ctx, "availability.generate_slots",
		attribute.String("professional_id", professionalID.String()),
		attribute.String("date", day.Format(models.DateLayout)))
	defer func() {
		endSpan(span, err)
		metrics.ObserveOperation("generate_slots", started)
	}()

	if _, err := s.store.GetProfessional(ctx, professionalID); err != nil {
		return nil, err
	}

	rules, err := s.store.ListRules(ctx, professionalID, true)
	if err != nil {
		return nil, err
	}

	var candidates []*models.Slot
	for _, rule := range rules {
		if rule.AppliesOn(day) {
			candidates = append(candidates, s.expandRule(rule, day)...)
		}
	}

	inserted, err := s.store.InsertSlotsIfAbsent(ctx, candidates)
	if err != nil {
		return nil, err
	}
	if inserted > 0 {
		metrics.AddSlotsGenerated(inserted)
		s.logger.Debug().
			Str("professional_id", professionalID.String()).
			Str("date", day.Format(models.DateLayout)).
			Int("inserted", inserted).
			Msg("Slots generated")
	}

	return s.store.GetSlotsByDate(ctx, professionalID, day)
}

// expandRule walks the rule window in slot-sized steps; a trailing
// remainder shorter than one slot is dropped.
func (s *AvailabilityService) expandRule(rule *models.AvailabilityRule, day time.Time) []*models.Slot {
	var slots []*models.Slot
	for start := rule.StartTime; start.Add(s.slotDuration) <= rule.EndTime; start = start.Add(s.slotDuration) {
		slots = append(slots, &models.Slot{
			AvailabilityRuleID: rule.ID,
			ProfessionalID:     rule.ProfessionalID,
			Date:               day,
			StartTime:          start,
			EndTime:            start.Add(s.slotDuration),
			State:              models.SlotAvailable,
		})
	}
	return slots
}

func (s *AvailabilityService) GetSlotsByDate(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]*models.Slot, error) {
	return s.store.GetSlotsByDate(ctx, professionalID, models.DateOf(date))
}

func (s *AvailabilityService) GetSlotsForRange(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*models.Slot, error) {
	from, to = models.DateOf(from), models.DateOf(to)
	if to.Before(from) {
		return nil, domain.Invalid("to", "must not be before from")
	}
	return s.store.GetSlotsForRange(ctx, professionalID, from, to)
}

// CoveringSlots returns the contiguous slots exactly covering
// [start, start+duration), whatever their state. It returns ErrConflict
// when no such run of slots exists.
func (s *AvailabilityService) CoveringSlots(ctx context.Context, professionalID uuid.UUID, start time.Time, durationMinutes int) ([]*models.Slot, error) {
	if err := s.validateWindow(start, durationMinutes); err != nil {
		return nil, err
	}
	start = models.NormalizeUTC(start)

	daySlots, err := s.GenerateSlots(ctx, professionalID, start)
	if err != nil {
		return nil, err
	}

	from := models.ClockOf(start)
	to := from.Add(time.Duration(durationMinutes) * time.Minute)

	var covering []*models.Slot
	next := from
	for _, slot := range daySlots {
		if slot.StartTime < from || slot.StartTime >= to {
			continue
		}
		if slot.StartTime != next {
			break
		}
		covering = append(covering, slot)
		next = slot.EndTime
	}
	if next != to {
		return nil, fmt.Errorf("%w: no availability covers %s-%s on %s",
			domain.ErrConflict, from, to, start.Format(models.DateLayout))
	}
	return covering, nil
}

// IsSlotAvailable reports whether every slot covering the window exists and is available.
func (s *AvailabilityService) IsSlotAvailable(ctx context.Context, professionalID uuid.UUID, start time.Time, durationMinutes int) (bool, error) {
	slots, err := s.CoveringSlots(ctx, professionalID, start, durationMinutes)
	if err != nil {
		if isConflict(err) {
			return false, nil
		}
		return false, err
	}
	for _, slot := range slots {
		if !slot.IsAvailable() {
			return false, nil
		}
	}
	return true, nil
}

func (s *AvailabilityService) validateWindow(start time.Time, durationMinutes int) error {
	if start.IsZero() {
		return domain.Invalid("scheduled_at", "is required")
	}
	if start.Second() != 0 || start.Nanosecond() != 0 {
		return domain.Invalid("scheduled_at", "must be on a whole minute")
	}
	if durationMinutes <= 0 {
		return domain.Invalid("duration_minutes", "must be positive")
	}
	if step := int(s.slotDuration / time.Minute); durationMinutes%step != 0 {
		return domain.Invalid("duration_minutes", fmt.Sprintf("must be a multiple of %d", step))
	}
	return nil
}

// CreateRule сохраняет новое активное правило доступности
func (s *AvailabilityService) CreateRule(ctx context.Context, rule *models.AvailabilityRule) error {
	if _, err := s.store.GetProfessional(ctx, rule.ProfessionalID); err != nil {
		return err
	}
	rule.IsActive = true
	if err := s.normalizeRule(rule); err != nil {
		return err
	}
	if err := s.store.CreateRule(ctx, rule); err != nil {
		return err
	}
	s.logger.Info().
		Str("rule_id", rule.ID.String()).
		Str("professional_id", rule.ProfessionalID.String()).
		Str("day", rule.DayOfWeek.String()).
		Str("window", rule.StartTime.String()+"-"+rule.EndTime.String()).
		Msg("Availability rule created")
	return nil
}

func (s *AvailabilityService) GetRule(ctx context.Context, id uuid.UUID) (*models.AvailabilityRule, error) {
	return s.store.GetRule(ctx, id)
}

// UpdateRule changes the window of an existing rule. Slots already
// materialized from it are left untouched. Activation is not changed here,
// see DeactivateRule.
func (s *AvailabilityService) UpdateRule(ctx context.Context, rule *models.AvailabilityRule) error {
	existing, err := s.store.GetRule(ctx, rule.ID)
	if err != nil {
		return err
	}
	rule.ProfessionalID = existing.ProfessionalID
	rule.CreatedAt = existing.CreatedAt
	rule.IsActive = existing.IsActive
	if err := s.normalizeRule(rule); err != nil {
		return err
	}
	return s.store.UpdateRule(ctx, rule)
}

func (s *AvailabilityService) DeactivateRule(ctx context.Context, id uuid.UUID) error {
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if !rule.IsActive {
		return nil
	}
	rule.IsActive = false
	if err := s.store.UpdateRule(ctx, rule); err != nil {
		return err
	}
	s.logger.Info().Str("rule_id", id.String()).Msg("Availability rule deactivated")
	return nil
}

func (s *AvailabilityService) ListRules(ctx context.Context, professionalID uuid.UUID, activeOnly bool) ([]*models.AvailabilityRule, error) {
	return s.store.ListRules(ctx, professionalID, activeOnly)
}

func (s *AvailabilityService) normalizeRule(rule *models.AvailabilityRule) error {
	if rule.DayOfWeek < time.Sunday || rule.DayOfWeek > time.Saturday {
		return domain.Invalid("day_of_week", "must be between 0 (Sunday) and 6 (Saturday)")
	}
	if !rule.StartTime.Valid() || !rule.EndTime.Valid() {
		return domain.Invalid("start_time", "must be a time of day")
	}
	if rule.StartTime >= rule.EndTime {
		return domain.Invalid("end_time", "must be after start_time")
	}
	if rule.ScheduleType == "" {
		rule.ScheduleType = models.ScheduleRegular
	}
	if !rule.ScheduleType.Valid() {
		return domain.Invalid("schedule_type", "must be regular or temporary")
	}
	if rule.StartDate != nil {
		d := models.DateOf(*rule.StartDate)
		rule.StartDate = &d
	}
	if rule.EndDate != nil {
		d := models.DateOf(*rule.EndDate)
		rule.EndDate = &d
	}
	if rule.StartDate != nil && rule.EndDate != nil && rule.EndDate.Before(*rule.StartDate) {
		return domain.Invalid("end_date", "must not be before start_date")
	}
	return nil
}
