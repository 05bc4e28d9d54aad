package models

import (
	"time"

	"github.com/google/uuid"
)

type ScheduleType string

const (
	ScheduleRegular   ScheduleType = "regular"
	ScheduleTemporary ScheduleType = "temporary"
)

func (t ScheduleType) Valid() bool {
	return t == ScheduleRegular || t == ScheduleTemporary
}

// AvailabilityRule is a recurring weekly working window of a professional.
type AvailabilityRule struct {
	ID             uuid.UUID    `json:"id"`
	ProfessionalID uuid.UUID    `json:"professional_id"`
	DayOfWeek      time.Weekday `json:"day_of_week"`
	StartTime      ClockTime    `json:"start_time"`
	EndTime        ClockTime    `json:"end_time"`
	ScheduleType   ScheduleType `json:"schedule_type"`
	StartDate      *time.Time   `json:"start_date,omitempty"`
	EndDate        *time.Time   `json:"end_date,omitempty"`
	IsActive       bool         `json:"is_active"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// AppliesOn reports whether the rule produces slots on the given date.
func (r *AvailabilityRule) AppliesOn(date time.Time) bool {
	if !r.IsActive {
		return false
	}
	day := DateOf(date)
	if day.Weekday() != r.DayOfWeek {
		return false
	}
	if r.StartDate != nil && day.Before(DateOf(*r.StartDate)) {
		return false
	}
	if r.EndDate != nil && day.After(DateOf(*r.EndDate)) {
		return false
	}
	return true
}

type SlotState string

const (
	SlotAvailable SlotState = "available"
	SlotReserved  SlotState = "reserved"
)

// Slot is a fixed-length bookable interval materialized from a rule.
type Slot struct {
	ID                 uuid.UUID `json:"id"`
	AvailabilityRuleID uuid.UUID `json:"availability_rule_id"`
	ProfessionalID     uuid.UUID `json:"professional_id"`
	Date               time.Time `json:"date"`
	StartTime          ClockTime `json:"start_time"`
	EndTime            ClockTime `json:"end_time"`
	State              SlotState `json:"state"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}


func (s *Slot) IsAvailable() bool {
	return s.State == SlotAvailable
}

func SlotIDs(slots []*Slot) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	return ids
}
