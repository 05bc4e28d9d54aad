package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderRequested OrderStatus = "requested"
	OrderApproved  OrderStatus = "approved"
	OrderDeclined  OrderStatus = "declined"
	OrderCancelled OrderStatus = "cancelled"
	OrderCompleted OrderStatus = "completed"
	OrderNoShow    OrderStatus = "no_show"
)

// IsTerminal reports whether no transition leaves the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderDeclined, OrderCancelled, OrderCompleted, OrderNoShow:
		return true
	}
	return false
}

// HoldsSlots reports whether an order in this status owns reserved slots.
func (s OrderStatus) HoldsSlots() bool {
	return s == OrderApproved
}

type Order struct {
	ID              uuid.UUID   `json:"id"`
	ClientID        uuid.UUID   `json:"client_id"`
	ProfessionalID  uuid.UUID   `json:"professional_id"`
	ScheduledAt     time.Time   `json:"scheduled_at"`
	DurationMinutes int         `json:"duration_minutes"`
	Status          OrderStatus `json:"status"`
	Title           string      `json:"title,omitempty"`
	Description     string      `json:"description,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	ApprovalReason  string      `json:"approval_reason,omitempty"`
	DeclineReason   string      `json:"decline_reason,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	SlotIDs         []uuid.UUID `json:"slot_ids,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Version         int64       `json:"version"`
}

func (o *Order) Duration() time.Duration {
	return time.Duration(o.DurationMinutes) * time.Minute
}

func (o *Order) EndsAt() time.Time {
	return o.ScheduledAt.Add(o.Duration())
}

// OrderHistory is an append-only record of one status transition.
type OrderHistory struct {
	ID              uuid.UUID   `json:"id"`
	OrderID         uuid.UUID   `json:"order_id"`
	PreviousStatus  OrderStatus `json:"previous_status"`
	NewStatus       OrderStatus `json:"new_status"`
	Reason          string      `json:"reason,omitempty"`
	ChangedByUserID *uuid.UUID  `json:"changed_by_user_id,omitempty"`
	ChangedAt       time.Time   `json:"changed_at"`
	Notes           string      `json:"notes,omitempty"`
}

// NewOrder is the client input for a booking request.
type NewOrder struct {
	ClientID        uuid.UUID `json:"client_id"`
	ProfessionalID  uuid.UUID `json:"professional_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Title           string    `json:"title,omitempty"`
	Description     string    `json:"description,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// OrderChanges holds editable fields of a requested order. Nil means unchanged.
type OrderChanges struct {
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

func (c OrderChanges) ReschedulesOrder() bool {
	return c.ScheduledAt != nil || c.DurationMinutes != nil
}
