package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medbook/internal/models"
)

// TxManager runs fn in a transaction carried by the context.
// Nested calls join the outer transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProfessionalRepository interface {
	CreateProfessional(ctx context.Context, p *models.Professional) error
	GetProfessional(ctx context.Context, id uuid.UUID) (*models.Professional, error)
	SetProfessionalAvailability(ctx context.Context, id uuid.UUID, available bool) error
	ListProfessionals(ctx context.Context, onlyAvailable bool) ([]*models.Professional, error)
}

type RuleRepository interface {
	CreateRule(ctx context.Context, rule *models.AvailabilityRule) error
	GetRule(ctx context.Context, id uuid.UUID) (*models.AvailabilityRule, error)
	UpdateRule(ctx context.Context, rule *models.AvailabilityRule) error
	ListRules(ctx context.Context, professionalID uuid.UUID, activeOnly bool) ([]*models.AvailabilityRule, error)
}

type SlotRepository interface {
	InsertSlotsIfAbsent(ctx context.Context, slots []*models.Slot) (int, error)
	GetSlotsByDate(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]*models.Slot, error)
	GetSlotsForRange(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*models.Slot, error)
	// TryReserve flips every listed slot to reserved, or none of them and returns ErrConflict.
	TryReserve(ctx context.Context, slotIDs []uuid.UUID) error
	// Release returns slots to available. Already available slots are left as is.
	Release(ctx context.Context, slotIDs []uuid.UUID) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateOrderWithVersion(ctx context.Context, order *models.Order) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	SetOrderSlots(ctx context.Context, orderID uuid.UUID, slotIDs []uuid.UUID) error
	ListOrdersByProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*models.Order, error)
	ListOrdersByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Order, error)
	AppendHistory(ctx context.Context, entry *models.OrderHistory) error
	GetOrderHistory(ctx context.Context, orderID uuid.UUID) ([]*models.OrderHistory, error)
}

type AvailabilityStore interface {
	TxManager
	ProfessionalRepository
	RuleRepository
	SlotRepository
}

type Repository interface {
	AvailabilityStore
	OrderRepository
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Locker serializes work on one key across callers. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type AvailabilityService interface {
	GenerateSlots(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]*models.Slot, error)
	GetSlotsByDate(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]*models.Slot, error)
	GetSlotsForRange(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*models.Slot, error)
	IsSlotAvailable(ctx context.Context, professionalID uuid.UUID, start time.Time, durationMinutes int) (bool, error)
	CoveringSlots(ctx context.Context, professionalID uuid.UUID, start time.Time, durationMinutes int) ([]*models.Slot, error)
	CreateRule(ctx context.Context, rule *models.AvailabilityRule) error
	GetRule(ctx context.Context, id uuid.UUID) (*models.AvailabilityRule, error)
	UpdateRule(ctx context.Context, rule *models.AvailabilityRule) error
	DeactivateRule(ctx context.Context, id uuid.UUID) error
	ListRules(ctx context.Context, professionalID uuid.UUID, activeOnly bool) ([]*models.AvailabilityRule, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, req models.NewOrder) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, changes models.OrderChanges) (*models.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	ListOrdersByProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*models.Order, error)
	ListOrdersByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Order, error)
	GetOrderHistory(ctx context.Context, orderID uuid.UUID) ([]*models.OrderHistory, error)
}

type ApprovalService interface {
	ApproveOrder(ctx context.Context, orderID uuid.UUID, reason string, approverID *uuid.UUID) (*models.Order, error)
	DeclineOrder(ctx context.Context, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Order, error)
	CompleteOrder(ctx context.Context, orderID uuid.UUID, notes string, actorID *uuid.UUID) (*models.Order, error)
	MarkNoShow(ctx context.Context, orderID uuid.UUID, notes string, actorID *uuid.UUID) (*models.Order, error)
}
