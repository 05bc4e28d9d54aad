package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"medbook/internal/domain"
	"medbook/internal/events"
	"medbook/internal/metrics"
	"medbook/internal/models"
)

// OrderService handles client booking requests. It never reserves slots;
// that happens on approval.
type OrderService struct {
	repo           domain.Repository
	availability   domain.AvailabilityService
	eventBus       domain.EventPublisher
	maxBookingDays int
	logger         *zerolog.Logger
	now            func() time.Time
}

func NewOrderService(repo domain.Repository, availability domain.AvailabilityService, eventBus domain.EventPublisher, maxBookingDays int, logger *zerolog.Logger) *OrderService {
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultMaxBookingDays
	}
	return &OrderService{
		repo:           repo,
		availability:   availability,
		eventBus:       eventBus,
		maxBookingDays: maxBookingDays,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *OrderService) ValidateBookingDate(at time.Time) error {
	now := s.now().UTC()
	// Проверяем, что время не в прошлом
	if at.Before(now) {
		return domain.ErrPastDate
	}
	// Проверяем горизонт записи
	if at.After(now.AddDate(0, 0, s.maxBookingDays)) {
		return domain.ErrDateTooFar
	}
	return nil
}

func (s *OrderService) CreateOrder(ctx context.Context, req models.NewOrder) (order *models.Order, err error) {
	started := time.Now()
	ctx, span := startSpan(ctx, "orders.create",
		attribute.String("professional_id", req.ProfessionalID.String()),
		attribute.String("client_id", req.ClientID.String()))
	defer func() {
		endSpan(span, err)
		metrics.ObserveOperation("create_order", started)
	}()

	if req.ClientID == uuid.Nil {
		return nil, domain.Invalid("client_id", "is required")
	}
	if req.ProfessionalID == uuid.Nil {
		return nil, domain.Invalid("professional_id", "is required")
	}
	if req.DurationMinutes <= 0 {
		return nil, domain.Invalid("duration_minutes", "must be positive")
	}
	scheduledAt := models.NormalizeUTC(req.ScheduledAt)
	if err := s.ValidateBookingDate(scheduledAt); err != nil {
		return nil, err
	}

	professional, err := s.repo.GetProfessional(ctx, req.ProfessionalID)
	if err != nil {
		return nil, err
	}
	if !professional.IsAvailable {
		return nil, fmt.Errorf("%w: professional is not accepting bookings", domain.ErrConflict)
	}

	available, err := s.availability.IsSlotAvailable(ctx, req.ProfessionalID, scheduledAt, req.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, fmt.Errorf("%w: requested time is not available", domain.ErrConflict)
	}

	order = &models.Order{
		ClientID:        req.ClientID,
		ProfessionalID:  req.ProfessionalID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
		Status:          models.OrderRequested,
		Title:           strings.TrimSpace(req.Title),
		Description:     strings.TrimSpace(req.Description),
		Notes:           strings.TrimSpace(req.Notes),
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	metrics.IncTransition(string(models.OrderRequested))
	publishOrderEvent(s.eventBus, s.logger, events.EventOrderCreated, order, "", "", &order.ClientID)
	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("professional_id", order.ProfessionalID.String()).
		Time("scheduled_at", order.ScheduledAt).
		Int("duration_minutes", order.DurationMinutes).
		Msg("Order requested")

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// UpdateOrder edits a requested order, re-checking availability when the
// time window changes.
func (s *OrderService) UpdateOrder(ctx context.Context, id uuid.UUID, changes models.OrderChanges) (order *models.Order, err error) {
	ctx, span := startSpan(ctx, "orders.update", attribute.String("order_id", id.String()))
	defer func() { endSpan(span, err) }()

	err = s.repo.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != models.OrderRequested {
			return &domain.TransitionError{OrderID: id, From: current.Status, To: models.OrderRequested}
		}

		if changes.ScheduledAt != nil {
			current.ScheduledAt = models.NormalizeUTC(*changes.ScheduledAt)
		}
		if changes.DurationMinutes != nil {
			current.DurationMinutes = *changes.DurationMinutes
		}
		if changes.Title != nil {
			current.Title = strings.TrimSpace(*changes.Title)
		}
		if changes.Description != nil {
			current.Description = strings.TrimSpace(*changes.Description)
		}
		if changes.Notes != nil {
			current.Notes = strings.TrimSpace(*changes.Notes)
		}

		if changes.ReschedulesOrder() {
			if current.DurationMinutes <= 0 {
				return domain.Invalid("duration_minutes", "must be positive")
			}
			if err := s.ValidateBookingDate(current.ScheduledAt); err != nil {
				return err
			}
			available, err := s.availability.IsSlotAvailable(ctx, current.ProfessionalID, current.ScheduledAt, current.DurationMinutes)
			if err != nil {
				return err
			}
			if !available {
				return fmt.Errorf("%w: requested time is not available", domain.ErrConflict)
			}
		}

		if err := s.repo.UpdateOrderWithVersion(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishOrderEvent(s.eventBus, s.logger, events.EventOrderUpdated, order, order.Status, "", nil)
	return order, nil
}

// DeleteOrder removes an order, returning its slots when it held any.
func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := startSpan(ctx, "orders.delete", attribute.String("order_id", id.String()))
	defer func() { endSpan(span, err) }()

	var deleted *models.Order
	err = s.repo.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.repo.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if order.Status.HoldsSlots() {
			if err := s.repo.Release(ctx, order.SlotIDs); err != nil {
				return err
			}
		}
		if err := s.repo.DeleteOrder(ctx, id); err != nil {
			return err
		}
		deleted = order
		return nil
	})
	if err != nil {
		return err
	}

	publishOrderEvent(s.eventBus, s.logger, events.EventOrderDeleted, deleted, deleted.Status, "", nil)
	s.logger.Info().Str("order_id", id.String()).Str("status", string(deleted.Status)).Msg("Order deleted")
	return nil
}

func (s *OrderService) ListOrdersByProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*models.Order, error) {
	if !to.After(from) {
		return nil, domain.Invalid("to", "must be after from")
	}
	return s.repo.ListOrdersByProfessional(ctx, professionalID, from.UTC(), to.UTC())
}

func (s *OrderService) ListOrdersByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Order, error) {
	return s.repo.ListOrdersByClient(ctx, clientID)
}

// GetOrderHistory returns transitions in the order they happened.
func (s *OrderService) GetOrderHistory(ctx context.Context, orderID uuid.UUID) ([]*models.OrderHistory, error) {
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetOrderHistory(ctx, orderID)
}

func publishOrderEvent(bus domain.EventPublisher, logger *zerolog.Logger, eventType string, order *models.Order, previous models.OrderStatus, reason string, actorID *uuid.UUID) {
	if bus == nil {
		return
	}
	payload := events.NewOrderPayload(order, previous, reason, actorID)
	if err := bus.PublishJSON(eventType, payload); err != nil {
		logger.Error().
			Err(err).
			Str("event_type", eventType).
			Str("order_id", order.ID.String()).
			Msg("Failed to publish order event")
	}
}
