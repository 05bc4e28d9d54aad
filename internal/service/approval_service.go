package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"medbook/internal/domain"
	"medbook/internal/events"
	"medbook/internal/lock"
	"medbook/internal/metrics"
	"medbook/internal/models"
)

// ApprovalService moves orders through their lifecycle. Approval is the
// only step that reserves slots; decline and cancel of an approved order
// release them.
type ApprovalService struct {
	repo         domain.Repository
	availability domain.AvailabilityService
	locker       domain.Locker
	eventBus     domain.EventPublisher
	logger       *zerolog.Logger
}

func NewApprovalService(repo domain.Repository, availability domain.AvailabilityService, locker domain.Locker, eventBus domain.EventPublisher, logger *zerolog.Logger) *ApprovalService {
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	return &ApprovalService{
		repo:         repo,
		availability: availability,
		locker:       locker,
		eventBus:     eventBus,
		logger:       logger,
	}
}

type transitionRequest struct {
	op      string
	orderID uuid.UUID
	to      models.OrderStatus
	reason  string
	notes   string
	actorID *uuid.UUID
	apply   func(order *models.Order, now time.Time)
}

// ApproveOrder reserves every slot covering the order, all or none.
func (s *ApprovalService) ApproveOrder(ctx context.Context, orderID uuid.UUID, reason string, approverID *uuid.UUID) (*models.Order, error) {
	reason = strings.TrimSpace(reason)

	// The schedule lock narrows the race window; the conditional slot update decides it.
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(order, models.OrderApproved); err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, lock.Key(order.ProfessionalID, order.ScheduledAt))
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.transition(ctx, transitionRequest{
		op:      "approve_order",
		orderID: orderID,
		to:      models.OrderApproved,
		reason:  reason,
		actorID: approverID,
		apply: func(o *models.Order, _ time.Time) {
			o.ApprovalReason = reason
		},
	})
}

func (s *ApprovalService) DeclineOrder(ctx context.Context, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	return s.transition(ctx, transitionRequest{
		op:      "decline_order",
		orderID: orderID,
		to:      models.OrderDeclined,
		reason:  reason,
		actorID: actorID,
		apply: func(o *models.Order, _ time.Time) {
			o.DeclineReason = reason
		},
	})
}

func (s *ApprovalService) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, transitionRequest{
		op:      "cancel_order",
		orderID: orderID,
		to:      models.OrderCancelled,
		reason:  strings.TrimSpace(reason),
		actorID: actorID,
	})
}

// CompleteOrder closes the order. Reserved slots stay consumed.
func (s *ApprovalService) CompleteOrder(ctx context.Context, orderID uuid.UUID, notes string, actorID *uuid.UUID) (*models.Order, error) {
	notes = strings.TrimSpace(notes)
	return s.transition(ctx, transitionRequest{
		op:      "complete_order",
		orderID: orderID,
		to:      models.OrderCompleted,
		notes:   notes,
		actorID: actorID,
		apply: func(o *models.Order, now time.Time) {
			o.CompletedAt = &now
			if notes != "" {
				o.Notes = notes
			}
		},
	})
}

func (s *ApprovalService) MarkNoShow(ctx context.Context, orderID uuid.UUID, notes string, actorID *uuid.UUID) (*models.Order, error) {
	notes = strings.TrimSpace(notes)
	return s.transition(ctx, transitionRequest{
		op:      "mark_no_show",
		orderID: orderID,
		to:      models.OrderNoShow,
		notes:   notes,
		actorID: actorID,
		apply: func(o *models.Order, _ time.Time) {
			if notes != "" {
				o.Notes = notes
			}
		},
	})
}

// transition applies one lifecycle edge: status change, slot effects and
// the history entry commit together or not at all.
func (s *ApprovalService) transition(ctx context.Context, req transitionRequest) (order *models.Order, err error) {
	started := time.Now()
	ctx, span := startSpan(ctx, "approval."+req.op,
		attribute.String("order_id", req.orderID.String()),
		attribute.String("to", string(req.to)))
	defer func() {
		endSpan(span, err)
		metrics.ObserveOperation(req.op, started)
	}()

	var previous models.OrderStatus
	err = s.repo.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetOrder(ctx, req.orderID)
		if err != nil {
			return err
		}
		if err := checkTransition(current, req.to); err != nil {
			return err
		}
		previous = current.Status

		switch {
		case req.to == models.OrderApproved:
			if err := s.reserve(ctx, current); err != nil {
				return err
			}
		case releasesSlots(previous, req.to):
			if err := s.release(ctx, current); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		current.Status = req.to
		if req.apply != nil {
			req.apply(current, now)
		}
		if err := s.repo.UpdateOrderWithVersion(ctx, current); err != nil {
			return err
		}

		if err := s.repo.AppendHistory(ctx, &models.OrderHistory{
			OrderID:         current.ID,
			PreviousStatus:  previous,
			NewStatus:       req.to,
			Reason:          req.reason,
			Notes:           req.notes,
			ChangedByUserID: req.actorID,
			ChangedAt:       now,
		}); err != nil {
			return err
		}

		order = current
		return nil
	})
	if err != nil {
		s.logFailure(req, err)
		return nil, err
	}

	metrics.IncTransition(string(req.to))
	publishOrderEvent(s.eventBus, s.logger, events.ForStatus(req.to), order, previous, req.reason, req.actorID)
	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("from", string(previous)).
		Str("to", string(order.Status)).
		Int("slots", len(order.SlotIDs)).
		Msg("Order status changed")

	return order, nil
}

func (s *ApprovalService) reserve(ctx context.Context, order *models.Order) error {
	slots, err := s.availability.CoveringSlots(ctx, order.ProfessionalID, order.ScheduledAt, order.DurationMinutes)
	if err != nil {
		return err
	}
	ids := models.SlotIDs(slots)
	if err := s.repo.TryReserve(ctx, ids); err != nil {
		return err
	}
	if err := s.repo.SetOrderSlots(ctx, order.ID, ids); err != nil {
		return err
	}
	order.SlotIDs = ids
	return nil
}

func (s *ApprovalService) release(ctx context.Context, order *models.Order) error {
	if len(order.SlotIDs) == 0 {
		s.logger.Warn().Str("order_id", order.ID.String()).Msg("Approved order has no reserved slots to release")
		return nil
	}
	if err := s.repo.Release(ctx, order.SlotIDs); err != nil {
		return err
	}
	if err := s.repo.SetOrderSlots(ctx, order.ID, nil); err != nil {
		return err
	}
	order.SlotIDs = nil
	return nil
}

func (s *ApprovalService) logFailure(req transitionRequest, err error) {
	switch {
	case isConflict(err):
		if req.to == models.OrderApproved {
			metrics.IncReservationConflict()
		}
		s.logger.Warn().Err(err).Str("order_id", req.orderID.String()).Str("op", req.op).Msg("Slot reservation conflict")
	case errors.Is(err, domain.ErrConcurrentModification):
		s.logger.Warn().Err(err).Str("order_id", req.orderID.String()).Str("op", req.op).Msg("Order modified concurrently")
	case domain.IsInfrastructure(err):
		s.logger.Error().Err(err).Str("order_id", req.orderID.String()).Str("op", req.op).Msg("Order transition failed")
	}
}
