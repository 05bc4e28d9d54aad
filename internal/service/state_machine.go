package service

import (
	"errors"

	"medbook/internal/domain"
	"medbook/internal/models"
)

// allowedTransitions lists every status an order may move to.
// Terminal statuses have no entry.
var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderRequested: {models.OrderApproved, models.OrderDeclined, models.OrderCancelled, models.OrderCompleted},
	models.OrderApproved:  {models.OrderDeclined, models.OrderCancelled, models.OrderCompleted, models.OrderNoShow},
}

// CanTransition reports whether from -> to is an edge of the order lifecycle.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(order *models.Order, to models.OrderStatus) error {
	if !CanTransition(order.Status, to) {
		return &domain.TransitionError{OrderID: order.ID, From: order.Status, To: to}
	}
	return nil
}

// releasesSlots reports whether moving from -> to hands reserved slots back.
// Completed and NoShow consume the slots instead.
func releasesSlots(from, to models.OrderStatus) bool {
	return from.HoldsSlots() && (to == models.OrderDeclined || to == models.OrderCancelled)
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict)
}
