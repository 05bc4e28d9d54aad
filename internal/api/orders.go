package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"medbook/internal/domain"
	"medbook/internal/models"
)

type transitionBody struct {
	Reason  string     `json:"reason"`
	Notes   string     `json:"notes"`
	ActorID *uuid.UUID `json:"actor_id"`
}

type transitionFunc func(ctx context.Context, svc domain.ApprovalService, id uuid.UUID, body transitionBody) (*models.Order, error)

func approveOrder(ctx context.Context, svc domain.ApprovalService, id uuid.UUID, b transitionBody) (*models.Order, error) {
	return svc.ApproveOrder(ctx, id, b.Reason, b.ActorID)
}

func declineOrder(ctx context.Context, svc domain.ApprovalService, id uuid.UUID, b transitionBody) (*models.Order, error) {
	return svc.DeclineOrder(ctx, id, b.Reason, b.ActorID)
}

func cancelOrder(ctx context.Context, svc domain.ApprovalService, id uuid.UUID, b transitionBody) (*models.Order, error) {
	return svc.CancelOrder(ctx, id, b.Reason, b.ActorID)
}

func completeOrder(ctx context.Context, svc domain.ApprovalService, id uuid.UUID, b transitionBody) (*models.Order, error) {
	return svc.CompleteOrder(ctx, id, b.Notes, b.ActorID)
}

func markNoShow(ctx context.Context, svc domain.ApprovalService, id uuid.UUID, b transitionBody) (*models.Order, error) {
	return svc.MarkNoShow(ctx, id, b.Notes, b.ActorID)
}

func (s *HTTPServer) handleTransition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "orderID")
		if !ok {
			return
		}
		var body transitionBody
		if !decodeOptionalBody(w, r, &body) {
			return
		}

		order, err := fn(r.Context(), s.svc.Approval, id, body)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func (s *HTTPServer) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.NewOrder
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := s.svc.Orders.CreateOrder(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *HTTPServer) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	order, err := s.svc.Orders.GetOrder(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	var changes models.OrderChanges
	if !decodeBody(w, r, &changes) {
		return
	}
	order, err := s.svc.Orders.UpdateOrder(r.Context(), id, changes)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	if err := s.svc.Orders.DeleteOrder(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "orderID")
	if !ok {
		return
	}
	history, err := s.svc.Orders.GetOrderHistory(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *HTTPServer) handleListProfessionalOrders(w http.ResponseWriter, r *http.Request) {
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
	// to is an inclusive calendar date
	orders, err := s.svc.Orders.ListOrdersByProfessional(r.Context(), id, from, to.AddDate(0, 0, 1))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *HTTPServer) handleListClientOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "clientID")
	if !ok {
		return
	}
	orders, err := s.svc.Orders.ListOrdersByClient(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}
