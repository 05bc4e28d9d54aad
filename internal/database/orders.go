package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medbook/internal/domain"
	"medbook/internal/models"
)

const orderColumns = `id, client_id, professional_id, scheduled_at, duration_minutes, status,
	title, description, notes, approval_reason, decline_reason, completed_at,
	created_at, updated_at, version`

// CreateOrder создает заявку с версией 1
func (db *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	now := time.Now().UTC()
	_, err := db.conn(ctx).ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.ClientID, order.ProfessionalID, order.ScheduledAt.UTC(), order.DurationMinutes,
		string(order.Status), order.Title, order.Description, order.Notes, order.ApprovalReason,
		order.DeclineReason, nullTime(order.CompletedAt), now, now, 1)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	order.CreatedAt = now
	order.UpdatedAt = now
	order.Version = 1
	return nil
}

// GetOrder возвращает заявку вместе со списком зарезервированных слотов
func (db *DB) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	row := db.conn(ctx).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order.SlotIDs, err = db.orderSlotIDs(ctx, id); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrderWithVersion сохраняет заявку, если версия не изменилась с момента чтения
func (db *DB) UpdateOrderWithVersion(ctx context.Context, order *models.Order) error {
	now := time.Now().UTC()
	res, err := db.conn(ctx).ExecContext(ctx, `
		UPDATE orders
		SET scheduled_at = ?, duration_minutes = ?, status = ?, title = ?, description = ?, notes = ?,
			approval_reason = ?, decline_reason = ?, completed_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		order.ScheduledAt.UTC(), order.DurationMinutes, string(order.Status), order.Title, order.Description,
		order.Notes, order.ApprovalReason, order.DeclineReason, nullTime(order.CompletedAt), now,
		order.ID, order.Version)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrConcurrentModification
	}
	order.UpdatedAt = now
	order.Version++
	return nil
}

// DeleteOrder удаляет заявку; связи со слотами удаляются каскадом
func (db *DB) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	res, err := db.conn(ctx).ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("order", id)
	}
	return nil
}

// SetOrderSlots заменяет список слотов заявки
func (db *DB) SetOrderSlots(ctx context.Context, orderID uuid.UUID, slotIDs []uuid.UUID) error {
	return db.WithTransaction(ctx, func(ctx context.Context) error {
		q := db.conn(ctx)
		if _, err := q.ExecContext(ctx, `DELETE FROM order_slots WHERE order_id = ?`, orderID); err != nil {
			return fmt.Errorf("failed to clear order slots: %w", err)
		}
		for _, slotID := range uniqueIDs(slotIDs) {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO order_slots (order_id, slot_id) VALUES (?, ?)`, orderID, slotID); err != nil {
				return fmt.Errorf("failed to link order slot: %w", err)
			}
		}
		return nil
	})
}

// ListOrdersByProfessional возвращает заявки специалиста с началом в [from, to)
func (db *DB) ListOrdersByProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*models.Order, error) {
	return db.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE professional_id = ? AND scheduled_at >= ? AND scheduled_at < ?
		ORDER BY scheduled_at`,
		professionalID, from.UTC(), to.UTC())
}

// ListOrdersByClient возвращает все заявки клиента
func (db *DB) ListOrdersByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Order, error) {
	return db.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE client_id = ?
		ORDER BY scheduled_at DESC`, clientID)
}

// AppendHistory добавляет запись о переходе статуса
func (db *DB) AppendHistory(ctx context.Context, entry *models.OrderHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	var changedBy uuid.NullUUID
	if entry.ChangedByUserID != nil {
		changedBy = uuid.NullUUID{UUID: *entry.ChangedByUserID, Valid: true}
	}
	_, err := db.conn(ctx).ExecContext(ctx, `
		INSERT INTO order_history (id, order_id, previous_status, new_status, reason, changed_by_user_id, changed_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrderID, string(entry.PreviousStatus), string(entry.NewStatus), entry.Reason,
		changedBy, entry.ChangedAt.UTC(), entry.Notes)
	if err != nil {
		return fmt.Errorf("failed to append order history: %w", err)
	}
	return nil
}

// GetOrderHistory возвращает историю заявки в хронологическом порядке
func (db *DB) GetOrderHistory(ctx context.Context, orderID uuid.UUID) ([]*models.OrderHistory, error) {
	rows, err := db.conn(ctx).QueryContext(ctx, `
		SELECT id, order_id, previous_status, new_status, reason, changed_by_user_id, changed_at, notes
		FROM order_history WHERE order_id = ?
		ORDER BY changed_at, rowid`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order history: %w", err)
	}
	defer rows.Close()

	var history []*models.OrderHistory
	for rows.Next() {
		var (
			h          models.OrderHistory
			prev, next string
			changedBy  uuid.NullUUID
		)
		if err := rows.Scan(&h.ID, &h.OrderID, &prev, &next, &h.Reason, &changedBy, &h.ChangedAt, &h.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan order history: %w", err)
		}
		h.PreviousStatus = models.OrderStatus(prev)
		h.NewStatus = models.OrderStatus(next)
		h.ChangedAt = h.ChangedAt.UTC()
		if changedBy.Valid {
			id := changedBy.UUID
			h.ChangedByUserID = &id
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}

func (db *DB) orderSlotIDs(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := db.conn(ctx).QueryContext(ctx, `
		SELECT os.slot_id FROM order_slots os
		JOIN slots s ON s.id = os.slot_id
		WHERE os.order_id = ?
		ORDER BY s.date, s.start_time`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order slots: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan order slot: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *DB) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*models.Order, error) {
	rows, err := db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o           models.Order
		status      string
		completedAt sql.NullTime
	)
	if err := row.Scan(&o.ID, &o.ClientID, &o.ProfessionalID, &o.ScheduledAt, &o.DurationMinutes, &status,
		&o.Title, &o.Description, &o.Notes, &o.ApprovalReason, &o.DeclineReason, &completedAt,
		&o.CreatedAt, &o.UpdatedAt, &o.Version); err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	o.ScheduledAt = o.ScheduledAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		o.CompletedAt = &t
	}
	return &o, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
