package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medbook/internal/domain"
	"medbook/internal/models"
)

const slotColumns = `id, availability_rule_id, professional_id, date, start_time, end_time, state, created_at, updated_at`

// InsertSlotsIfAbsent вставляет слоты, пропуская уже существующие (professional_id, date, start_time).
// Возвращает количество реально созданных слотов.
func (db *DB) InsertSlotsIfAbsent(ctx context.Context, slots []*models.Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	inserted := 0
	err := db.WithTransaction(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		for _, s := range slots {
			if s.ID == uuid.Nil {
				s.ID = uuid.New()
			}
			if s.State == "" {
				s.State = models.SlotAvailable
			}
			res, err := db.conn(ctx).ExecContext(ctx, `
				INSERT INTO slots (`+slotColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(professional_id, date, start_time) DO NOTHING`,
				s.ID, s.AvailabilityRuleID, s.ProfessionalID, s.Date.Format(models.DateLayout),
				s.StartTime.String(), s.EndTime.String(), string(s.State), now, now)
			if err != nil {
				return fmt.Errorf("failed to insert slot: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get affected rows: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetSlotsByDate возвращает слоты специалиста на дату, отсортированные по времени начала
func (db *DB) GetSlotsByDate(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]*models.Slot, error) {
	return db.querySlots(ctx, `SELECT `+slotColumns+` FROM slots
		WHERE professional_id = ? AND date = ?
		ORDER BY start_time`,
		professionalID, models.DateOf(date).Format(models.DateLayout))
}

// GetSlotsForRange возвращает слоты за период [from, to] включительно
func (db *DB) GetSlotsForRange(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*models.Slot, error) {
	return db.querySlots(ctx, `SELECT `+slotColumns+` FROM slots
		WHERE professional_id = ? AND date BETWEEN ? AND ?
		ORDER BY date, start_time`,
		professionalID,
		models.DateOf(from).Format(models.DateLayout),
		models.DateOf(to).Format(models.DateLayout))
}

// TryReserve атомарно резервирует все слоты или ни одного
func (db *DB) TryReserve(ctx context.Context, slotIDs []uuid.UUID) error {
	ids := uniqueIDs(slotIDs)
	if len(ids) == 0 {
		return domain.Invalid("slot_ids", "at least one slot is required")
	}

	return db.WithTransaction(ctx, func(ctx context.Context) error {
		marks, args := inClause(ids)
		args = append([]interface{}{string(models.SlotReserved), time.Now().UTC(), string(models.SlotAvailable)}, args...)
		res, err := db.conn(ctx).ExecContext(ctx,
			`UPDATE slots SET state = ?, updated_at = ? WHERE state = ? AND id IN (`+marks+`)`, args...)
		if err != nil {
			return fmt.Errorf("failed to reserve slots: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if n != int64(len(ids)) {
			return domain.ErrConflict
		}
		return nil
	})
}

// Release возвращает слоты в доступные; повторный вызов ничего не меняет
func (db *DB) Release(ctx context.Context, slotIDs []uuid.UUID) error {
	ids := uniqueIDs(slotIDs)
	if len(ids) == 0 {
		return nil
	}

	marks, args := inClause(ids)
	args = append([]interface{}{string(models.SlotAvailable), time.Now().UTC(), string(models.SlotReserved)}, args...)
	if _, err := db.conn(ctx).ExecContext(ctx,
		`UPDATE slots SET state = ?, updated_at = ? WHERE state = ? AND id IN (`+marks+`)`, args...); err != nil {
		return fmt.Errorf("failed to release slots: %w", err)
	}
	return nil
}

func (db *DB) querySlots(ctx context.Context, query string, args ...interface{}) ([]*models.Slot, error) {
	rows, err := db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var slots []*models.Slot
	for rows.Next() {
		var (
			s                models.Slot
			date, start, end string
			state            string
		)
		if err := rows.Scan(&s.ID, &s.AvailabilityRuleID, &s.ProfessionalID, &date, &start, &end,
			&state, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		if s.Date, err = models.ParseDate(date); err != nil {
			return nil, fmt.Errorf("failed to parse slot date %s: %w", date, err)
		}
		if s.StartTime, err = models.ParseClock(start); err != nil {
			return nil, err
		}
		if s.EndTime, err = models.ParseClock(end); err != nil {
			return nil, err
		}
		s.State = models.SlotState(state)
		slots = append(slots, &s)
	}
	return slots, rows.Err()
}
