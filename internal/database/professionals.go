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

// CreateProfessional регистрирует специалиста
func (db *DB) CreateProfessional(ctx context.Context, p *models.Professional) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	_, err := db.conn(ctx).ExecContext(ctx, `
		INSERT INTO professionals (id, user_id, display_name, is_available, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.DisplayName, p.IsAvailable, now, now)
	if err != nil {
		return fmt.Errorf("failed to create professional: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetProfessional возвращает специалиста по ID
func (db *DB) GetProfessional(ctx context.Context, id uuid.UUID) (*models.Professional, error) {
	var p models.Professional
	err := db.conn(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, display_name, is_available, created_at, updated_at
		FROM professionals WHERE id = ?`, id).
		Scan(&p.ID, &p.UserID, &p.DisplayName, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("professional", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get professional: %w", err)
	}
	return &p, nil
}

// SetProfessionalAvailability включает или выключает прием заявок
func (db *DB) SetProfessionalAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	res, err := db.conn(ctx).ExecContext(ctx,
		`UPDATE professionals SET is_available = ?, updated_at = ? WHERE id = ?`,
		available, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update professional: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("professional", id)
	}
	return nil
}

// ListProfessionals возвращает специалистов по имени; onlyAvailable отсекает тех, кто не принимает заявки
func (db *DB) ListProfessionals(ctx context.Context, onlyAvailable bool) ([]*models.Professional, error) {
	query := `SELECT id, user_id, display_name, is_available, created_at, updated_at FROM professionals`
	if onlyAvailable {
		query += ` WHERE is_available = 1`
	}
	query += ` ORDER BY display_name, id`

	rows, err := db.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list professionals: %w", err)
	}
	defer rows.Close()

	var out []*models.Professional
	for rows.Next() {
		var p models.Professional
		if err := rows.Scan(&p.ID, &p.UserID, &p.DisplayName, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan professional: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
