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

const ruleColumns = `id, professional_id, day_of_week, start_time, end_time, schedule_type,
	start_date, end_date, is_active, created_at, updated_at`

// CreateRule сохраняет правило доступности
func (db *DB) CreateRule(ctx context.Context, rule *models.AvailabilityRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := time.Now().UTC()
	_, err := db.conn(ctx).ExecContext(ctx, `
		INSERT INTO availability_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.ProfessionalID, int(rule.DayOfWeek), rule.StartTime.String(), rule.EndTime.String(),
		string(rule.ScheduleType), nullDate(rule.StartDate), nullDate(rule.EndDate), rule.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// GetRule возвращает правило по ID
func (db *DB) GetRule(ctx context.Context, id uuid.UUID) (*models.AvailabilityRule, error) {
	row := db.conn(ctx).QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM availability_rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("availability rule", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// UpdateRule обновляет правило; уже созданные слоты не меняются
func (db *DB) UpdateRule(ctx context.Context, rule *models.AvailabilityRule) error {
	now := time.Now().UTC()
	res, err := db.conn(ctx).ExecContext(ctx, `
		UPDATE availability_rules
		SET day_of_week = ?, start_time = ?, end_time = ?, schedule_type = ?,
			start_date = ?, end_date = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		int(rule.DayOfWeek), rule.StartTime.String(), rule.EndTime.String(), string(rule.ScheduleType),
		nullDate(rule.StartDate), nullDate(rule.EndDate), rule.IsActive, now, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("availability rule", rule.ID)
	}
	rule.UpdatedAt = now
	return nil
}

// ListRules возвращает правила специалиста
func (db *DB) ListRules(ctx context.Context, professionalID uuid.UUID, activeOnly bool) ([]*models.AvailabilityRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM availability_rules WHERE professional_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY day_of_week, start_time`

	rows, err := db.conn(ctx).QueryContext(ctx, query, professionalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(row rowScanner) (*models.AvailabilityRule, error) {
	var (
		rule                 models.AvailabilityRule
		day                  int
		start, end, schedule string
		startDate, endDate   sql.NullString
	)
	if err := row.Scan(&rule.ID, &rule.ProfessionalID, &day, &start, &end, &schedule,
		&startDate, &endDate, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	rule.DayOfWeek = time.Weekday(day)
	rule.ScheduleType = models.ScheduleType(schedule)
	if rule.StartTime, err = models.ParseClock(start); err != nil {
		return nil, err
	}
	if rule.EndTime, err = models.ParseClock(end); err != nil {
		return nil, err
	}
	if rule.StartDate, err = parseNullDate(startDate); err != nil {
		return nil, err
	}
	if rule.EndDate, err = parseNullDate(endDate); err != nil {
		return nil, err
	}
	return &rule, nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(models.DateLayout), Valid: true}
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := models.ParseDate(s.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date %s: %w", s.String, err)
	}
	return &t, nil
}
