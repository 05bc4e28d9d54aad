package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medbook/internal/models"
)

// ProfessionalLister returns the professionals whose schedules are kept warm.
type ProfessionalLister interface {
	ListProfessionals(ctx context.Context, onlyAvailable bool) ([]*models.Professional, error)
}

// SlotGenerator materializes one day of slots; it must be idempotent.
type SlotGenerator interface {
	GenerateSlots(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]*models.Slot, error)
}

// RunStats summarizes one pass over all professionals.
type RunStats struct {
	Professionals int
	Days          int
	Slots         int
	Failures      int
}

// SlotWorker periodically generates slots for the next days so that range
// queries and exports see them without a prior booking attempt.
type SlotWorker struct {
	professionals ProfessionalLister
	generator     SlotGenerator
	days          int
	interval      time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

// NewSlotWorker builds a worker with sane defaults.
func NewSlotWorker(professionals ProfessionalLister, generator SlotGenerator, days int, interval time.Duration, logger *zerolog.Logger) *SlotWorker {
	if days <= 0 {
		days = 14
	}
	if interval <= 0 {
		interval = time.Hour
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "slot_worker").Logger()
	}
	return &SlotWorker{
		professionals: professionals,
		generator:     generator,
		days:          days,
		interval:      interval,
		logger:        l,
		now:           time.Now,
	}
}

// Start runs a pass immediately and then every interval until ctx is done.
func (w *SlotWorker) Start(ctx context.Context) {
	w.logger.Info().Int("days", w.days).Dur("interval", w.interval).Msg("Slot worker started")
	defer w.logger.Info().Msg("Slot worker stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce generates slots from today through today+days-1 for every
// professional accepting bookings. A failing day is logged and skipped;
// the next pass retries it.
func (w *SlotWorker) RunOnce(ctx context.Context) RunStats {
	var stats RunStats

	professionals, err := w.professionals.ListProfessionals(ctx, true)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to list professionals")
		stats.Failures++
		return stats
	}

	today := models.DateOf(w.now())
	for _, p := range professionals {
		stats.Professionals++
		for i := 0; i < w.days; i++ {
			if ctx.Err() != nil {
				return stats
			}
			day := today.AddDate(0, 0, i)
			slots, err := w.generator.GenerateSlots(ctx, p.ID, day)
			if err != nil {
				stats.Failures++
				w.logger.Error().Err(err).
					Str("professional_id", p.ID.String()).
					Str("date", day.Format(models.DateLayout)).
					Msg("Slot generation failed")
				continue
			}
			stats.Days++
			stats.Slots += len(slots)
		}
	}

	w.logger.Debug().
		Int("professionals", stats.Professionals).
		Int("days", stats.Days).
		Int("slots", stats.Slots).
		Int("failures", stats.Failures).
		Msg("Slot pass finished")
	return stats
}
