package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"medbook/internal/database"
	"medbook/internal/domain"
	"medbook/internal/events"
	"medbook/internal/lock"
	"medbook/internal/models"
)

type fixture struct {
	db           *database.DB
	bus          *events.EventBus
	availability *AvailabilityService
	orders       *OrderService
	approval     *ApprovalService
	professional *models.Professional
	rule         *models.AvailabilityRule
	monday       time.Time
}

// newFixture sets up a professional working Mondays 09:00-12:00.
func newFixture(t *testing.T, locker domain.Locker) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "medbook.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if locker == nil {
		locker = lock.NewMemoryLocker(5 * time.Second)
	}

	f := &fixture{db: db, bus: events.NewEventBus(&logger), monday: nextMonday()}
	f.availability = NewAvailabilityService(db, 30*time.Minute, &logger)
	f.orders = NewOrderService(db, f.availability, f.bus, 365, &logger)
	f.approval = NewApprovalService(db, f.availability, locker, f.bus, &logger)

	ctx := context.Background()
	f.professional = &models.Professional{UserID: uuid.New(), DisplayName: "Dr. House", IsAvailable: true}
	require.NoError(t, db.CreateProfessional(ctx, f.professional))

	f.rule = f.addRule(t, time.Monday, "09:00", "12:00")
	return f
}

func (f *fixture) addRule(t *testing.T, day time.Weekday, start, end string) *models.AvailabilityRule {
	t.Helper()
	rule := &models.AvailabilityRule{
		ProfessionalID: f.professional.ID,
		DayOfWeek:      day,
		StartTime:      models.MustClock(start),
		EndTime:        models.MustClock(end),
	}
	require.NoError(t, f.availability.CreateRule(context.Background(), rule))
	return rule
}

// at returns clock on the fixture Monday.
func (f *fixture) at(clock string) time.Time {
	return models.MustClock(clock).On(f.monday)
}

func (f *fixture) request(t *testing.T, clock string, minutes int) *models.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), models.NewOrder{
		ClientID:        uuid.New(),
		ProfessionalID:  f.professional.ID,
		ScheduledAt:     f.at(clock),
		DurationMinutes: minutes,
		Title:           "Check-up",
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) slotStates(t *testing.T) map[string]models.SlotState {
	t.Helper()
	slots, err := f.availability.GetSlotsByDate(context.Background(), f.professional.ID, f.monday)
	require.NoError(t, err)
	states := make(map[string]models.SlotState, len(slots))
	for _, s := range slots {
		states[s.StartTime.String()] = s.State
	}
	return states
}

// nextMonday returns a Monday at least a week ahead, at UTC midnight.
func nextMonday() time.Time {
	d := models.DateOf(time.Now()).AddDate(0, 0, 7)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
