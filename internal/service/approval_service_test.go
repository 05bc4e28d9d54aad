package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbook/internal/domain"
	"medbook/internal/lock"
	"medbook/internal/models"
)

func TestBookingScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	manager := uuid.New()

	slots, err := f.availability.GenerateSlots(ctx, f.professional.ID, f.monday)
	require.NoError(t, err)
	require.Len(t, slots, 6)

	orderA := f.request(t, "10:00", 60)
	orderB := f.request(t, "10:30", 60)
	assert.Equal(t, models.OrderRequested, orderA.Status)

	approvedA, err := f.approval.ApproveOrder(ctx, orderA.ID, "confirmed", &manager)
	require.NoError(t, err)
	assert.Equal(t, models.OrderApproved, approvedA.Status)
	assert.Equal(t, "confirmed", approvedA.ApprovalReason)
	assert.Len(t, approvedA.SlotIDs, 2)

	states := f.slotStates(t)
	assert.Equal(t, models.SlotReserved, states["10:00"])
	assert.Equal(t, models.SlotReserved, states["10:30"])
	assert.Equal(t, models.SlotAvailable, states["11:00"])

	available, err := f.availability.IsSlotAvailable(ctx, f.professional.ID, f.at("10:00"), 60)
	require.NoError(t, err)
	assert.False(t, available)

	// B overlaps A on 10:30 and must not take 11:00 either.
	_, err = f.approval.ApproveOrder(ctx, orderB.ID, "", &manager)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, models.SlotAvailable, f.slotStates(t)["11:00"])

	stillB, err := f.orders.GetOrder(ctx, orderB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderRequested, stillB.Status)
	assert.Empty(t, stillB.SlotIDs)

	_, err = f.orders.CreateOrder(ctx, models.NewOrder{
		ClientID:        uuid.New(),
		ProfessionalID:  f.professional.ID,
		ScheduledAt:     f.at("10:30"),
		DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	cancelledA, err := f.approval.CancelOrder(ctx, orderA.ID, "client called", nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelledA.Status)
	assert.Empty(t, cancelledA.SlotIDs)
	for clock, state := range f.slotStates(t) {
		assert.Equal(t, models.SlotAvailable, state, clock)
	}

	approvedB, err := f.approval.ApproveOrder(ctx, orderB.ID, "", &manager)
	require.NoError(t, err)
	assert.Equal(t, models.OrderApproved, approvedB.Status)

	completedB, err := f.approval.CompleteOrder(ctx, orderB.ID, "all good", &manager)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, completedB.Status)
	require.NotNil(t, completedB.CompletedAt)
	assert.Equal(t, "all good", completedB.Notes)
	assert.Equal(t, models.SlotReserved, f.slotStates(t)["10:30"])
	assert.Equal(t, models.SlotReserved, f.slotStates(t)["11:00"])

	history, err := f.orders.GetOrderHistory(ctx, orderA.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.OrderRequested, history[0].PreviousStatus)
	assert.Equal(t, models.OrderApproved, history[0].NewStatus)
	assert.Equal(t, "confirmed", history[0].Reason)
	require.NotNil(t, history[0].ChangedByUserID)
	assert.Equal(t, manager, *history[0].ChangedByUserID)
	assert.Equal(t, models.OrderApproved, history[1].PreviousStatus)
	assert.Equal(t, models.OrderCancelled, history[1].NewStatus)
	assert.Equal(t, "client called", history[1].Reason)
}

func TestConcurrentApprovals(t *testing.T) {
	lockers := map[string]domain.Locker{
		"MemoryLock": lock.NewMemoryLocker(0),
		"NoLock":     lock.NoopLocker{},
	}

	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, locker)
			ctx := context.Background()

			const numOrders = 10
			orders := make([]*models.Order, numOrders)
			for i := range orders {
				orders[i] = f.request(t, "10:00", 60)
			}

			var wg sync.WaitGroup
			results := make(chan error, numOrders)
			for _, o := range orders {
				wg.Add(1)
				go func(id uuid.UUID) {
					defer wg.Done()
					_, err := f.approval.ApproveOrder(ctx, id, "", nil)
					results <- err
				}(o.ID)
			}
			wg.Wait()
			close(results)

			approved, conflicts := 0, 0
			for err := range results {
				switch {
				case err == nil:
					approved++
				case errors.Is(err, domain.ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected approval error: %v", err)
				}
			}
			assert.Equal(t, 1, approved, "only one order may hold the slots")
			assert.Equal(t, numOrders-1, conflicts)

			holders := 0
			for _, o := range orders {
				got, err := f.orders.GetOrder(ctx, o.ID)
				require.NoError(t, err)
				if got.Status == models.OrderApproved {
					holders++
					assert.Len(t, got.SlotIDs, 2)
				}
			}
			assert.Equal(t, 1, holders)
		})
	}
}

func TestReleaseSymmetry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	order := f.request(t, "09:00", 90)
	before := f.slotStates(t)
	require.Len(t, before, 6)
	_, err := f.approval.ApproveOrder(ctx, order.ID, "", nil)
	require.NoError(t, err)

	declined, err := f.approval.DeclineOrder(ctx, order.ID, "doctor unavailable", nil)
	require.NoError(t, err)
	assert.Equal(t, "doctor unavailable", declined.DeclineReason)
	assert.Equal(t, before, f.slotStates(t))
}

// driveTo moves a fresh order into status using only legal transitions.
func driveTo(t *testing.T, f *fixture, status models.OrderStatus) *models.Order {
	t.Helper()
	ctx := context.Background()
	order := f.request(t, "09:00", 30)

	approve := func() {
		_, err := f.approval.ApproveOrder(ctx, order.ID, "", nil)
		require.NoError(t, err)
	}

	var err error
	switch status {
	case models.OrderRequested:
		return order
	case models.OrderApproved:
		approve()
	case models.OrderDeclined:
		_, err = f.approval.DeclineOrder(ctx, order.ID, "", nil)
	case models.OrderCancelled:
		_, err = f.approval.CancelOrder(ctx, order.ID, "", nil)
	case models.OrderCompleted:
		_, err = f.approval.CompleteOrder(ctx, order.ID, "", nil)
	case models.OrderNoShow:
		approve()
		_, err = f.approval.MarkNoShow(ctx, order.ID, "", nil)
	}
	require.NoError(t, err)

	got, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, status, got.Status)
	return got
}

func TestStateMachineClosure(t *testing.T) {
	ctx := context.Background()
	all := []models.OrderStatus{
		models.OrderRequested, models.OrderApproved, models.OrderDeclined,
		models.OrderCancelled, models.OrderCompleted, models.OrderNoShow,
	}

	for _, from := range all {
		for _, to := range all {
			if to == models.OrderRequested {
				continue
			}
			from, to := from, to
			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				f := newFixture(t, nil)
				order := driveTo(t, f, from)

				var err error
				switch to {
				case models.OrderApproved:
					_, err = f.approval.ApproveOrder(ctx, order.ID, "", nil)
				case models.OrderDeclined:
					_, err = f.approval.DeclineOrder(ctx, order.ID, "", nil)
				case models.OrderCancelled:
					_, err = f.approval.CancelOrder(ctx, order.ID, "", nil)
				case models.OrderCompleted:
					_, err = f.approval.CompleteOrder(ctx, order.ID, "", nil)
				case models.OrderNoShow:
					_, err = f.approval.MarkNoShow(ctx, order.ID, "", nil)
				}

				historyBefore := 0
				if from != models.OrderRequested {
					historyBefore = 1
					if from == models.OrderNoShow {
						historyBefore = 2
					}
				}
				history, hErr := f.orders.GetOrderHistory(ctx, order.ID)
				require.NoError(t, hErr)

				if CanTransition(from, to) {
					require.NoError(t, err)
					require.Len(t, history, historyBefore+1)
					last := history[len(history)-1]
					assert.Equal(t, from, last.PreviousStatus)
					assert.Equal(t, to, last.NewStatus)
				} else {
					assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
					assert.Len(t, history, historyBefore)
					got, gErr := f.orders.GetOrder(ctx, order.ID)
					require.NoError(t, gErr)
					assert.Equal(t, from, got.Status)
				}
			})
		}
	}
}

func TestApproveOrder_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	t.Run("UnknownOrder", func(t *testing.T) {
		_, err := f.approval.ApproveOrder(ctx, uuid.New(), "", nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("RuleShrankAfterRequest", func(t *testing.T) {
		order := f.request(t, "11:00", 60)
		_, err := f.db.ExecContext(ctx, `DELETE FROM slots WHERE start_time = '11:30'`)
		require.NoError(t, err)
		update := *f.rule
		update.EndTime = models.MustClock("11:30")
		require.NoError(t, f.availability.UpdateRule(ctx, &update))

		_, err = f.approval.ApproveOrder(ctx, order.ID, "", nil)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Equal(t, models.SlotAvailable, f.slotStates(t)["11:00"])
	})
}
