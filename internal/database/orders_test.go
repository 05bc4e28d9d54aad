package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbook/internal/domain"
	"medbook/internal/models"
)

func newTestOrder(professionalID uuid.UUID, at time.Time) *models.Order {
	return &models.Order{
		ClientID:        uuid.New(),
		ProfessionalID:  professionalID,
		ScheduledAt:     at,
		DurationMinutes: 60,
		Status:          models.OrderRequested,
		Title:           "Consultation",
	}
}

func TestOrders(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := seedProfessional(t, db)
	rule := seedRule(t, db, p.ID, time.Monday, "09:00", "12:00")
	date := nextMonday()
	slots := seedSlots(t, db, rule, date, "10:00", "10:30")

	order := newTestOrder(p.ID, date.Add(10*time.Hour))
	require.NoError(t, db.CreateOrder(ctx, order))
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, int64(1), order.Version)

	t.Run("Get", func(t *testing.T) {
		got, err := db.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderRequested, got.Status)
		assert.True(t, order.ScheduledAt.Equal(got.ScheduledAt))
		assert.Equal(t, "Consultation", got.Title)
		assert.Empty(t, got.SlotIDs)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := db.GetOrder(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("OptimisticLocking", func(t *testing.T) {
		stale, err := db.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		fresh, err := db.GetOrder(ctx, order.ID)
		require.NoError(t, err)

		fresh.Status = models.OrderApproved
		fresh.ApprovalReason = "ok"
		require.NoError(t, db.UpdateOrderWithVersion(ctx, fresh))
		assert.Equal(t, int64(2), fresh.Version)

		stale.Status = models.OrderDeclined
		assert.ErrorIs(t, db.UpdateOrderWithVersion(ctx, stale), domain.ErrConcurrentModification)

		got, err := db.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderApproved, got.Status)
		assert.Equal(t, "ok", got.ApprovalReason)
	})

	t.Run("OrderSlots", func(t *testing.T) {
		ids := models.SlotIDs(slots)
		require.NoError(t, db.SetOrderSlots(ctx, order.ID, ids))

		got, err := db.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, ids, got.SlotIDs)

		require.NoError(t, db.SetOrderSlots(ctx, order.ID, nil))
		got, err = db.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Empty(t, got.SlotIDs)
	})

	t.Run("CompletedAt", func(t *testing.T) {
		got, err := db.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		done := time.Now().UTC().Truncate(time.Second)
		got.Status = models.OrderCompleted
		got.CompletedAt = &done
		require.NoError(t, db.UpdateOrderWithVersion(ctx, got))

		got, err = db.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, done.Equal(*got.CompletedAt))
	})
}

func TestListOrders(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := seedProfessional(t, db)
	date := nextMonday()

	first := newTestOrder(p.ID, date.Add(9*time.Hour))
	second := newTestOrder(p.ID, date.Add(14*time.Hour))
	second.ClientID = first.ClientID
	later := newTestOrder(p.ID, date.AddDate(0, 0, 3).Add(9*time.Hour))
	for _, o := range []*models.Order{later, second, first} {
		require.NoError(t, db.CreateOrder(ctx, o))
	}

	byDay, err := db.ListOrdersByProfessional(ctx, p.ID, date, date.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, byDay, 2)
	assert.Equal(t, first.ID, byDay[0].ID)
	assert.Equal(t, second.ID, byDay[1].ID)

	byClient, err := db.ListOrdersByClient(ctx, first.ClientID)
	require.NoError(t, err)
	require.Len(t, byClient, 2)
	assert.Equal(t, second.ID, byClient[0].ID)
}

func TestDeleteOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := seedProfessional(t, db)
	rule := seedRule(t, db, p.ID, time.Monday, "09:00", "10:00")
	date := nextMonday()
	slots := seedSlots(t, db, rule, date, "09:00")

	order := newTestOrder(p.ID, date.Add(9*time.Hour))
	require.NoError(t, db.CreateOrder(ctx, order))
	require.NoError(t, db.SetOrderSlots(ctx, order.ID, models.SlotIDs(slots)))

	require.NoError(t, db.DeleteOrder(ctx, order.ID))
	_, err := db.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var links int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_slots WHERE order_id = ?`, order.ID).Scan(&links))
	assert.Zero(t, links)

	assert.ErrorIs(t, db.DeleteOrder(ctx, order.ID), domain.ErrNotFound)
}

func TestOrderHistory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := seedProfessional(t, db)
	order := newTestOrder(p.ID, nextMonday().Add(9*time.Hour))
	require.NoError(t, db.CreateOrder(ctx, order))

	manager := uuid.New()
	require.NoError(t, db.AppendHistory(ctx, &models.OrderHistory{
		OrderID:         order.ID,
		PreviousStatus:  models.OrderRequested,
		NewStatus:       models.OrderApproved,
		Reason:          "confirmed by phone",
		ChangedByUserID: &manager,
	}))
	require.NoError(t, db.AppendHistory(ctx, &models.OrderHistory{
		OrderID:        order.ID,
		PreviousStatus: models.OrderApproved,
		NewStatus:      models.OrderCompleted,
		Notes:          "follow-up in a month",
	}))

	history, err := db.GetOrderHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.OrderApproved, history[0].NewStatus)
	require.NotNil(t, history[0].ChangedByUserID)
	assert.Equal(t, manager, *history[0].ChangedByUserID)
	assert.Equal(t, "confirmed by phone", history[0].Reason)
	assert.Equal(t, models.OrderApproved, history[1].PreviousStatus)
	assert.Nil(t, history[1].ChangedByUserID)
	assert.Equal(t, "follow-up in a month", history[1].Notes)
}
