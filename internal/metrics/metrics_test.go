package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("/v1/orders", "201")
		ObserveOperation("approve_order", time.Now())
	})

	before := testutil.ToFloat64(orderTransitions.WithLabelValues("approved"))
	IncTransition("approved")
	assert.Equal(t, before+1, testutil.ToFloat64(orderTransitions.WithLabelValues("approved")))

	conflicts := testutil.ToFloat64(reservationConflicts)
	IncReservationConflict()
	assert.Equal(t, conflicts+1, testutil.ToFloat64(reservationConflicts))

	generated := testutil.ToFloat64(slotsGenerated)
	AddSlotsGenerated(6)
	AddSlotsGenerated(0)
	assert.Equal(t, generated+6, testutil.ToFloat64(slotsGenerated))
}
