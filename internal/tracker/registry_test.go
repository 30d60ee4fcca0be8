package tracker_test

import (
	"context"
	"testing"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/tracker"
	"github.com/2beens/gymtracker/internal/workout"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRegistry_GetAndEvict(t *testing.T) {
	ctrl := gomock.NewController(t)
	syncer := NewMockSyncer(ctrl)
	clock := newClock("2024-03-10")
	metricsManager := metrics.NewTestManager()

	loadDefault := func(_ context.Context, userID string) (*workout.Snapshot, error) {
		return workout.DefaultSnapshot(userID, clock.Today()), nil
	}
	syncer.EXPECT().Load(gomock.Any(), "user-1").DoAndReturn(loadDefault).Times(2)
	syncer.EXPECT().Load(gomock.Any(), "user-2").DoAndReturn(loadDefault).Times(1)

	registry := tracker.NewRegistry(syncer, clock, metricsManager)
	ctx := context.Background()

	first := registry.Get(ctx, "user-1")
	require.NotNil(t, first)
	assert.Equal(t, "user-1", first.UserID())
	assert.Same(t, first, registry.Get(ctx, "user-1"))

	second := registry.Get(ctx, "user-2")
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, registry.Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(metricsManager.GaugeActiveTrackers))

	registry.Evict("user-1")
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metricsManager.GaugeActiveTrackers))

	// evicted users are loaded from storage again
	reloaded := registry.Get(ctx, "user-1")
	assert.NotSame(t, first, reloaded)
	assert.Equal(t, 2, registry.Len())

	registry.Evict("unknown")
	assert.Equal(t, 2, registry.Len())
}

func TestRegistry_NewIDsAreUnique(t *testing.T) {
	ctrl := gomock.NewController(t)
	syncer := NewMockSyncer(ctrl)
	clock := newClock("2024-03-10")

	syncer.EXPECT().Load(gomock.Any(), "user-1").Return(workout.NewEmptySnapshot("user-1", clock.Today()), nil)
	syncer.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	registry := tracker.NewRegistry(syncer, clock, metrics.NewTestManager())
	tr := registry.Get(context.Background(), "user-1")

	first, err := tr.AddDay(context.Background(), "Upper")
	require.NoError(t, err)
	second, err := tr.AddDay(context.Background(), "Lower")
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
