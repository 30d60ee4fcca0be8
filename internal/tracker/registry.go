package tracker

import (
	"context"
	"sync"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/workout"

	"github.com/google/uuid"
)

// Registry keeps one Tracker per logged in user.
type Registry struct {
	syncer         Syncer
	clock          workout.Clock
	newID          func() string
	metricsManager *metrics.Manager

	mutex    sync.Mutex
	trackers map[string]*Tracker
}

func NewRegistry(syncer Syncer, clock workout.Clock, metricsManager *metrics.Manager) *Registry {
	return &Registry{
		syncer:         syncer,
		clock:          clock,
		newID:          uuid.NewString,
		metricsManager: metricsManager,
		trackers:       make(map[string]*Tracker),
	}
}

// Get returns the user's tracker, loading the snapshot on first use.
func (r *Registry) Get(ctx context.Context, userID string) *Tracker {
	r.mutex.Lock()
	t, ok := r.trackers[userID]
	r.mutex.Unlock()
	if ok {
		return t
	}

	// load outside the lock, so a slow store does not block other users
	created := NewTracker(ctx, NewTrackerParams{
		UserID:         userID,
		Syncer:         r.syncer,
		Clock:          r.clock,
		NewID:          r.newID,
		MetricsManager: r.metricsManager,
	})

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if t, ok := r.trackers[userID]; ok {
		return t
	}
	r.trackers[userID] = created
	r.metricsManager.GaugeActiveTrackers.Set(float64(len(r.trackers)))
	return created
}

// Evict drops the user's tracker; the next Get loads the snapshot from storage again.
func (r *Registry) Evict(userID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.trackers, userID)
	r.metricsManager.GaugeActiveTrackers.Set(float64(len(r.trackers)))
}

func (r *Registry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.trackers)
}
