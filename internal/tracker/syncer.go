package tracker

import (
	"context"

	"github.com/2beens/gymtracker/internal/workout"
)

//go:generate mockgen -source=$GOFILE -destination=syncer_mocks_test.go -package=tracker_test

// Syncer persists snapshots, implemented by the local store and the remote repo.
type Syncer interface {
	// Load returns a usable snapshot even on error.
	Load(ctx context.Context, userID string) (*workout.Snapshot, error)
	// Apply persists m, which was already applied to snapshot.
	Apply(ctx context.Context, snapshot *workout.Snapshot, m workout.Mutation) error
}
