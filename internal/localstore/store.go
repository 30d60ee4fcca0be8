package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workout"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const keyPrefix = "workout_tracker_data_"

func Key(userID string) string {
	return keyPrefix + userID
}

// Store persists one JSON encoded snapshot per user in a KV.
// Every save is a full overwrite, the last write wins.
type Store struct {
	kv    KV
	clock workout.Clock
	// serializes read-modify-write of a snapshot
	mutex sync.Mutex
}

func NewStore(kv KV, clock workout.Clock) *Store {
	return &Store{
		kv:    kv,
		clock: clock,
	}
}

// Load returns the user's snapshot, reconciled with today's date.
//
// A missing or unparseable record is replaced with the default routine.
// A seeded or rolled over snapshot is written back right away.
// If the KV cannot be read, the default snapshot is returned together with the error,
// and nothing is written, so the stored record is not clobbered.
func (s *Store) Load(ctx context.Context, userID string) (_ *workout.Snapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "localstore.load")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.String("user.id", userID))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	today := s.clock.Today()

	data, err := s.kv.Get(ctx, Key(userID))
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return workout.DefaultSnapshot(userID, today), fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot *workout.Snapshot
	seeded := false
	if errors.Is(err, ErrKeyNotFound) {
		log.Debugf("localstore: no snapshot for user [%s], seeding default routine", userID)
		snapshot, seeded = workout.DefaultSnapshot(userID, today), true
	} else {
		snapshot, err = decode(data, userID)
		if err != nil {
			log.Warnf("localstore: unparseable snapshot for user [%s], seeding default routine: %s", userID, err)
			snapshot, seeded = workout.DefaultSnapshot(userID, today), true
		}
	}

	snapshot, rolled := workout.Reconcile(snapshot, today)
	span.SetAttributes(attribute.Bool("seeded", seeded), attribute.Bool("rolled", rolled))

	if seeded || rolled {
		if saveErr := s.save(ctx, snapshot); saveErr != nil {
			// the next save overwrites the whole record anyway
			log.Errorf("localstore: write back snapshot for user [%s]: %s", userID, saveErr)
		}
	}

	return snapshot, nil
}

// Save overwrites the stored snapshot.
func (s *Store) Save(ctx context.Context, snapshot *workout.Snapshot) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "localstore.save")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.save(ctx, snapshot)
}

// Apply persists the snapshot the mutation was already applied to.
// The local record is always the whole snapshot, so the mutation itself is not needed.
func (s *Store) Apply(ctx context.Context, snapshot *workout.Snapshot, m workout.Mutation) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "localstore.apply")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.String("mutation", m.Kind()))

	return s.Save(ctx, snapshot)
}

// Delete removes the user's record; the next Load seeds a fresh default snapshot.
func (s *Store) Delete(ctx context.Context, userID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.kv.Delete(ctx, Key(userID))
}

func (s *Store) save(ctx context.Context, snapshot *workout.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, Key(snapshot.UserID), data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func decode(data []byte, userID string) (*workout.Snapshot, error) {
	snapshot, err := workout.DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if snapshot.UserID != userID {
		return nil, fmt.Errorf("%w: stored for user %s", workout.ErrMalformedSnapshot, snapshot.UserID)
	}
	return snapshot, nil
}
