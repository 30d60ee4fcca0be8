package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workout"
	"github.com/2beens/gymtracker/pkg"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// days of past sessions considered when looking up previous sets
const previousSetsLookbackDays = 30

var (
	ErrUserNotFound    = workout.ErrUserNotFound
	ErrAccessCodeTaken = errors.New("access code already taken")
)

// Repo stores routines and logged sessions in postgres.
type Repo struct {
	db    *pgxpool.Pool
	clock workout.Clock
}

func NewRepo(db *pgxpool.Pool, clock workout.Clock) *Repo {
	return &Repo{
		db:    db,
		clock: clock,
	}
}

// Authenticate finds the user owning the given access code.
func (r *Repo) Authenticate(ctx context.Context, accessCode string) (_ *workout.User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.remote.authenticate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	accessCode = strings.TrimSpace(accessCode)
	if accessCode == "" {
		return nil, ErrUserNotFound
	}

	var user workout.User
	err = r.db.QueryRow(
		ctx,
		`
			SELECT id::text, name, access_code
			FROM users
			WHERE access_code = $1
		`,
		accessCode,
	).Scan(&user.ID, &user.Name, &user.AccessCode)
	if pkg.IsNoRowsError(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user [query row]: %w", err)
	}

	return &user, nil
}

func (r *Repo) CreateUser(ctx context.Context, name, accessCode string) (_ *workout.User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.remote.users.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	accessCode = strings.TrimSpace(accessCode)
	if name == "" || accessCode == "" {
		return nil, errors.New("user name or access code empty")
	}

	user := &workout.User{
		ID:         uuid.NewString(),
		Name:       name,
		AccessCode: accessCode,
	}
	_, err = r.db.Exec(
		ctx,
		`INSERT INTO users (id, name, access_code) VALUES ($1, $2, $3)`,
		user.ID, user.Name, user.AccessCode,
	)
	if pkg.IsUniqueViolationError(err) {
		return nil, ErrAccessCodeTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (r *Repo) ListUsers(ctx context.Context) (_ []workout.User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.remote.users.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `SELECT id::text, name, access_code FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("users [query]: %w", err)
	}
	defer rows.Close()

	var users []workout.User
	for rows.Next() {
		var user workout.User
		if err := rows.Scan(&user.ID, &user.Name, &user.AccessCode); err != nil {
			return nil, fmt.Errorf("users [rows scan]: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users [rows error]: %w", err)
	}

	return users, nil
}

// SeedRoutine inserts the given days and their workouts for the user, in order.
// Previous and today's sets are not seeded, they only ever come from logged sessions.
func (r *Repo) SeedRoutine(ctx context.Context, userID string, days []workout.Day) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.remote.seed_routine")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("days", len(days)))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = finishTx(ctx, tx, err)
	}()

	var offset int
	if err = tx.QueryRow(
		ctx,
		`SELECT COALESCE(MAX(order_index) + 1, 0) FROM workout_days WHERE user_id = $1`,
		userID,
	).Scan(&offset); err != nil {
		return fmt.Errorf("day order offset: %w", err)
	}

	for i, day := range days {
		if err = insertDay(ctx, tx, userID, day.ID, day.Name, offset+i); err != nil {
			return err
		}
		for j, w := range day.Workouts {
			tmpl := workout.Template{
				Name:              w.Name,
				DefaultSets:       w.DefaultSets,
				DefaultReps:       w.DefaultReps,
				MachineSetupNotes: w.MachineSetupNotes,
			}
			if err = insertWorkout(ctx, tx, userID, day.ID, w.ID, tmpl, j); err != nil {
				return err
			}
		}
	}

	return nil
}

// Snapshot reads today's snapshot of the user. Any query failure is returned as is.
func (r *Repo) Snapshot(ctx context.Context, userID string) (_ *workout.Snapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.remote.snapshot")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	today := r.clock.Today()
	to := dateTime(today)
	from := dateTime(today.AddDays(-previousSetsLookbackDays))

	days, err := r.days(ctx, userID)
	if err != nil {
		return nil, err
	}
	workouts, err := r.workouts(ctx, userID)
	if err != nil {
		return nil, err
	}
	sessions, err := r.sessions(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	sets, err := r.sets(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	return assembleSnapshot(userID, today, days, workouts, sessions, sets), nil
}

// Load is Snapshot with a fallback: on failure an empty snapshot is returned together with the error.
func (r *Repo) Load(ctx context.Context, userID string) (*workout.Snapshot, error) {
	snapshot, err := r.Snapshot(ctx, userID)
	if err != nil {
		log.Errorf("remote: load snapshot for user [%s]: %s", userID, err)
		return workout.NewEmptySnapshot(userID, r.clock.Today()), err
	}
	return snapshot, nil
}

// Apply persists a mutation that was already applied to the snapshot.
func (r *Repo) Apply(ctx context.Context, snapshot *workout.Snapshot, m workout.Mutation) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.remote.apply")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("user.id", snapshot.UserID),
		attribute.String("mutation", m.Kind()),
	)

	userID := snapshot.UserID
	switch m := m.(type) {
	case workout.SaveSets:
		return r.saveSets(ctx, userID, snapshot.SelectedDate, m)
	case workout.CompleteDay:
		return r.completeDay(ctx, userID, snapshot.SelectedDate, m)
	case workout.AddDay:
		err = insertDay(ctx, r.db, userID, m.DayID, m.Name, m.Position)
		if pkg.IsForeignKeyViolationError(err) {
			return ErrUserNotFound
		}
		return err
	case workout.AddWorkout:
		return insertWorkout(ctx, r.db, userID, m.DayID, m.WorkoutID, m.Template, m.Position)
	case workout.RemoveDay:
		return r.removeDay(ctx, userID, m.DayID)
	case workout.RemoveWorkout:
		return r.removeWorkout(ctx, userID, m.DayID, m.WorkoutID)
	case workout.UpdateWorkout:
		return r.updateWorkout(ctx, userID, m)
	case workout.SelectDay, workout.Rollover:
		// sessions are keyed by date, so neither needs to be stored
		return nil
	default:
		return fmt.Errorf("unsupported mutation: %s", m.Kind())
	}
}

func (r *Repo) days(ctx context.Context, userID string) ([]dayRow, error) {
	rows, err := r.db.Query(
		ctx,
		`
			SELECT id, name
			FROM workout_days
			WHERE user_id = $1
			ORDER BY order_index, created_at
		`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("days [query]: %w", err)
	}
	defer rows.Close()

	var days []dayRow
	for rows.Next() {
		var d dayRow
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("days [rows scan]: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("days [rows error]: %w", err)
	}

	return days, nil
}

func (r *Repo) workouts(ctx context.Context, userID string) ([]workoutRow, error) {
	rows, err := r.db.Query(
		ctx,
		`
			SELECT
			    w.id, w.day_id, w.name, w.default_sets,
			    w.default_reps_min, w.default_reps_max, w.machine_setup_notes
			FROM workouts w
			JOIN workout_days d ON d.id = w.day_id
			WHERE d.user_id = $1
			ORDER BY w.order_index, w.id
		`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("workouts [query]: %w", err)
	}
	defer rows.Close()

	var workouts []workoutRow
	for rows.Next() {
		var w workoutRow
		if err := rows.Scan(
			&w.ID,
			&w.DayID,
			&w.Name,
			&w.DefaultSets,
			&w.DefaultRepsMin,
			&w.DefaultRepsMax,
			&w.MachineSetupNotes,
		); err != nil {
			return nil, fmt.Errorf("workouts [rows scan]: %w", err)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workouts [rows error]: %w", err)
	}

	return workouts, nil
}

func (r *Repo) sessions(ctx context.Context, userID string, from, to time.Time) ([]sessionRow, error) {
	rows, err := r.db.Query(
		ctx,
		`
			SELECT id, day_id, session_date, completed_at
			FROM workout_sessions
			WHERE user_id = $1 AND session_date >= $2 AND session_date <= $3
			ORDER BY session_date DESC
		`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("sessions [query]: %w", err)
	}
	defer rows.Close()

	var sessions []sessionRow
	for rows.Next() {
		var s sessionRow
		var sessionDate time.Time
		if err := rows.Scan(&s.ID, &s.DayID, &sessionDate, &s.CompletedAt); err != nil {
			return nil, fmt.Errorf("sessions [rows scan]: %w", err)
		}
		s.Date = workout.DateOf(sessionDate)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sessions [rows error]: %w", err)
	}

	return sessions, nil
}

func (r *Repo) sets(ctx context.Context, userID string, from, to time.Time) ([]setRow, error) {
	rows, err := r.db.Query(
		ctx,
		`
			SELECT st.session_id, st.workout_id, st.set_number, st.reps, st.weight, st.completed
			FROM workout_sets st
			JOIN workout_sessions s ON s.id = st.session_id
			WHERE s.user_id = $1 AND s.session_date >= $2 AND s.session_date <= $3
			ORDER BY st.session_id, st.workout_id, st.set_number
		`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("sets [query]: %w", err)
	}
	defer rows.Close()

	var sets []setRow
	for rows.Next() {
		var s setRow
		if err := rows.Scan(
			&s.SessionID,
			&s.WorkoutID,
			&s.SetNumber,
			&s.Set.Reps,
			&s.Set.Weight,
			&s.Set.Completed,
		); err != nil {
			return nil, fmt.Errorf("sets [rows scan]: %w", err)
		}
		sets = append(sets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sets [rows error]: %w", err)
	}

	return sets, nil
}

// saveSets replaces the workout's sets of today's session, creating the session if needed.
func (r *Repo) saveSets(ctx context.Context, userID string, date workout.Date, m workout.SaveSets) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.remote.save_sets")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("sets", len(m.Sets)))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = finishTx(ctx, tx, err)
	}()

	var sessionID int64
	err = tx.QueryRow(
		ctx,
		`
			INSERT INTO workout_sessions (user_id, day_id, session_date)
			SELECT $1::uuid, d.id, $3::date
			FROM workout_days d
			WHERE d.id = $2 AND d.user_id = $1
			ON CONFLICT (user_id, day_id, session_date) DO UPDATE SET day_id = EXCLUDED.day_id
			RETURNING id
		`,
		userID, m.DayID, dateTime(date),
	).Scan(&sessionID)
	if pkg.IsNoRowsError(err) {
		return workout.ErrDayNotFound
	}
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	var exists bool
	if err = tx.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM workouts WHERE id = $1 AND day_id = $2)`,
		m.WorkoutID, m.DayID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check workout: %w", err)
	}
	if !exists {
		return workout.ErrWorkoutNotFound
	}

	if _, err = tx.Exec(
		ctx,
		`DELETE FROM workout_sets WHERE session_id = $1 AND workout_id = $2`,
		sessionID, m.WorkoutID,
	); err != nil {
		return fmt.Errorf("delete sets: %w", err)
	}

	if len(m.Sets) == 0 {
		return nil
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"workout_sets"},
		[]string{"session_id", "workout_id", "set_number", "reps", "weight", "completed"},
		pgx.CopyFromSlice(len(m.Sets), func(i int) ([]any, error) {
			s := m.Sets[i]
			return []any{sessionID, m.WorkoutID, i + 1, s.Reps, s.Weight, s.Completed}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy sets: %w", err)
	}

	return nil
}

// completeDay stamps today's session. Without a session, nothing was logged and nothing is stored.
func (r *Repo) completeDay(ctx context.Context, userID string, date workout.Date, m workout.CompleteDay) error {
	tag, err := r.db.Exec(
		ctx,
		`
			UPDATE workout_sessions
			SET completed_at = $1
			WHERE user_id = $2 AND day_id = $3 AND session_date = $4
		`,
		m.At, userID, m.DayID, dateTime(date),
	)
	if err != nil {
		return fmt.Errorf("complete day: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Debugf("remote: no session to complete for day [%s] on %s", m.DayID, date)
	}
	return nil
}

func (r *Repo) removeDay(ctx context.Context, userID, dayID string) error {
	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM workout_days WHERE id = $1 AND user_id = $2`,
		dayID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete day: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workout.ErrDayNotFound
	}
	return nil
}

func (r *Repo) removeWorkout(ctx context.Context, userID, dayID, workoutID string) error {
	tag, err := r.db.Exec(
		ctx,
		`
			DELETE FROM workouts w
			USING workout_days d
			WHERE w.id = $1 AND w.day_id = $2 AND d.id = w.day_id AND d.user_id = $3
		`,
		workoutID, dayID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete workout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workout.ErrWorkoutNotFound
	}
	return nil
}

// updateWorkout writes only the patched fields; a patched rep range replaces both bounds.
func (r *Repo) updateWorkout(ctx context.Context, userID string, m workout.UpdateWorkout) error {
	if m.Patch.IsEmpty() {
		return nil
	}

	var repsMin *int
	var repsMax *int
	if m.Patch.DefaultReps != nil {
		repsMin = &m.Patch.DefaultReps.Min
		repsMax = m.Patch.DefaultReps.Max
	}

	tag, err := r.db.Exec(
		ctx,
		`
			UPDATE workouts w
			SET
			    name = COALESCE($1::text, w.name),
			    default_sets = COALESCE($2::integer, w.default_sets),
			    default_reps_min = CASE WHEN $3::boolean THEN $4::integer ELSE w.default_reps_min END,
			    default_reps_max = CASE WHEN $3::boolean THEN $5::integer ELSE w.default_reps_max END,
			    machine_setup_notes = COALESCE($6::text, w.machine_setup_notes)
			FROM workout_days d
			WHERE w.id = $7 AND w.day_id = $8 AND d.id = w.day_id AND d.user_id = $9
		`,
		m.Patch.Name,
		m.Patch.DefaultSets,
		m.Patch.DefaultReps != nil,
		repsMin,
		repsMax,
		m.Patch.MachineSetupNotes,
		m.WorkoutID, m.DayID, userID,
	)
	if err != nil {
		return fmt.Errorf("update workout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workout.ErrWorkoutNotFound
	}
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertDay(ctx context.Context, q querier, userID, dayID, name string, position int) error {
	_, err := q.Exec(
		ctx,
		`INSERT INTO workout_days (id, user_id, name, order_index) VALUES ($1, $2, $3, $4)`,
		dayID, userID, name, position,
	)
	if pkg.IsUniqueViolationError(err) {
		return fmt.Errorf("%w: day %s", workout.ErrDuplicateID, dayID)
	}
	if err != nil {
		return fmt.Errorf("insert day: %w", err)
	}
	return nil
}

// insertWorkout adds a workout to a day owned by the user.
func insertWorkout(
	ctx context.Context,
	q querier,
	userID, dayID, workoutID string,
	tmpl workout.Template,
	position int,
) error {
	tag, err := q.Exec(
		ctx,
		`
			INSERT INTO workouts
			    (id, day_id, name, default_sets, default_reps_min, default_reps_max, machine_setup_notes, order_index)
			SELECT $1::text, d.id, $3::text, $4::integer, $5::integer, $6::integer, $7::text, $8::integer
			FROM workout_days d
			WHERE d.id = $2 AND d.user_id = $9
		`,
		workoutID,
		dayID,
		tmpl.Name,
		tmpl.DefaultSets,
		tmpl.DefaultReps.Min,
		tmpl.DefaultReps.Max,
		tmpl.MachineSetupNotes,
		position,
		userID,
	)
	if pkg.IsUniqueViolationError(err) {
		return fmt.Errorf("%w: workout %s", workout.ErrDuplicateID, workoutID)
	}
	if err != nil {
		return fmt.Errorf("insert workout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workout.ErrDayNotFound
	}
	return nil
}

func finishTx(ctx context.Context, tx pgx.Tx, err error) error {
	if err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			return fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}

func dateTime(d workout.Date) time.Time {
	t, err := time.Parse("2006-01-02", d.String())
	if err != nil {
		return time.Time{}
	}
	return t
}
