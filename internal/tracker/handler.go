package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workout"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type trackerProvider interface {
	Get(ctx context.Context, userID string) *Tracker
}

type SnapshotResponse struct {
	Snapshot *workout.Snapshot `json:"snapshot"`
	Status
}

type addDayRequest struct {
	Name string `json:"name"`
}

type Handler struct {
	trackers trackerProvider
}

func NewHandler(trackers trackerProvider) *Handler {
	return &Handler{
		trackers: trackers,
	}
}

func (handler *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/snapshot", handler.HandleSnapshot).Methods("GET", "OPTIONS").Name("snapshot")
	r.HandleFunc("/snapshot/reload", handler.HandleReload).Methods("POST", "OPTIONS").Name("reload-snapshot")
	r.HandleFunc("/days", handler.HandleAddDay).Methods("POST", "OPTIONS").Name("add-day")
	r.HandleFunc("/days/{dayId}", handler.HandleRemoveDay).Methods("DELETE", "OPTIONS").Name("remove-day")
	r.HandleFunc("/days/{dayId}/select", handler.HandleSelectDay).Methods("POST", "OPTIONS").Name("select-day")
	r.HandleFunc("/days/{dayId}/complete", handler.HandleCompleteDay).Methods("POST", "OPTIONS").Name("complete-day")
	r.HandleFunc("/days/{dayId}/workouts", handler.HandleAddWorkout).Methods("POST", "OPTIONS").Name("add-workout")
	r.HandleFunc("/days/{dayId}/workouts/{workoutId}", handler.HandleUpdateWorkout).Methods("PATCH", "OPTIONS").Name("update-workout")
	r.HandleFunc("/days/{dayId}/workouts/{workoutId}", handler.HandleRemoveWorkout).Methods("DELETE", "OPTIONS").Name("remove-workout")
	r.HandleFunc("/days/{dayId}/workouts/{workoutId}/sets", handler.HandleSaveSets).Methods("PUT", "OPTIONS").Name("save-sets")
	r.HandleFunc("/days/{dayId}/workouts/{workoutId}/toggle", handler.HandleToggleWorkout).Methods("POST", "OPTIONS").Name("toggle-workout")
}

func (handler *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "trackerHandler.snapshot")
	defer span.End()

	t, ok := handler.tracker(ctx, w, r)
	if !ok {
		return
	}
	writeSnapshot(ctx, w, t, nil)
}

func (handler *Handler) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "trackerHandler.reload")
	defer span.End()

	t, ok := handler.tracker(ctx, w, r)
	if !ok {
		return
	}
	if err := t.Reload(ctx); err != nil {
		// the fallback snapshot is still served, flagged with loadFailed
		log.Errorf("reload snapshot for user [%s]: %s", t.UserID(), err)
	}
	writeSnapshot(ctx, w, t, nil)
}

func (handler *Handler) HandleAddDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "trackerHandler.addDay")
	defer span.End()

	t, ok := handler.tracker(ctx, w, r)
	if !ok {
		return
	}

	var req addDayRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dayID, err := t.AddDay(ctx, req.Name)
	if dayID != "" {
		span.SetAttributes(attribute.String("day.id", dayID))
	}
	writeSnapshot(ctx, w, t, err)
}

func (handler *Handler) HandleRemoveDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "trackerHandler.removeDay")
	defer span.End()

	t, ok := handler.tracker(ctx, w, r)
	if !ok {
		return
	}
	err := t.RemoveDay(ctx, mux.Vars(r)["dayId"])
	writeSnapshot(ctx, w, t, err)
}

func (handler *Handler) HandleSelectDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "trackerHandler.selectDay")
	defer span.End()

	t, ok := handler.tracker(ctx, w, r)
	if !ok {
		return
	}
	err := t.SelectDay(ctx, mux.Vars(r)["dayId"])
	writeSnapshot(ctx, w, t, err)
}

func (handler *Handler) HandleCompleteDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "trackerHandler.completeDay")
	defer span.End()

	t, ok := handler.tracker(ctx, w, r)
	if !ok {
		return
	}
	err := t.MarkDayCompleted(ctx, mux.Vars(r)["dayId"])
	writeSnapshot(ctx, w, t, err)
}

func (handler *Handler) HandleAddWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "trackerHandler.addWorkout")
	defer span.End()

	t, ok := handler.tracker(ctx, w, r)
	if !ok {
		return
	}

	var tmpl workout.Template
	if !decodeJSON(w, r, &tmpl) {
		return
	}

	workoutID, err := t.AddWorkout(ctx, mux.Vars(r)["dayId"], tmpl)
	if workoutID != "" {
		span.SetAttributes(attribute.String("workout.id", workoutID))
	}
	writeSnapshot(ctx, w, t, err)
}

func (handler *Handler) HandleUpdateWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "trackerHandler.updateWorkout")
	defer span.End()

	t, ok := handler.tracker(ctx, w, r)
	if !ok {
		return
	}

	var patch workout.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}

	vars := mux.Vars(r)
	err := t.UpdateWorkout(ctx, vars["dayId"], vars["workoutId"], patch)
	writeSnapshot(ctx, w, t, err)
}

func (handler *Handler) HandleRemoveWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "trackerHandler.removeWorkout")
	defer span.End()

	t, ok := handler.tracker(ctx, w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	err := t.RemoveWorkout(ctx, vars["dayId"], vars["workoutId"])
	writeSnapshot(ctx, w, t, err)
}

func (handler *Handler) HandleSaveSets(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "trackerHandler.saveSets")
	defer span.End()

	t, ok := handler.tracker(ctx, w, r)
	if !ok {
		return
	}

	var sets []workout.Set
	if !decodeJSON(w, r, &sets) {
		return
	}
	span.SetAttributes(attribute.Int("sets", len(sets)))

	vars := mux.Vars(r)
	err := t.UpdateWorkoutSets(ctx, vars["dayId"], vars["workoutId"], sets)
	writeSnapshot(ctx, w, t, err)
}

func (handler *Handler) HandleToggleWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "trackerHandler.toggleWorkout")
	defer span.End()

	t, ok := handler.tracker(ctx, w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	err := t.ToggleWorkoutCompleted(ctx, vars["dayId"], vars["workoutId"])
	writeSnapshot(ctx, w, t, err)
}

// tracker resolves the tracker of the session user, put in the context by the auth middleware.
// OPTIONS requests are answered here and yield no tracker.
func (handler *Handler) tracker(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Tracker, bool) {
	if r.Method == http.MethodOptions {
		if route := mux.CurrentRoute(r); route != nil {
			if methods, err := route.GetMethods(); err == nil {
				w.Header().Add("Allow", strings.Join(methods, ", "))
			}
		}
		w.WriteHeader(http.StatusOK)
		return nil, false
	}

	session, ok := auth.FromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return nil, false
	}
	return handler.trackers.Get(ctx, session.User.ID), true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), pkg.ContentType.JSON) {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Tracef("unmarshal json params: %s", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeSnapshot maps the result of an operation to a status code and responds with the current snapshot.
// Changes that were applied but not persisted are answered with 202 Accepted.
func writeSnapshot(ctx context.Context, w http.ResponseWriter, t *Tracker, err error) {
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, ErrNotSynced):
		status = http.StatusAccepted
	case errors.Is(err, workout.ErrDayNotFound), errors.Is(err, workout.ErrWorkoutNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, workout.ErrInvalidSet),
		errors.Is(err, workout.ErrInvalidWorkout),
		errors.Is(err, workout.ErrInvalidDayName),
		errors.Is(err, workout.ErrInvalidRepRange),
		errors.Is(err, workout.ErrDuplicateID):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	default:
		log.Errorf("tracker operation for user [%s]: %s", t.UserID(), err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	snapshot, trackerStatus := t.Snapshot(ctx)
	respJson, err := json.Marshal(SnapshotResponse{
		Snapshot: snapshot,
		Status:   trackerStatus,
	})
	if err != nil {
		log.Errorf("marshal snapshot: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, status)
}
