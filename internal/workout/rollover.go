package workout

// Reconcile makes the snapshot's "today" fields describe the given date.
//
// When the snapshot already belongs to today it is returned as is, with rolled set to false.
// Otherwise a rolled over deep copy is returned and the input is left untouched:
//   - if the selected day had any sets logged, all days are archived in
//     WorkoutHistory under the stale date
//   - every workout's non empty TodaySets become its PreviousSets, and TodaySets is reset
//   - CompletedAt is cleared on every day
//   - SelectedDate becomes today, SelectedDayID is kept
//
// Only a single step is taken, no matter how many days passed since SelectedDate.
// History keys stay strictly before SelectedDate, so nothing is archived if the clock went backwards.
func Reconcile(snapshot *Snapshot, today Date) (_ *Snapshot, rolled bool) {
	if snapshot.SelectedDate == today {
		return snapshot, false
	}

	next := snapshot.Clone()
	staleDate := next.SelectedDate

	if selectedDay, ok := next.SelectedDay(); ok && staleDate.Before(today) && selectedDay.HasProgress() {
		next.WorkoutHistory[staleDate] = cloneDays(next.Days)
	}

	for i := range next.Days {
		day := &next.Days[i]
		for j := range day.Workouts {
			w := &day.Workouts[j]
			if len(w.TodaySets) > 0 {
				w.PreviousSets = w.TodaySets
			}
			w.TodaySets = []Set{}
		}
		day.CompletedAt = nil
	}

	next.SelectedDate = today
	return next, true
}
