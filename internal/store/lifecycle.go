package store

// Lifecycle rules applied to activity rows inside a mutation transaction.
// They operate on rows already re-read under row locks, so the transaction
// boundary (not these helpers) is what makes the result safe under
// concurrency.

// applyPatch mutates act according to the supplied patch and returns whether
// anything changed. Status transitions go through complete/activate so the
// derived timing fields stay consistent.
func applyPatch(act *Activity, patch ActivityPatch) bool {
	changed := false

	if patch.Name != nil && *patch.Name != act.Name {
		act.Name = *patch.Name
		changed = true
	}
	if patch.AllottedSeconds != nil && *patch.AllottedSeconds != act.AllottedSeconds {
		act.AllottedSeconds = *patch.AllottedSeconds
		if act.Status == StatusCompleted && act.SpentSeconds != nil {
			// Keep spent = allotted + extra - gained when the allotment moves
			// under a completed activity.
			completeActivity(act, *act.SpentSeconds)
		}
		changed = true
	}
	if patch.IsCompleted != nil && *patch.IsCompleted {
		// Skip sends no spent seconds: zero spent, full allotment gained.
		spent := 0
		if patch.SpentSeconds != nil {
			spent = *patch.SpentSeconds
		}
		completeActivity(act, spent)
		changed = true
	}

	if patch.IsActive != nil && *patch.IsActive && act.Status != StatusRunning {
		act.Status = StatusRunning
		act.SpentSeconds = nil
		act.ExtraSeconds = nil
		act.GainedSeconds = nil
		changed = true
	}

	return changed
}

// completeActivity marks act completed with the given spent seconds and
// derives extra/gained so that spent = allotted + extra - gained. The server
// recomputes these rather than trusting client-supplied values.
func completeActivity(act *Activity, spentSeconds int) {
	extra := 0
	gained := 0
	if spentSeconds > act.AllottedSeconds {
		extra = spentSeconds - act.AllottedSeconds
	} else {
		gained = act.AllottedSeconds - spentSeconds
	}

	act.Status = StatusCompleted
	act.SpentSeconds = &spentSeconds
	act.ExtraSeconds = &extra
	act.GainedSeconds = &gained
}

// demoteOtherRunning enforces the at-most-one-running invariant: every
// activity other than targetID that is currently running goes back to
// pending. Completed activities are untouched. Returns the IDs that changed.
func demoteOtherRunning(activities []Activity, targetID string) []string {
	var demoted []string
	for i := range activities {
		if activities[i].ID == targetID {
			continue
		}
		if activities[i].Status == StatusRunning {
			activities[i].Status = StatusPending
			activities[i].SpentSeconds = nil
			activities[i].ExtraSeconds = nil
			activities[i].GainedSeconds = nil
			demoted = append(demoted, activities[i].ID)
		}
	}
	return demoted
}

// renumber assigns contiguous positions 0..n-1 following the slice order.
func renumber(activities []Activity) {
	for i := range activities {
		activities[i].Position = i
	}
}

// moveActivity relocates targetID to newPos (clamped) and renumbers, keeping
// the relative order of the remaining activities.
func moveActivity(activities []Activity, targetID string, newPos int) {
	idx := -1
	for i := range activities {
		if activities[i].ID == targetID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	target := activities[idx]
	rest := append(activities[:idx:idx], activities[idx+1:]...)

	if newPos < 0 {
		newPos = 0
	}
	if newPos > len(rest) {
		newPos = len(rest)
	}

	out := make([]Activity, 0, len(rest)+1)
	out = append(out, rest[:newPos]...)
	out = append(out, target)
	out = append(out, rest[newPos:]...)
	copy(activities, out)
	renumber(activities)
}
