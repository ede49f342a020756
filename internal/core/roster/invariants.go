package roster

import "fmt"

// Validate はスナップショットが名簿と作業員状態の整合性を満たしているか検証します。
// 違反があれば ErrCorruption をラップしたエラーを返します。
func Validate(s *Snapshot) error {
	workers := make(map[string]*Worker, len(s.Workers))
	for _, w := range s.Workers {
		if _, dup := workers[w.ID]; dup {
			return corruptionf("duplicate worker id %s", w.ID)
		}
		workers[w.ID] = w
	}

	sites := make(map[string]struct{}, len(s.Sites))
	for _, site := range s.Sites {
		if _, dup := sites[site.ID]; dup {
			return corruptionf("duplicate site id %s", site.ID)
		}
		sites[site.ID] = struct{}{}
	}

	holder := make(map[string]string, len(s.Workers))
	for _, site := range s.Sites {
		seen := make(map[string]struct{}, len(site.AssignedWorkerIDs))
		for _, id := range site.AssignedWorkerIDs {
			if _, dup := seen[id]; dup {
				return corruptionf("site %s lists worker %s twice", site.ID, id)
			}
			seen[id] = struct{}{}

			w, ok := workers[id]
			if !ok {
				return corruptionf("site %s lists unknown worker %s", site.ID, id)
			}
			if w.IsPending() {
				return corruptionf("pending worker %s is on site %s", id, site.ID)
			}
			if w.AssignedSiteID != site.ID {
				return corruptionf("site %s lists worker %s assigned to %q", site.ID, id, w.AssignedSiteID)
			}
			if other, dup := holder[id]; dup {
				return corruptionf("worker %s is on sites %s and %s", id, other, site.ID)
			}
			holder[id] = site.ID
		}
	}

	for _, w := range s.Workers {
		if w.IsAssigned() {
			if holder[w.ID] != w.AssignedSiteID {
				return corruptionf("worker %s points to site %s which does not list it", w.ID, w.AssignedSiteID)
			}
			if w.Availability != AvailabilityNone || w.WaitingSince != nil || w.AbsentSince != nil {
				return corruptionf("assigned worker %s carries availability %q", w.ID, w.Availability)
			}
			continue
		}
		switch w.Availability {
		case AvailabilityWaiting, AvailabilityAbsent, AvailabilityRest:
		case AvailabilityNone:
			// 承認待ちの作業員はプール外なので状態を持たなくてよい
			if w.IsPending() && w.AbsentSince == nil {
				continue
			}
			return corruptionf("unassigned worker %s has no availability status", w.ID)
		default:
			return corruptionf("unassigned worker %s has no availability status", w.ID)
		}
		if (w.AbsentSince != nil) != (w.Availability == AvailabilityAbsent) {
			return corruptionf("worker %s absentSince does not match status %q", w.ID, w.Availability)
		}
	}
	return nil
}

func corruptionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruption, fmt.Sprintf(format, args...))
}
