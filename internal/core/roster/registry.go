package roster

import (
	"slices"
	"time"
)

// applyAssign は作業員を現在のコンテナ (現場名簿またはプール) から対象コンテナへ移動します。
// 変更がなければ false を返します。
func applyAssign(s *Snapshot, actor Actor, in AssignInput, now time.Time) (bool, error) {
	w := s.Worker(in.WorkerID)
	if w == nil {
		return false, ErrWorkerNotFound
	}

	var target *Site
	if in.TargetSiteID != "" {
		target = s.Site(in.TargetSiteID)
		if target == nil {
			return false, ErrSiteNotFound
		}
	}

	if err := authorizeMove(s, actor, w, in.TargetSiteID); err != nil {
		return false, err
	}

	if w.IsPending() {
		return false, ErrWorkerPending
	}

	if w.AssignedSiteID == in.TargetSiteID {
		if target == nil || in.InsertBeforeID == "" || in.InsertBeforeID == w.ID {
			return false, nil
		}
		before := slices.Clone(target.AssignedWorkerIDs)
		target.AssignedWorkerIDs = insertBefore(removeID(target.AssignedWorkerIDs, w.ID), w.ID, in.InsertBeforeID)
		return !slices.Equal(before, target.AssignedWorkerIDs), nil
	}

	if w.IsAssigned() {
		releaseFromSite(s, w)
	}

	if target == nil {
		w.AssignedSiteID = ""
		markUnassigned(w, now)
		return true, nil
	}

	target.AssignedWorkerIDs = insertBefore(target.AssignedWorkerIDs, w.ID, in.InsertBeforeID)
	w.AssignedSiteID = target.ID
	markWorking(w)
	return true, nil
}

// applyReorder は単一の名簿内で作業員の位置を変更します。他の作業員の相対順序は保持されます。
func applyReorder(s *Snapshot, actor Actor, in ReorderInput) (bool, error) {
	site := s.Site(in.SiteID)
	if site == nil {
		return false, ErrSiteNotFound
	}
	if err := authorizeReorder(actor, site); err != nil {
		return false, err
	}

	oldIndex := site.indexOf(in.WorkerID)
	if oldIndex < 0 {
		return false, ErrNotInRoster
	}

	newIndex := in.TargetIndex
	if newIndex < 0 {
		newIndex = 0
	}
	if last := len(site.AssignedWorkerIDs) - 1; newIndex > last {
		newIndex = last
	}
	if oldIndex == newIndex {
		return false, nil
	}

	ids := removeID(site.AssignedWorkerIDs, in.WorkerID)
	site.AssignedWorkerIDs = slices.Insert(ids, newIndex, in.WorkerID)
	return true, nil
}

// applyRetract は削除予定の作業員をすべての名簿と責任者指定から外します。権限検証は行いません。
func applyRetract(s *Snapshot, workerID string) (bool, error) {
	w := s.Worker(workerID)
	if w == nil {
		return false, ErrWorkerNotFound
	}

	changed := false
	for _, site := range s.Sites {
		if site.indexOf(workerID) >= 0 {
			site.AssignedWorkerIDs = removeID(site.AssignedWorkerIDs, workerID)
			changed = true
		}
		if site.EngineerID == workerID {
			site.EngineerID = ""
			changed = true
		}
	}

	if w.AssignedSiteID != "" || w.WaitingSince != nil || w.AbsentSince != nil {
		changed = true
	}
	w.AssignedSiteID = ""
	w.WaitingSince = nil
	w.AbsentSince = nil
	if !w.IsPending() && w.Availability != AvailabilityWaiting {
		w.Availability = AvailabilityWaiting
		changed = true
	}
	if w.IsPending() && w.Availability != AvailabilityNone {
		w.Availability = AvailabilityNone
		changed = true
	}
	return changed, nil
}

// releaseFromSite は作業員を所属現場の名簿から外し、配属ポインタを消去します。
func releaseFromSite(s *Snapshot, w *Worker) {
	if site := s.Site(w.AssignedSiteID); site != nil {
		site.AssignedWorkerIDs = removeID(site.AssignedWorkerIDs, w.ID)
	}
	w.AssignedSiteID = ""
}

// insertBefore は beforeID の直前に id を挿入します。beforeID が名簿にない場合は末尾に追加します。
func insertBefore(ids []string, id, beforeID string) []string {
	if beforeID != "" && beforeID != id {
		if idx := slices.Index(ids, beforeID); idx >= 0 {
			return slices.Insert(ids, idx, id)
		}
	}
	return append(ids, id)
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(v string) bool { return v == id })
}
