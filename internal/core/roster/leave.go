package roster

import (
	"fmt"
	"slices"
	"time"
)

func isValidLeaveType(t LeaveType) bool {
	switch t {
	case LeaveAnnual, LeaveSick, LeaveEmergency, LeaveOther:
		return true
	default:
		return false
	}
}

func validateLeaveEntry(e LeaveEntry) error {
	if e.StartDate.IsZero() || e.EndDate.IsZero() {
		return ErrInvalidDate
	}
	if e.EndDate.Before(e.StartDate) {
		return ErrInvalidDateRange
	}
	if !isValidLeaveType(e.Type) {
		return fmt.Errorf("%q: %w", e.Type, ErrInvalidLeaveType)
	}
	return nil
}

func leaveIndex(history []LeaveEntry, start, end Date) int {
	return slices.IndexFunc(history, func(e LeaveEntry) bool {
		return e.StartDate.Equal(start) && e.EndDate.Equal(end)
	})
}

// applyRecordLeave は休暇を記録し、作業員を rest へ遷移させます。
// 同じ (開始日, 終了日) の記録が既にあれば履歴は変更しません。
func applyRecordLeave(s *Snapshot, actor Actor, in RecordLeaveInput, now time.Time) (bool, error) {
	if err := validateLeaveEntry(in.Entry); err != nil {
		return false, err
	}
	w, err := eligibleWorker(s, in.WorkerID)
	if err != nil {
		return false, err
	}
	if err := authorizeWorkerChange(s, actor, w); err != nil {
		return false, err
	}

	changed := false
	if leaveIndex(w.LeaveHistory, in.Entry.StartDate, in.Entry.EndDate) < 0 {
		w.LeaveHistory = append(w.LeaveHistory, in.Entry)
		changed = true
	}
	if w.IsAssigned() {
		releaseFromSite(s, w)
		markWorking(w)
		changed = true
	}
	if setAvailability(w, AvailabilityRest, now) {
		changed = true
	}
	return changed, nil
}

// applyDeleteLeave は (開始日, 終了日) が一致する休暇記録を削除します。
func applyDeleteLeave(s *Snapshot, actor Actor, in DeleteLeaveInput) (bool, error) {
	w, err := eligibleWorker(s, in.WorkerID)
	if err != nil {
		return false, err
	}
	if err := authorizeWorkerChange(s, actor, w); err != nil {
		return false, err
	}

	idx := leaveIndex(w.LeaveHistory, in.StartDate, in.EndDate)
	if idx < 0 {
		return false, fmt.Errorf("%s..%s: %w", in.StartDate, in.EndDate, ErrLeaveNotFound)
	}
	w.LeaveHistory = slices.Delete(w.LeaveHistory, idx, idx+1)
	return true, nil
}

// applyUpdateLeave は (開始日, 終了日) が一致する休暇記録を置き換えます。
func applyUpdateLeave(s *Snapshot, actor Actor, in UpdateLeaveInput) (bool, error) {
	if err := validateLeaveEntry(in.Entry); err != nil {
		return false, err
	}
	w, err := eligibleWorker(s, in.WorkerID)
	if err != nil {
		return false, err
	}
	if err := authorizeWorkerChange(s, actor, w); err != nil {
		return false, err
	}

	idx := leaveIndex(w.LeaveHistory, in.StartDate, in.EndDate)
	if idx < 0 {
		return false, fmt.Errorf("%s..%s: %w", in.StartDate, in.EndDate, ErrLeaveNotFound)
	}
	if other := leaveIndex(w.LeaveHistory, in.Entry.StartDate, in.Entry.EndDate); other >= 0 && other != idx {
		return false, fmt.Errorf("%s..%s: %w", in.Entry.StartDate, in.Entry.EndDate, ErrLeaveExists)
	}
	if w.LeaveHistory[idx] == in.Entry {
		return false, nil
	}
	w.LeaveHistory[idx] = in.Entry
	return true, nil
}
