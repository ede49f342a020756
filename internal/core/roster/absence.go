package roster

import (
	"fmt"
	"slices"
	"time"
)

func absenceIndex(history []AbsenceEntry, date Date) int {
	return slices.IndexFunc(history, func(e AbsenceEntry) bool { return e.Date.Equal(date) })
}

// applyRecordAbsence は欠勤を記録します。同一日付の記録が既にあれば履歴は変更しません。
// 未配属の作業員は absent へ遷移し、配属中の作業員は履歴のみ記録されます。
func applyRecordAbsence(s *Snapshot, actor Actor, in RecordAbsenceInput, now time.Time) (bool, error) {
	if in.Date.IsZero() {
		return false, ErrInvalidDate
	}
	w, err := eligibleWorker(s, in.WorkerID)
	if err != nil {
		return false, err
	}
	if err := authorizeWorkerChange(s, actor, w); err != nil {
		return false, err
	}

	changed := false
	if absenceIndex(w.AbsenceHistory, in.Date) < 0 {
		w.AbsenceHistory = append(w.AbsenceHistory, AbsenceEntry{
			Date:       in.Date,
			Reason:     in.Reason,
			RecordedBy: in.RecordedBy,
		})
		changed = true
	}
	if !w.IsAssigned() && setAvailability(w, AvailabilityAbsent, now) {
		changed = true
	}
	return changed, nil
}

// applyCancelAbsence は指定日付の欠勤記録を取り消し、稼働状態を戻します。
func applyCancelAbsence(s *Snapshot, actor Actor, in CancelAbsenceInput, now time.Time) (bool, error) {
	w, err := eligibleWorker(s, in.WorkerID)
	if err != nil {
		return false, err
	}
	if err := authorizeWorkerChange(s, actor, w); err != nil {
		return false, err
	}

	idx := absenceIndex(w.AbsenceHistory, in.Date)
	if idx < 0 {
		return false, fmt.Errorf("%s: %w", in.Date, ErrAbsenceNotFound)
	}
	w.AbsenceHistory = slices.Delete(w.AbsenceHistory, idx, idx+1)
	restoreAfterAbsence(w, now)
	return true, nil
}

// applyCancelLastAbsence は最後に追加された欠勤記録を日付に関係なく取り消します。
func applyCancelLastAbsence(s *Snapshot, actor Actor, workerID string, now time.Time) (bool, error) {
	w, err := eligibleWorker(s, workerID)
	if err != nil {
		return false, err
	}
	if err := authorizeWorkerChange(s, actor, w); err != nil {
		return false, err
	}
	if len(w.AbsenceHistory) == 0 {
		return false, ErrAbsenceNotFound
	}

	w.AbsenceHistory = w.AbsenceHistory[:len(w.AbsenceHistory)-1]
	restoreAfterAbsence(w, now)
	return true, nil
}

func restoreAfterAbsence(w *Worker, now time.Time) {
	if w.IsAssigned() {
		markWorking(w)
		return
	}
	setAvailability(w, AvailabilityWaiting, now)
}

// applyDeleteAbsence は指定日付の欠勤記録のみを削除します。稼働状態は変更しません。
func applyDeleteAbsence(s *Snapshot, actor Actor, in DeleteAbsenceInput) (bool, error) {
	w, err := eligibleWorker(s, in.WorkerID)
	if err != nil {
		return false, err
	}
	if err := authorizeWorkerChange(s, actor, w); err != nil {
		return false, err
	}

	idx := absenceIndex(w.AbsenceHistory, in.Date)
	if idx < 0 {
		return false, fmt.Errorf("%s: %w", in.Date, ErrAbsenceNotFound)
	}
	w.AbsenceHistory = slices.Delete(w.AbsenceHistory, idx, idx+1)
	return true, nil
}

// applyUpdateAbsence は欠勤記録の日付と理由を変更します。欠勤中であれば absentSince も新しい日付に合わせます。
func applyUpdateAbsence(s *Snapshot, actor Actor, in UpdateAbsenceInput) (bool, error) {
	if in.NewDate.IsZero() {
		return false, ErrInvalidDate
	}
	w, err := eligibleWorker(s, in.WorkerID)
	if err != nil {
		return false, err
	}
	if err := authorizeWorkerChange(s, actor, w); err != nil {
		return false, err
	}

	idx := absenceIndex(w.AbsenceHistory, in.OldDate)
	if idx < 0 {
		return false, fmt.Errorf("%s: %w", in.OldDate, ErrAbsenceNotFound)
	}
	if !in.NewDate.Equal(in.OldDate) && absenceIndex(w.AbsenceHistory, in.NewDate) >= 0 {
		return false, fmt.Errorf("%s: %w", in.NewDate, ErrAbsenceExists)
	}

	entry := &w.AbsenceHistory[idx]
	entry.Date = in.NewDate
	if in.Reason != nil {
		entry.Reason = *in.Reason
	}
	if w.Availability == AvailabilityAbsent {
		since := in.NewDate.Time
		w.AbsentSince = &since
	}
	return true, nil
}

// WorkerAbsences は作業員ごとにまとめた欠勤記録です。
type WorkerAbsences struct {
	WorkerID   string
	WorkerCode int
	WorkerName string
	Entries    []AbsenceEntry
}

// AbsencesBetween は日付が [start, end] に含まれる欠勤を作業員ごとに返します。読み取り専用です。
func AbsencesBetween(s *Snapshot, start, end Date) []WorkerAbsences {
	var out []WorkerAbsences
	for _, w := range s.Workers {
		var entries []AbsenceEntry
		for _, e := range w.AbsenceHistory {
			if e.Date.Before(start) || e.Date.After(end) {
				continue
			}
			entries = append(entries, e)
		}
		if len(entries) == 0 {
			continue
		}
		out = append(out, WorkerAbsences{
			WorkerID:   w.ID,
			WorkerCode: w.Code,
			WorkerName: w.Name,
			Entries:    entries,
		})
	}
	return out
}
