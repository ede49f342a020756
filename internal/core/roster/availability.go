package roster

import "time"

// setAvailability は未配属の作業員の稼働状態を target へ遷移させます。
// 既に target であれば何もしません (元のタイムスタンプを保持します)。
func setAvailability(w *Worker, target Availability, now time.Time) bool {
	if w.Availability == target {
		return false
	}

	if target == AvailabilityWaiting {
		w.WaitingSince = &now
	} else {
		w.WaitingSince = nil
	}

	if target == AvailabilityAbsent {
		if w.AbsentSince == nil {
			w.AbsentSince = &now
		}
	} else {
		w.AbsentSince = nil
	}

	w.Availability = target
	return true
}

// markWorking は配属に伴い稼働状態とタイムスタンプを消去します。
func markWorking(w *Worker) {
	w.Availability = AvailabilityNone
	w.WaitingSince = nil
	w.AbsentSince = nil
}

// markUnassigned は配属解除に伴い待機状態へ戻します。
func markUnassigned(w *Worker, now time.Time) {
	w.Availability = AvailabilityWaiting
	w.WaitingSince = &now
	w.AbsentSince = nil
}

// applySetStatus は稼働状態の変更を適用します。配属中の作業員は名簿から外してから遷移させます。
func applySetStatus(s *Snapshot, actor Actor, in SetStatusInput, now time.Time) (bool, error) {
	if in.Status == AvailabilityNone {
		return false, ErrInvalidAvailability
	}

	w, err := eligibleWorker(s, in.WorkerID)
	if err != nil {
		return false, err
	}
	if err := authorizeWorkerChange(s, actor, w); err != nil {
		return false, err
	}

	if w.IsAssigned() {
		releaseFromSite(s, w)
		markWorking(w)
	}
	return setAvailability(w, in.Status, now), nil
}

// eligibleWorker は状態遷移の対象にできる作業員を返します。
func eligibleWorker(s *Snapshot, workerID string) (*Worker, error) {
	w := s.Worker(workerID)
	if w == nil {
		return nil, ErrWorkerNotFound
	}
	if w.IsPending() {
		return nil, ErrWorkerPending
	}
	return w, nil
}
