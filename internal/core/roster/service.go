package roster

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// MutationObserver は変更操作の結果を受け取ります。メトリクス収集に利用します。
type MutationObserver interface {
	ObserveMutation(op string, kind Kind, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveMutation(string, Kind, error) {}

// Service は配属・稼働状態・欠勤・休暇に関するユースケースをまとめます。
type Service struct {
	store    *Store
	clock    Clock
	observer MutationObserver
}

// UseCase は Service の公開インターフェースです。
type UseCase interface {
	ResolveActor(ctx context.Context, userID string) (Actor, error)
	Assign(ctx context.Context, actor Actor, in AssignInput) error
	Reorder(ctx context.Context, actor Actor, in ReorderInput) error
	Retract(ctx context.Context, workerID string) error
	SetStatus(ctx context.Context, actor Actor, in SetStatusInput) error
	RecordAbsence(ctx context.Context, actor Actor, in RecordAbsenceInput) error
	CancelAbsence(ctx context.Context, actor Actor, in CancelAbsenceInput) error
	CancelLastAbsence(ctx context.Context, actor Actor, workerID string) error
	DeleteAbsence(ctx context.Context, actor Actor, in DeleteAbsenceInput) error
	UpdateAbsence(ctx context.Context, actor Actor, in UpdateAbsenceInput) error
	RecordLeave(ctx context.Context, actor Actor, in RecordLeaveInput) error
	DeleteLeave(ctx context.Context, actor Actor, in DeleteLeaveInput) error
	UpdateLeave(ctx context.Context, actor Actor, in UpdateLeaveInput) error
	BeginMove(ctx context.Context, actor Actor) (*Proposal, error)
	CommitMove(ctx context.Context, p *Proposal) error
	Replace(ctx context.Context, actor Actor, next *Snapshot) error
	Snapshot(ctx context.Context) *Snapshot
	Pool(ctx context.Context, in PoolInput) []*Worker
	AbsencesBetween(ctx context.Context, start, end Date) ([]WorkerAbsences, error)
	LeaveBalance(ctx context.Context, workerID string, asOf Date) (LeaveBalance, error)
	EffectiveLeaveDays(ctx context.Context, in EffectiveLeaveInput) (int, error)
}

// NewService は Service を生成します。
func NewService(store *Store, clock Clock, observer MutationObserver) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Service{store: store, clock: clock, observer: observer}
}

// AssignInput は配属変更の入力です。TargetSiteID が空の場合はプールへ戻します。
type AssignInput struct {
	WorkerID       string
	TargetSiteID   string
	InsertBeforeID string
}

// ReorderInput は名簿内の並べ替えの入力です。
type ReorderInput struct {
	SiteID      string
	WorkerID    string
	TargetIndex int
}

// SetStatusInput は稼働状態変更の入力です。
type SetStatusInput struct {
	WorkerID string
	Status   Availability
}

// RecordAbsenceInput は欠勤記録の入力です。
type RecordAbsenceInput struct {
	WorkerID   string
	Date       Date
	Reason     string
	RecordedBy string
}

// CancelAbsenceInput は日付指定の欠勤取り消しの入力です。
type CancelAbsenceInput struct {
	WorkerID string
	Date     Date
}

// DeleteAbsenceInput は欠勤記録削除の入力です。
type DeleteAbsenceInput struct {
	WorkerID string
	Date     Date
}

// UpdateAbsenceInput は欠勤記録更新の入力です。Reason が nil の場合は理由を変更しません。
type UpdateAbsenceInput struct {
	WorkerID string
	OldDate  Date
	NewDate  Date
	Reason   *string
}

// RecordLeaveInput は休暇記録の入力です。
type RecordLeaveInput struct {
	WorkerID string
	Entry    LeaveEntry
}

// DeleteLeaveInput は休暇記録削除の入力です。
type DeleteLeaveInput struct {
	WorkerID  string
	StartDate Date
	EndDate   Date
}

// UpdateLeaveInput は休暇記録更新の入力です。(StartDate, EndDate) が一致する記録を Entry で置き換えます。
type UpdateLeaveInput struct {
	WorkerID  string
	StartDate Date
	EndDate   Date
	Entry     LeaveEntry
}

// PoolInput は待機プールの検索条件です。
type PoolInput struct {
	Status *Availability
	Skill  string
}

// EffectiveLeaveInput は期間内の休暇日数集計の入力です。
type EffectiveLeaveInput struct {
	WorkerID   string
	QueryStart Date
	QueryEnd   Date
	Types      []LeaveType
}

// ResolveActor はアカウント ID から操作者を解決します。
func (s *Service) ResolveActor(_ context.Context, userID string) (Actor, error) {
	var actor Actor
	err := s.store.WithinReadOnly(func(snap *Snapshot) error {
		resolved, err := ResolveActor(snap, userID)
		if err != nil {
			return err
		}
		actor = resolved
		return nil
	})
	return actor, err
}

// Assign は作業員を現場またはプールへ移動します。
func (s *Service) Assign(_ context.Context, actor Actor, in AssignInput) error {
	in.WorkerID = strings.TrimSpace(in.WorkerID)
	in.TargetSiteID = strings.TrimSpace(in.TargetSiteID)
	in.InsertBeforeID = strings.TrimSpace(in.InsertBeforeID)
	if in.WorkerID == "" {
		return fmt.Errorf("worker id: %w", ErrInvalidID)
	}
	now := s.clock.Now()
	return s.mutate("assign", func(snap *Snapshot) (bool, error) {
		return applyAssign(snap, actor, in, now)
	})
}

// Reorder は名簿内で作業員の位置を変更します。
func (s *Service) Reorder(_ context.Context, actor Actor, in ReorderInput) error {
	in.SiteID = strings.TrimSpace(in.SiteID)
	in.WorkerID = strings.TrimSpace(in.WorkerID)
	if in.SiteID == "" {
		return fmt.Errorf("site id: %w", ErrInvalidID)
	}
	if in.WorkerID == "" {
		return fmt.Errorf("worker id: %w", ErrInvalidID)
	}
	return s.mutate("reorder", func(snap *Snapshot) (bool, error) {
		return applyReorder(snap, actor, in)
	})
}

// Retract は外部で削除される作業員をすべての名簿から外します。システム操作のため権限検証は行いません。
func (s *Service) Retract(_ context.Context, workerID string) error {
	if strings.TrimSpace(workerID) == "" {
		return fmt.Errorf("worker id: %w", ErrInvalidID)
	}
	return s.mutate("retract", func(snap *Snapshot) (bool, error) {
		return applyRetract(snap, workerID)
	})
}

// SetStatus は作業員の稼働状態を変更します。
func (s *Service) SetStatus(_ context.Context, actor Actor, in SetStatusInput) error {
	now := s.clock.Now()
	return s.mutate("set_status", func(snap *Snapshot) (bool, error) {
		return applySetStatus(snap, actor, in, now)
	})
}

// RecordAbsence は欠勤を記録します。
func (s *Service) RecordAbsence(_ context.Context, actor Actor, in RecordAbsenceInput) error {
	now := s.clock.Now()
	return s.mutate("record_absence", func(snap *Snapshot) (bool, error) {
		return applyRecordAbsence(snap, actor, in, now)
	})
}

// CancelAbsence は指定日付の欠勤を取り消します。
func (s *Service) CancelAbsence(_ context.Context, actor Actor, in CancelAbsenceInput) error {
	now := s.clock.Now()
	return s.mutate("cancel_absence", func(snap *Snapshot) (bool, error) {
		return applyCancelAbsence(snap, actor, in, now)
	})
}

// CancelLastAbsence は最後に追加された欠勤を取り消す簡易操作です。
func (s *Service) CancelLastAbsence(_ context.Context, actor Actor, workerID string) error {
	now := s.clock.Now()
	return s.mutate("cancel_last_absence", func(snap *Snapshot) (bool, error) {
		return applyCancelLastAbsence(snap, actor, workerID, now)
	})
}

// DeleteAbsence は欠勤記録を削除します。
func (s *Service) DeleteAbsence(_ context.Context, actor Actor, in DeleteAbsenceInput) error {
	return s.mutate("delete_absence", func(snap *Snapshot) (bool, error) {
		return applyDeleteAbsence(snap, actor, in)
	})
}

// UpdateAbsence は欠勤記録を更新します。
func (s *Service) UpdateAbsence(_ context.Context, actor Actor, in UpdateAbsenceInput) error {
	return s.mutate("update_absence", func(snap *Snapshot) (bool, error) {
		return applyUpdateAbsence(snap, actor, in)
	})
}

// RecordLeave は休暇を記録します。
func (s *Service) RecordLeave(_ context.Context, actor Actor, in RecordLeaveInput) error {
	now := s.clock.Now()
	return s.mutate("record_leave", func(snap *Snapshot) (bool, error) {
		return applyRecordLeave(snap, actor, in, now)
	})
}

// DeleteLeave は休暇記録を削除します。
func (s *Service) DeleteLeave(_ context.Context, actor Actor, in DeleteLeaveInput) error {
	return s.mutate("delete_leave", func(snap *Snapshot) (bool, error) {
		return applyDeleteLeave(snap, actor, in)
	})
}

// UpdateLeave は休暇記録を更新します。
func (s *Service) UpdateLeave(_ context.Context, actor Actor, in UpdateLeaveInput) error {
	return s.mutate("update_leave", func(snap *Snapshot) (bool, error) {
		return applyUpdateLeave(snap, actor, in)
	})
}

// Replace はスナップショット全体を置き換えます (管理者によるインポート)。
func (s *Service) Replace(_ context.Context, actor Actor, next *Snapshot) error {
	err := authorizeReplace(actor)
	if err == nil {
		err = s.store.Replace(next)
	}
	s.observer.ObserveMutation("replace", KindOf(err), err)
	return err
}

// Snapshot は現在のスナップショットの複製を返します。
func (s *Service) Snapshot(_ context.Context) *Snapshot {
	return s.store.Snapshot()
}

// Pool は未配属かつ承認済みの作業員を待機開始が古い順に返します。
func (s *Service) Pool(_ context.Context, in PoolInput) []*Worker {
	var out []*Worker
	_ = s.store.WithinReadOnly(func(snap *Snapshot) error {
		out = PoolOf(snap, in)
		return nil
	})
	return out
}

// AbsencesBetween は期間内の欠勤を作業員ごとに返します。
func (s *Service) AbsencesBetween(_ context.Context, start, end Date) ([]WorkerAbsences, error) {
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}
	var out []WorkerAbsences
	_ = s.store.WithinReadOnly(func(snap *Snapshot) error {
		out = AbsencesBetween(snap, start, end)
		return nil
	})
	return out, nil
}

// LeaveBalance は作業員の年次休暇残日数を返します。
func (s *Service) LeaveBalance(_ context.Context, workerID string, asOf Date) (LeaveBalance, error) {
	var balance LeaveBalance
	err := s.store.WithinReadOnly(func(snap *Snapshot) error {
		w := snap.Worker(workerID)
		if w == nil {
			return ErrWorkerNotFound
		}
		balance = BalanceOf(w, asOf)
		return nil
	})
	return balance, err
}

// EffectiveLeaveDays は期間と重なる休暇日数を返します。
func (s *Service) EffectiveLeaveDays(_ context.Context, in EffectiveLeaveInput) (int, error) {
	if in.QueryEnd.Before(in.QueryStart) {
		return 0, ErrInvalidDateRange
	}
	var days int
	err := s.store.WithinReadOnly(func(snap *Snapshot) error {
		w := snap.Worker(in.WorkerID)
		if w == nil {
			return ErrWorkerNotFound
		}
		days = EffectiveLeaveDays(w.LeaveHistory, in.QueryStart, in.QueryEnd, in.Types...)
		return nil
	})
	return days, err
}

func (s *Service) mutate(op string, fn func(*Snapshot) (bool, error)) error {
	err := s.store.WithinReadWrite(fn)
	s.observer.ObserveMutation(op, KindOf(err), err)
	return err
}

// PoolOf はスナップショットから待機プールを抽出します。
func PoolOf(snap *Snapshot, in PoolInput) []*Worker {
	var out []*Worker
	for _, w := range snap.Workers {
		if w.IsAssigned() || w.IsPending() {
			continue
		}
		if in.Status != nil && w.Availability != *in.Status {
			continue
		}
		if in.Skill != "" && !strings.EqualFold(w.Skill, in.Skill) {
			continue
		}
		out = append(out, cloneWorker(w))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].WaitingSince, out[j].WaitingSince
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].Code < out[j].Code
	})
	return out
}
