package handler

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/site-roster/internal/core/persist"
	"github.com/ogurasousui/site-roster/internal/core/roster"
)

// UserIDMetadataKey は操作者のアカウント ID を運ぶメタデータのキーです。
const UserIDMetadataKey = "x-user-id"

// DefaultMoveTTL は確定も破棄もされない移動提案を保持する時間です。
const DefaultMoveTTL = 10 * time.Minute

type openMove struct {
	userID    string
	proposal  *roster.Proposal
	startedAt time.Time
}

// RosterGrpcHandler は roster サービスの gRPC ハンドラです。
// 開いている移動提案はユーザーごとに 1 件までで、DefaultMoveTTL を過ぎたものは次の BeginMove で破棄されます。
type RosterGrpcHandler struct {
	svc     roster.UseCase
	moves   *xsync.Map[string, *openMove]
	moveTTL time.Duration
	now     func() time.Time
	newID   func() string
}

// NewRosterGrpcHandler は RosterGrpcHandler を生成します。
func NewRosterGrpcHandler(svc roster.UseCase) *RosterGrpcHandler {
	return &RosterGrpcHandler{
		svc:     svc,
		moves:   xsync.NewMap[string, *openMove](),
		moveTTL: DefaultMoveTTL,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

var _ RosterServiceServer = (*RosterGrpcHandler)(nil)

func (h *RosterGrpcHandler) actor(ctx context.Context) (roster.Actor, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	var userID string
	if values := md.Get(UserIDMetadataKey); len(values) > 0 {
		userID = strings.TrimSpace(values[0])
	}
	if userID == "" {
		return roster.Actor{}, status.Error(codes.Unauthenticated, UserIDMetadataKey+" metadata is required")
	}
	actor, err := h.svc.ResolveActor(ctx, userID)
	if err != nil {
		return roster.Actor{}, status.Error(codes.Unauthenticated, err.Error())
	}
	return actor, nil
}

// mutation は操作者を解決して fn を実行し、更新後のスナップショットを返します。
func (h *RosterGrpcHandler) mutation(ctx context.Context, fn func(roster.Actor) error) (*structpb.Struct, error) {
	actor, err := h.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(actor); err != nil {
		return nil, toStatusError(err)
	}
	return h.snapshotResponse(ctx)
}

func (h *RosterGrpcHandler) snapshotResponse(ctx context.Context) (*structpb.Struct, error) {
	snap, err := toStruct(h.svc.Snapshot(ctx))
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"snapshot": structpb.NewStructValue(snap),
	}}, nil
}

// Assign は作業員を現場へ配属、または配属を解除します。
func (h *RosterGrpcHandler) Assign(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	return h.mutation(ctx, func(actor roster.Actor) error {
		return h.svc.Assign(ctx, actor, assignInput(f))
	})
}

// Reorder は名簿内で作業員を並べ替えます。
func (h *RosterGrpcHandler) Reorder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := reorderInput(fieldsOf(req))
	if err != nil {
		return nil, err
	}
	return h.mutation(ctx, func(actor roster.Actor) error {
		return h.svc.Reorder(ctx, actor, in)
	})
}

// Retract は作業員を名簿から外して待機に戻します。管理者のみ実行できます。
func (h *RosterGrpcHandler) Retract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	workerID := fieldsOf(req).str("workerId")
	return h.mutation(ctx, func(actor roster.Actor) error {
		if actor.Role != roster.RoleAdmin {
			return status.Error(codes.PermissionDenied, "retract requires the admin role")
		}
		return h.svc.Retract(ctx, workerID)
	})
}

// SetStatus は作業員の稼働状態を変更します。
func (h *RosterGrpcHandler) SetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	availability, err := roster.ParseAvailability(f.str("status"))
	if err != nil {
		return nil, toStatusError(err)
	}
	in := roster.SetStatusInput{WorkerID: f.str("workerId"), Status: availability}
	return h.mutation(ctx, func(actor roster.Actor) error {
		return h.svc.SetStatus(ctx, actor, in)
	})
}

// RecordAbsence は欠勤を記録します。記録者は操作者です。
func (h *RosterGrpcHandler) RecordAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	date, err := f.date("date")
	if err != nil {
		return nil, err
	}
	return h.mutation(ctx, func(actor roster.Actor) error {
		return h.svc.RecordAbsence(ctx, actor, roster.RecordAbsenceInput{
			WorkerID:   f.str("workerId"),
			Date:       date,
			Reason:     f.str("reason"),
			RecordedBy: actor.UserID,
		})
	})
}

// CancelAbsence は指定日の欠勤を取り消します。
func (h *RosterGrpcHandler) CancelAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	date, err := f.date("date")
	if err != nil {
		return nil, err
	}
	in := roster.CancelAbsenceInput{WorkerID: f.str("workerId"), Date: date}
	return h.mutation(ctx, func(actor roster.Actor) error {
		return h.svc.CancelAbsence(ctx, actor, in)
	})
}

// CancelLastAbsence は最後に追加された欠勤を取り消します。
func (h *RosterGrpcHandler) CancelLastAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	workerID := fieldsOf(req).str("workerId")
	return h.mutation(ctx, func(actor roster.Actor) error {
		return h.svc.CancelLastAbsence(ctx, actor, workerID)
	})
}

// DeleteAbsence は欠勤記録を削除します。
func (h *RosterGrpcHandler) DeleteAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	date, err := f.date("date")
	if err != nil {
		return nil, err
	}
	in := roster.DeleteAbsenceInput{WorkerID: f.str("workerId"), Date: date}
	return h.mutation(ctx, func(actor roster.Actor) error {
		return h.svc.DeleteAbsence(ctx, actor, in)
	})
}

// UpdateAbsence は欠勤記録の日付と理由を変更します。
func (h *RosterGrpcHandler) UpdateAbsence(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	oldDate, err := f.date("oldDate")
	if err != nil {
		return nil, err
	}
	newDate, err := f.date("newDate")
	if err != nil {
		return nil, err
	}
	in := roster.UpdateAbsenceInput{WorkerID: f.str("workerId"), OldDate: oldDate, NewDate: newDate, Reason: f.optStr("reason")}
	return h.mutation(ctx, func(actor roster.Actor) error {
		return h.svc.UpdateAbsence(ctx, actor, in)
	})
}

// RecordLeave は休暇を記録します。
func (h *RosterGrpcHandler) RecordLeave(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	entry, err := f.leaveEntry()
	if err != nil {
		return nil, err
	}
	in := roster.RecordLeaveInput{WorkerID: f.str("workerId"), Entry: entry}
	return h.mutation(ctx, func(actor roster.Actor) error {
		return h.svc.RecordLeave(ctx, actor, in)
	})
}

// DeleteLeave は休暇記録を削除します。
func (h *RosterGrpcHandler) DeleteLeave(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	start, err := f.date("startDate")
	if err != nil {
		return nil, err
	}
	end, err := f.date("endDate")
	if err != nil {
		return nil, err
	}
	in := roster.DeleteLeaveInput{WorkerID: f.str("workerId"), StartDate: start, EndDate: end}
	return h.mutation(ctx, func(actor roster.Actor) error {
		return h.svc.DeleteLeave(ctx, actor, in)
	})
}

// UpdateLeave は休暇記録を entry の内容で置き換えます。
func (h *RosterGrpcHandler) UpdateLeave(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	start, err := f.date("startDate")
	if err != nil {
		return nil, err
	}
	end, err := f.date("endDate")
	if err != nil {
		return nil, err
	}
	entry, err := f.object("entry").leaveEntry()
	if err != nil {
		return nil, err
	}
	in := roster.UpdateLeaveInput{WorkerID: f.str("workerId"), StartDate: start, EndDate: end, Entry: entry}
	return h.mutation(ctx, func(actor roster.Actor) error {
		return h.svc.UpdateLeave(ctx, actor, in)
	})
}

// BeginMove は移動提案を開始し、その ID を返します。
func (h *RosterGrpcHandler) BeginMove(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	actor, err := h.actor(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.svc.BeginMove(ctx, actor)
	if err != nil {
		return nil, toStatusError(err)
	}
	now := h.now()
	h.evictMoves(actor.UserID, now)
	id := h.newID()
	h.moves.Store(id, &openMove{userID: actor.UserID, proposal: p, startedAt: now})
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"proposalId": structpb.NewStringValue(id),
	}}, nil
}

// ProposeAssign は移動提案上で配属変更を試行し、プレビューを返します。
func (h *RosterGrpcHandler) ProposeAssign(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	move, err := h.openMove(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := move.proposal.Assign(assignInput(f)); err != nil {
		return nil, toStatusError(err)
	}
	return previewResponse(move.proposal)
}

// ProposeReorder は移動提案上で並べ替えを試行し、プレビューを返します。
func (h *RosterGrpcHandler) ProposeReorder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	move, err := h.openMove(ctx, f)
	if err != nil {
		return nil, err
	}
	in, err := reorderInput(f)
	if err != nil {
		return nil, err
	}
	if err := move.proposal.Reorder(in); err != nil {
		return nil, toStatusError(err)
	}
	return previewResponse(move.proposal)
}

// CommitMove は移動提案を正本へ反映します。
func (h *RosterGrpcHandler) CommitMove(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	move, err := h.openMove(ctx, f)
	if err != nil {
		return nil, err
	}
	h.moves.Delete(f.str("proposalId"))
	if err := h.svc.CommitMove(ctx, move.proposal); err != nil {
		return nil, toStatusError(err)
	}
	return h.snapshotResponse(ctx)
}

// CancelMove は移動提案を破棄します。
func (h *RosterGrpcHandler) CancelMove(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	move, err := h.openMove(ctx, f)
	if err != nil {
		return nil, err
	}
	h.moves.Delete(f.str("proposalId"))
	move.proposal.Cancel()
	return &structpb.Struct{}, nil
}

// evictMoves は userID の既存の提案と期限切れの提案を破棄します。
func (h *RosterGrpcHandler) evictMoves(userID string, now time.Time) {
	h.moves.Range(func(id string, move *openMove) bool {
		if move.userID == userID || now.Sub(move.startedAt) >= h.moveTTL {
			h.moves.Delete(id)
			move.proposal.Cancel()
		}
		return true
	})
}

func (h *RosterGrpcHandler) openMove(ctx context.Context, f fields) (*openMove, error) {
	actor, err := h.actor(ctx)
	if err != nil {
		return nil, err
	}
	id := f.str("proposalId")
	if id == "" {
		return nil, invalidArgument("proposalId is required")
	}
	move, ok := h.moves.Load(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "move proposal %s not found", id)
	}
	if move.userID != actor.UserID {
		return nil, status.Errorf(codes.PermissionDenied, "move proposal %s belongs to another user", id)
	}
	return move, nil
}

func previewResponse(p *roster.Proposal) (*structpb.Struct, error) {
	preview, err := toStruct(p.Preview())
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"preview": structpb.NewStructValue(preview),
		"steps":   structpb.NewNumberValue(float64(p.Steps())),
	}}, nil
}

// GetSnapshot は現在のスナップショットを返します。
func (h *RosterGrpcHandler) GetSnapshot(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := h.actor(ctx); err != nil {
		return nil, err
	}
	return h.snapshotResponse(ctx)
}

// ListPool は待機プールを返します。
func (h *RosterGrpcHandler) ListPool(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := h.actor(ctx); err != nil {
		return nil, err
	}
	f := fieldsOf(req)
	in := roster.PoolInput{Skill: f.str("skill")}
	if f.has("status") {
		availability, err := roster.ParseAvailability(f.str("status"))
		if err != nil {
			return nil, toStatusError(err)
		}
		in.Status = &availability
	}
	return toStruct(map[string]any{"workers": h.svc.Pool(ctx, in)})
}

// AbsenceReport は期間内の欠勤を作業員ごとに返します。
func (h *RosterGrpcHandler) AbsenceReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := h.actor(ctx); err != nil {
		return nil, err
	}
	f := fieldsOf(req)
	start, err := f.date("start")
	if err != nil {
		return nil, err
	}
	end, err := f.date("end")
	if err != nil {
		return nil, err
	}
	groups, err := h.svc.AbsencesBetween(ctx, start, end)
	if err != nil {
		return nil, toStatusError(err)
	}

	rows := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, map[string]any{
			"workerId":   g.WorkerID,
			"workerCode": g.WorkerCode,
			"workerName": g.WorkerName,
			"entries":    g.Entries,
		})
	}
	return toStruct(map[string]any{"workers": rows})
}

// LeaveBalance は年次休暇の残日数を返します。
func (h *RosterGrpcHandler) LeaveBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := h.actor(ctx); err != nil {
		return nil, err
	}
	f := fieldsOf(req)
	asOf, err := f.date("asOf")
	if err != nil {
		return nil, err
	}
	b, err := h.svc.LeaveBalance(ctx, f.str("workerId"), asOf)
	if err != nil {
		return nil, toStatusError(err)
	}
	return toStruct(map[string]any{
		"earned":    b.Earned,
		"consumed":  b.Consumed,
		"remaining": b.Remaining,
		"override":  b.Override,
	})
}

// EffectiveLeaveDays は期間と重なる休暇日数を返します。
func (h *RosterGrpcHandler) EffectiveLeaveDays(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := h.actor(ctx); err != nil {
		return nil, err
	}
	f := fieldsOf(req)
	start, err := f.date("queryStart")
	if err != nil {
		return nil, err
	}
	end, err := f.date("queryEnd")
	if err != nil {
		return nil, err
	}
	in := roster.EffectiveLeaveInput{WorkerID: f.str("workerId"), QueryStart: start, QueryEnd: end}
	for _, t := range f.strings("types") {
		in.Types = append(in.Types, roster.LeaveType(strings.ToLower(t)))
	}
	days, err := h.svc.EffectiveLeaveDays(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"days": structpb.NewNumberValue(float64(days)),
	}}, nil
}

// ExportSnapshot は現在のスナップショットを JSON 文書として返します。
func (h *RosterGrpcHandler) ExportSnapshot(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := h.actor(ctx); err != nil {
		return nil, err
	}
	doc, err := persist.Export(h.svc.Snapshot(ctx))
	if err != nil {
		return nil, toStatusError(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"document": structpb.NewStringValue(string(doc)),
	}}, nil
}

// ImportSnapshot は JSON 文書でスナップショット全体を置き換えます。
func (h *RosterGrpcHandler) ImportSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc := fieldsOf(req).str("document")
	if doc == "" {
		return nil, invalidArgument("document is required")
	}
	return h.mutation(ctx, func(actor roster.Actor) error {
		next, err := persist.Import([]byte(doc))
		if err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		return h.svc.Replace(ctx, actor, next)
	})
}

func assignInput(f fields) roster.AssignInput {
	return roster.AssignInput{
		WorkerID:       f.str("workerId"),
		TargetSiteID:   f.str("targetSiteId"),
		InsertBeforeID: f.str("insertBeforeId"),
	}
}

func reorderInput(f fields) (roster.ReorderInput, error) {
	idx, err := f.integer("targetIndex")
	if err != nil {
		return roster.ReorderInput{}, err
	}
	return roster.ReorderInput{SiteID: f.str("siteId"), WorkerID: f.str("workerId"), TargetIndex: idx}, nil
}
