package roster

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestService_SetStatus(t *testing.T) {
	t.Parallel()

	svc, clk, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SetStatus(ctx, supervisorActor, SetStatusInput{WorkerID: "w1", Status: AvailabilityRest}); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}
	w := workerOf(t, svc, "w1")
	if w.Availability != AvailabilityRest || w.WaitingSince != nil || w.AbsentSince != nil {
		t.Fatalf("unexpected rest state: %+v", w)
	}

	clk.now = clk.now.Add(2 * time.Hour)
	if err := svc.SetStatus(ctx, supervisorActor, SetStatusInput{WorkerID: "w1", Status: AvailabilityWaiting}); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}
	w = workerOf(t, svc, "w1")
	if w.WaitingSince == nil || !w.WaitingSince.Equal(clk.now) {
		t.Fatalf("expected waitingSince %v, got %v", clk.now, w.WaitingSince)
	}

	// 同じ状態への遷移はタイムスタンプを変更しない
	stamped := *w.WaitingSince
	clk.now = clk.now.Add(time.Hour)
	if err := svc.SetStatus(ctx, supervisorActor, SetStatusInput{WorkerID: "w1", Status: AvailabilityWaiting}); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}
	if got := workerOf(t, svc, "w1").WaitingSince; !got.Equal(stamped) {
		t.Fatalf("waitingSince changed on idempotent transition: %v", got)
	}
}

func TestService_SetStatus_ReleasesAssignedWorker(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Assign(ctx, adminActor, AssignInput{WorkerID: "w1", TargetSiteID: "siteA"}); err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}
	if err := svc.SetStatus(ctx, adminActor, SetStatusInput{WorkerID: "w1", Status: AvailabilityAbsent}); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}

	if got := rosterOf(t, svc, "siteA"); len(got) != 0 {
		t.Fatalf("expected worker released, got %v", got)
	}
	w := workerOf(t, svc, "w1")
	if w.AssignedSiteID != "" || w.Availability != AvailabilityAbsent || w.AbsentSince == nil {
		t.Fatalf("unexpected state: %+v", w)
	}
}

func TestService_SetStatus_Errors(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor Actor
		in    SetStatusInput
		want  error
	}{
		{name: "none status", actor: adminActor, in: SetStatusInput{WorkerID: "w1"}, want: ErrInvalidAvailability},
		{name: "unknown worker", actor: adminActor, in: SetStatusInput{WorkerID: "ghost", Status: AvailabilityRest}, want: ErrWorkerNotFound},
		{name: "engineer on pool worker", actor: engineerActor, in: SetStatusInput{WorkerID: "w1", Status: AvailabilityRest}, want: nil},
	}
	for _, tc := range tests {
		err := svc.SetStatus(ctx, tc.actor, tc.in)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if err := svc.Assign(ctx, adminActor, AssignInput{WorkerID: "w2", TargetSiteID: "siteB"}); err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}
	if err := svc.SetStatus(ctx, engineerActor, SetStatusInput{WorkerID: "w2", Status: AvailabilityRest}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected engineer to be forbidden on foreign site worker, got %v", err)
	}
}

func TestService_Pool(t *testing.T) {
	t.Parallel()

	svc, clk, _ := newTestService(t)
	ctx := context.Background()

	// w3 を先に rest → waiting に戻すと待機開始が最も新しくなる
	if err := svc.SetStatus(ctx, adminActor, SetStatusInput{WorkerID: "w3", Status: AvailabilityRest}); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}
	clk.now = clk.now.Add(time.Hour)
	if err := svc.SetStatus(ctx, adminActor, SetStatusInput{WorkerID: "w3", Status: AvailabilityWaiting}); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}
	if err := svc.Assign(ctx, adminActor, AssignInput{WorkerID: "w1", TargetSiteID: "siteA"}); err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}

	pool := svc.Pool(ctx, PoolInput{})
	var ids []string
	for _, w := range pool {
		ids = append(ids, w.ID)
	}
	want := []string{"w2", "e1", "e2", "w3"}
	if len(ids) != len(want) {
		t.Fatalf("expected pool %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected pool %v, got %v", want, ids)
		}
	}

	rest := AvailabilityRest
	if got := svc.Pool(ctx, PoolInput{Status: &rest}); len(got) != 0 {
		t.Fatalf("expected no resting workers, got %d", len(got))
	}
}
