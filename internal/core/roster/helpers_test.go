package roster

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type recordingPublisher struct {
	published []*Snapshot
}

func (p *recordingPublisher) Publish(s *Snapshot) {
	p.published = append(p.published, s)
}

var (
	adminActor      = Actor{UserID: "u-admin", Role: RoleAdmin}
	supervisorActor = Actor{UserID: "u-super", Role: RoleSupervisor}
	engineerActor   = Actor{UserID: "u-eng", Role: RoleEngineer, WorkerID: "e1"}
	viewerActor     = Actor{UserID: "u-view", Role: RoleViewer}
)

func newFixtureSnapshot() *Snapshot {
	since := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	waiting := func(id string, code int) *Worker {
		ts := since
		return &Worker{
			ID:           id,
			Code:         code,
			Name:         "Worker " + id,
			Availability: AvailabilityWaiting,
			WaitingSince: &ts,
			Status:       WorkerStatusActive,
		}
	}

	e1 := waiting("e1", 10)
	e1.IsEngineer = true
	e2 := waiting("e2", 11)
	e2.IsEngineer = true

	return &Snapshot{
		Workers: []*Worker{
			waiting("w1", 1),
			waiting("w2", 2),
			waiting("w3", 3),
			{ID: "w4", Code: 4, Name: "Worker w4", Status: WorkerStatusPending},
			e1,
			e2,
		},
		Sites: []*Site{
			{ID: "siteA", Name: "Site A", Status: SiteStatusActive, AssignedWorkerIDs: []string{}, EngineerID: "e1"},
			{ID: "siteB", Name: "Site B", Status: SiteStatusActive, AssignedWorkerIDs: []string{}, EngineerID: "e2"},
		},
		Users: []*Account{
			{ID: "u-admin", Username: "admin", Role: RoleAdmin},
			{ID: "u-super", Username: "supervisor", Role: RoleSupervisor},
			{ID: "u-eng", Username: "engineer one", Role: RoleEngineer, WorkerID: "e1"},
			{ID: "u-view", Username: "viewer", Role: RoleViewer},
		},
		Skills: []string{"mason"},
	}
}

func newTestService(t *testing.T) (*Service, *stubClock, *recordingPublisher) {
	t.Helper()

	clk := &stubClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	pub := &recordingPublisher{}
	store := NewStore(newFixtureSnapshot(), pub)
	return NewService(store, clk, nil), clk, pub
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func mustDate(t *testing.T, raw string) Date {
	t.Helper()

	d, err := ParseDate(raw)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", raw, err)
	}
	return d
}

func rosterOf(t *testing.T, svc *Service, siteID string) []string {
	t.Helper()

	site := svc.Snapshot(context.Background()).Site(siteID)
	if site == nil {
		t.Fatalf("site %s not found", siteID)
	}
	return site.AssignedWorkerIDs
}

func workerOf(t *testing.T, svc *Service, workerID string) *Worker {
	t.Helper()

	w := svc.Snapshot(context.Background()).Worker(workerID)
	if w == nil {
		t.Fatalf("worker %s not found", workerID)
	}
	return w
}
