package roster

import (
	"errors"
	"testing"
)

func TestStore_WithinReadWrite_RollsBackOnCorruption(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	store := NewStore(newFixtureSnapshot(), pub)
	before := mustJSON(t, store.Snapshot())

	err := store.WithinReadWrite(func(s *Snapshot) (bool, error) {
		// 片側だけのポインタ更新は整合性違反になる
		s.Worker("w1").AssignedSiteID = "siteA"
		return true, nil
	})
	if !errors.Is(err, ErrCorruption) {
		t.Fatalf("expected ErrCorruption, got %v", err)
	}
	if KindOf(err) != KindCorruption || KindOf(err).Recoverable() {
		t.Fatalf("corruption must be reported as non-recoverable, got %s", KindOf(err))
	}
	if after := mustJSON(t, store.Snapshot()); after != before {
		t.Fatalf("snapshot changed after rejected mutation")
	}
	if len(pub.published) != 0 {
		t.Fatalf("rejected mutation must not publish")
	}
}

func TestStore_WithinReadWrite_SkipsUnchanged(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	store := NewStore(newFixtureSnapshot(), pub)

	if err := store.WithinReadWrite(func(*Snapshot) (bool, error) { return false, nil }); err != nil {
		t.Fatalf("WithinReadWrite returned error: %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatalf("unchanged mutation must not publish")
	}
}

func TestStore_Replace(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	store := NewStore(nil, pub)

	bad := newFixtureSnapshot()
	bad.Sites[0].AssignedWorkerIDs = []string{"ghost"}
	if err := store.Replace(bad); !errors.Is(err, ErrCorruption) {
		t.Fatalf("expected ErrCorruption, got %v", err)
	}
	if got := store.Snapshot(); len(got.Workers) != 0 {
		t.Fatalf("invalid replace must keep the previous snapshot")
	}

	next := newFixtureSnapshot()
	if err := store.Replace(next); err != nil {
		t.Fatalf("Replace returned error: %v", err)
	}
	// 呼び出し側の値を後から変更しても保持中の状態には影響しない
	next.Workers[0].Name = "mutated"
	if got := store.Snapshot().Worker("w1").Name; got == "mutated" {
		t.Fatalf("store must own its snapshot")
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.published))
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Snapshot)
		ok     bool
	}{
		{name: "fixture", mutate: func(*Snapshot) {}, ok: true},
		{
			name: "assigned both ways",
			mutate: func(s *Snapshot) {
				w := s.Worker("w1")
				w.AssignedSiteID = "siteA"
				markWorking(w)
				s.Site("siteA").AssignedWorkerIDs = []string{"w1"}
			},
			ok: true,
		},
		{
			name: "listed twice",
			mutate: func(s *Snapshot) {
				w := s.Worker("w1")
				w.AssignedSiteID = "siteA"
				markWorking(w)
				s.Site("siteA").AssignedWorkerIDs = []string{"w1", "w1"}
			},
		},
		{
			name: "on two sites",
			mutate: func(s *Snapshot) {
				w := s.Worker("w1")
				w.AssignedSiteID = "siteA"
				markWorking(w)
				s.Site("siteA").AssignedWorkerIDs = []string{"w1"}
				s.Site("siteB").AssignedWorkerIDs = []string{"w1"}
			},
		},
		{
			name: "pending on roster",
			mutate: func(s *Snapshot) {
				s.Worker("w4").AssignedSiteID = "siteA"
				s.Site("siteA").AssignedWorkerIDs = []string{"w4"}
			},
		},
		{
			name: "assigned with status",
			mutate: func(s *Snapshot) {
				s.Worker("w1").AssignedSiteID = "siteA"
				s.Site("siteA").AssignedWorkerIDs = []string{"w1"}
			},
		},
		{
			name:   "unassigned without status",
			mutate: func(s *Snapshot) { markWorking(s.Worker("w1")) },
		},
		{
			name: "absent without timestamp",
			mutate: func(s *Snapshot) {
				w := s.Worker("w1")
				w.Availability = AvailabilityAbsent
				w.WaitingSince = nil
			},
		},
		{
			name:   "duplicate worker",
			mutate: func(s *Snapshot) { s.Workers = append(s.Workers, &Worker{ID: "w1", Availability: AvailabilityRest}) },
		},
		{
			name: "duplicate site",
			mutate: func(s *Snapshot) {
				s.Sites = append(s.Sites, &Site{ID: "siteA", Name: "Other A", AssignedWorkerIDs: []string{}})
			},
		},
	}

	for _, tc := range tests {
		snap := newFixtureSnapshot()
		tc.mutate(snap)
		err := Validate(snap)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrCorruption) {
			t.Fatalf("%s: expected ErrCorruption, got %v", tc.name, err)
		}
	}
}
