package roster

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
		err  bool
	}{
		{raw: "2024-03-01", want: "2024-03-01"},
		{raw: " 2024-12-31 ", want: "2024-12-31"},
		{raw: "2024-03-01T23:15:00Z", want: "2024-03-01"},
		{raw: "", err: true},
		{raw: "03/01/2024", err: true},
	}
	for _, tc := range tests {
		got, err := ParseDate(tc.raw)
		if tc.err {
			if !errors.Is(err, ErrInvalidDate) {
				t.Fatalf("ParseDate(%q): expected ErrInvalidDate, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDate(%q) returned error: %v", tc.raw, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseDate(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestWorker_UnmarshalLegacyAvailability(t *testing.T) {
	t.Parallel()

	raw := `{"id":"w9","code":9,"name":"Legacy","availabilityStatus":"available","hireDate":"2020-04-01",
		"absenceHistory":[{"date":"2024-01-02","reason":"sick"}]}`

	var w Worker
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Availability != AvailabilityWaiting {
		t.Fatalf("expected available to normalize to waiting, got %q", w.Availability)
	}
	if w.HireDate == nil || w.HireDate.String() != "2020-04-01" {
		t.Fatalf("unexpected hire date %v", w.HireDate)
	}
	if len(w.AbsenceHistory) != 1 || w.AbsenceHistory[0].Date.String() != "2024-01-02" {
		t.Fatalf("unexpected absence history %+v", w.AbsenceHistory)
	}

	out, err := json.Marshal(&w)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back["availabilityStatus"] != "waiting" {
		t.Fatalf("expected waiting on the wire, got %v", back["availabilityStatus"])
	}
}

func TestAvailability_UnmarshalRejectsUnknown(t *testing.T) {
	t.Parallel()

	var a Availability
	if err := json.Unmarshal([]byte(`"sleeping"`), &a); !errors.Is(err, ErrInvalidAvailability) {
		t.Fatalf("expected ErrInvalidAvailability, got %v", err)
	}
}

func TestLeaveEntry_Days(t *testing.T) {
	t.Parallel()

	e := LeaveEntry{StartDate: NewDate(2024, 2, 27), EndDate: NewDate(2024, 3, 1)}
	if got := e.Days(); got != 4 {
		t.Fatalf("expected 4 days across leap day, got %d", got)
	}
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	t.Parallel()

	snap := newFixtureSnapshot()
	snap.Worker("w1").AbsenceHistory = []AbsenceEntry{{Date: NewDate(2024, 1, 1)}}
	clone := snap.Clone()

	clone.Worker("w1").AbsenceHistory[0].Reason = "changed"
	*clone.Worker("w1").WaitingSince = clone.Worker("w1").WaitingSince.AddDate(1, 0, 0)
	clone.Site("siteA").AssignedWorkerIDs = append(clone.Site("siteA").AssignedWorkerIDs, "w1")
	clone.Users[0].Role = RoleViewer

	if mustJSON(t, snap) == mustJSON(t, clone) {
		t.Fatalf("clone shares state with the original")
	}
	if snap.Worker("w1").AbsenceHistory[0].Reason != "" || len(snap.Site("siteA").AssignedWorkerIDs) != 0 || snap.Users[0].Role != RoleAdmin {
		t.Fatalf("original mutated through clone")
	}
}
