package persist

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/ogurasousui/site-roster/internal/core/roster"
)

// DefaultSkills は新規環境で用意される職種の一覧です。
var DefaultSkills = []string{"general", "mason", "carpenter", "electrician", "plumber", "welder", "scaffolder"}

// Defaults は保存先から何も読み込めなかった場合の初期スナップショットを返します。
func Defaults() *roster.Snapshot {
	return &roster.Snapshot{
		Workers: []*roster.Worker{},
		Sites:   []*roster.Site{},
		Users: []*roster.Account{
			{ID: "admin", Username: "admin", Role: roster.RoleAdmin},
		},
		Skills:        slices.Clone(DefaultSkills),
		Notifications: []json.RawMessage{},
	}
}

// Report は Normalize が行った補正の件数です。
type Report struct {
	DuplicateAbsences int
	StatusFilled      int
	StatusCleared     int
	RosterEntries     int
}

// Total は補正件数の合計を返します。
func (r Report) Total() int {
	return r.DuplicateAbsences + r.StatusFilled + r.StatusCleared + r.RosterEntries
}

// Normalize は保存された文書を初期値の上に重ね、取り込み可能な形に補正します。
func Normalize(doc []byte) (*roster.Snapshot, Report, error) {
	var snap roster.Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return nil, Report{}, fmt.Errorf("persist: decode snapshot: %w", err)
	}
	report := normalizeSnapshot(&snap)
	return &snap, report, nil
}

func normalizeSnapshot(s *roster.Snapshot) Report {
	defaults := Defaults()
	if s.Workers == nil {
		s.Workers = defaults.Workers
	}
	if s.Sites == nil {
		s.Sites = defaults.Sites
	}
	s.Users = slices.DeleteFunc(s.Users, func(u *roster.Account) bool { return u == nil })
	if len(s.Users) == 0 {
		s.Users = defaults.Users
	}
	if len(s.Skills) == 0 {
		s.Skills = defaults.Skills
	}
	if s.Notifications == nil {
		s.Notifications = defaults.Notifications
	}
	s.Workers = slices.DeleteFunc(s.Workers, func(w *roster.Worker) bool { return w == nil })
	s.Sites = slices.DeleteFunc(s.Sites, func(site *roster.Site) bool { return site == nil })

	var report Report
	for _, w := range s.Workers {
		report.DuplicateAbsences += dedupeAbsences(w)
	}
	report.RosterEntries = reconcileRosters(s)
	for _, w := range s.Workers {
		filled, cleared := normalizeAvailability(w)
		report.StatusFilled += filled
		report.StatusCleared += cleared
	}
	return report
}

// dedupeAbsences は同じ日付の欠勤記録を最初の 1 件だけ残して取り除きます。
func dedupeAbsences(w *roster.Worker) int {
	seen := make(map[string]struct{}, len(w.AbsenceHistory))
	before := len(w.AbsenceHistory)
	w.AbsenceHistory = slices.DeleteFunc(w.AbsenceHistory, func(e roster.AbsenceEntry) bool {
		key := e.Date.String()
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		return false
	})
	return before - len(w.AbsenceHistory)
}

// reconcileRosters は名簿と作業員の配属ポインタの食い違いを名簿側を正として解消します。
func reconcileRosters(s *roster.Snapshot) int {
	fixed := 0
	holder := make(map[string]string, len(s.Workers))
	for _, site := range s.Sites {
		if site.AssignedWorkerIDs == nil {
			site.AssignedWorkerIDs = []string{}
		}
		kept := site.AssignedWorkerIDs[:0]
		for _, id := range site.AssignedWorkerIDs {
			w := s.Worker(id)
			_, taken := holder[id]
			if w == nil || w.IsPending() || taken {
				fixed++
				continue
			}
			holder[id] = site.ID
			kept = append(kept, id)
		}
		site.AssignedWorkerIDs = kept
	}

	for _, w := range s.Workers {
		siteID, listed := holder[w.ID]
		switch {
		case listed && w.AssignedSiteID != siteID:
			w.AssignedSiteID = siteID
			fixed++
		case !listed && w.AssignedSiteID != "":
			w.AssignedSiteID = ""
			fixed++
		}
	}
	return fixed
}

// normalizeAvailability は配属状態と稼働状態の排他性を補正します。
func normalizeAvailability(w *roster.Worker) (filled, cleared int) {
	if w.IsAssigned() {
		if w.Availability != roster.AvailabilityNone || w.WaitingSince != nil || w.AbsentSince != nil {
			w.Availability = roster.AvailabilityNone
			w.WaitingSince = nil
			w.AbsentSince = nil
			cleared = 1
		}
		return filled, cleared
	}

	if w.Availability == roster.AvailabilityNone && !w.IsPending() {
		w.Availability = roster.AvailabilityWaiting
		filled = 1
	}
	if w.Availability != roster.AvailabilityAbsent && w.AbsentSince != nil {
		w.AbsentSince = nil
		cleared = 1
	}
	if w.Availability == roster.AvailabilityAbsent && w.AbsentSince == nil {
		if n := len(w.AbsenceHistory); n > 0 {
			since := w.AbsenceHistory[n-1].Date.Time
			w.AbsentSince = &since
		} else {
			w.Availability = roster.AvailabilityWaiting
		}
		filled = 1
	}
	return filled, cleared
}

// Export はスナップショットを保存用の JSON 文書に変換します。
func Export(s *roster.Snapshot) ([]byte, error) {
	doc, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("persist: encode snapshot: %w", err)
	}
	return doc, nil
}

// Import は運用者が持ち込んだ JSON 文書を補正・検証してスナップショットに変換します。
// 補正後も整合性を満たさない場合は roster.ErrCorruption を返します。
func Import(doc []byte) (*roster.Snapshot, error) {
	snap, _, err := Normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", roster.ErrCorruption, err)
	}
	if err := roster.Validate(snap); err != nil {
		return nil, err
	}
	return snap, nil
}
