package roster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date は UTC 0 時に正規化された暦日を表します。
type Date struct {
	time.Time
}

// NewDate は年月日から Date を生成します。
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf は時刻をその暦日に切り詰めます。
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate は YYYY-MM-DD もしくは RFC3339 形式の文字列を Date に変換します。
func ParseDate(raw string) (Date, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.ParseInLocation(dateLayout, trimmed, time.UTC); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return Date{}, fmt.Errorf("%q: %w", raw, ErrInvalidDate)
	}
	return DateOf(t), nil
}

// String は YYYY-MM-DD 形式の文字列を返します。
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Equal は暦日として等しいかを判定します。
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// Before は d が other より前の暦日かを判定します。
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After は d が other より後の暦日かを判定します。
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// DaysUntil は d から other までの日数 (other - d) を返します。
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Availability は未配属の作業員の稼働状態です。空文字は「配属中」を意味します。
type Availability string

const (
	AvailabilityNone    Availability = ""
	AvailabilityWaiting Availability = "waiting"
	AvailabilityAbsent  Availability = "absent"
	AvailabilityRest    Availability = "rest"

	// legacyAvailable は waiting の旧表記です。取り込み時に waiting へ正規化されます。
	legacyAvailable = "available"
)

// ParseAvailability は文字列を Availability に変換します。"available" は waiting として扱います。
func ParseAvailability(raw string) (Availability, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(AvailabilityWaiting), legacyAvailable:
		return AvailabilityWaiting, nil
	case string(AvailabilityAbsent):
		return AvailabilityAbsent, nil
	case string(AvailabilityRest):
		return AvailabilityRest, nil
	default:
		return AvailabilityNone, fmt.Errorf("%q: %w", raw, ErrInvalidAvailability)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Availability) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		*a = AvailabilityNone
		return nil
	}
	parsed, err := ParseAvailability(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// WorkerStatus は作業員レコードの承認状態です。
type WorkerStatus string

const (
	WorkerStatusActive  WorkerStatus = "active"
	WorkerStatusPending WorkerStatus = "pending"
)

// SiteStatus は現場のライフサイクル状態です。
type SiteStatus string

const (
	SiteStatusActive    SiteStatus = "active"
	SiteStatusStopped   SiteStatus = "stopped"
	SiteStatusCompleted SiteStatus = "completed"
	SiteStatusArchived  SiteStatus = "archived"
)

// LeaveType は休暇種別です。
type LeaveType string

const (
	LeaveAnnual    LeaveType = "annual"
	LeaveSick      LeaveType = "sick"
	LeaveEmergency LeaveType = "emergency"
	LeaveOther     LeaveType = "other"
)

// AbsenceEntry は 1 日分の無断欠勤記録です。
type AbsenceEntry struct {
	Date       Date   `json:"date"`
	Reason     string `json:"reason,omitempty"`
	RecordedBy string `json:"recordedBy,omitempty"`
}

// LeaveEntry は開始日・終了日を含む休暇期間の記録です。
type LeaveEntry struct {
	StartDate Date      `json:"startDate"`
	EndDate   Date      `json:"endDate"`
	Type      LeaveType `json:"type"`
	Notes     string    `json:"notes,omitempty"`
}

// Days は期間の日数 (両端を含む) を返します。
func (l LeaveEntry) Days() int {
	return l.StartDate.DaysUntil(l.EndDate) + 1
}

// Worker は作業員エンティティです。
type Worker struct {
	ID               string          `json:"id"`
	Code             int             `json:"code"`
	Name             string          `json:"name"`
	Skill            string          `json:"skill,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	HireDate         *Date           `json:"hireDate,omitempty"`
	DocumentExpiries map[string]Date `json:"documentExpiries,omitempty"`
	AssignedSiteID   string          `json:"assignedSiteId,omitempty"`
	Availability     Availability    `json:"availabilityStatus,omitempty"`
	WaitingSince     *time.Time      `json:"waitingSince,omitempty"`
	AbsentSince      *time.Time      `json:"absentSince,omitempty"`
	AbsenceHistory   []AbsenceEntry  `json:"absenceHistory,omitempty"`
	LeaveHistory     []LeaveEntry    `json:"leaveHistory,omitempty"`
	AnnualLeaveTotal int             `json:"annualLeaveTotal,omitempty"`
	IsEngineer       bool            `json:"isEngineer,omitempty"`
	Status           WorkerStatus    `json:"status,omitempty"`
}

// IsPending は承認待ちの作業員かを判定します。
func (w *Worker) IsPending() bool {
	return w.Status == WorkerStatusPending
}

// IsAssigned は現場に配属されているかを判定します。
func (w *Worker) IsAssigned() bool {
	return w.AssignedSiteID != ""
}

// Site は現場エンティティです。
type Site struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Location          string     `json:"location,omitempty"`
	Status            SiteStatus `json:"status,omitempty"`
	AssignedWorkerIDs []string   `json:"assignedWorkerIds"`
	EngineerID        string     `json:"engineerId,omitempty"`
}

// indexOf は配属名簿内の作業員の位置を返します。存在しなければ -1 です。
func (s *Site) indexOf(workerID string) int {
	for i, id := range s.AssignedWorkerIDs {
		if id == workerID {
			return i
		}
	}
	return -1
}

// Snapshot はアプリケーション状態全体を 1 つの永続化単位として表します。
type Snapshot struct {
	Workers       []*Worker         `json:"workers"`
	Sites         []*Site           `json:"sites"`
	Users         []*Account        `json:"users"`
	Skills        []string          `json:"skills"`
	Notifications []json.RawMessage `json:"notifications"`
}

// Worker は ID で作業員を検索します。
func (s *Snapshot) Worker(id string) *Worker {
	for _, w := range s.Workers {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// Site は ID で現場を検索します。
func (s *Snapshot) Site(id string) *Site {
	for _, site := range s.Sites {
		if site.ID == id {
			return site
		}
	}
	return nil
}

// Clone はスナップショットの深いコピーを返します。
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Workers:       make([]*Worker, 0, len(s.Workers)),
		Sites:         make([]*Site, 0, len(s.Sites)),
		Users:         make([]*Account, 0, len(s.Users)),
		Skills:        append([]string(nil), s.Skills...),
		Notifications: make([]json.RawMessage, 0, len(s.Notifications)),
	}
	for _, w := range s.Workers {
		out.Workers = append(out.Workers, cloneWorker(w))
	}
	for _, site := range s.Sites {
		clone := *site
		clone.AssignedWorkerIDs = append([]string{}, site.AssignedWorkerIDs...)
		out.Sites = append(out.Sites, &clone)
	}
	for _, u := range s.Users {
		clone := *u
		out.Users = append(out.Users, &clone)
	}
	for _, n := range s.Notifications {
		out.Notifications = append(out.Notifications, append(json.RawMessage(nil), n...))
	}
	return out
}

func cloneWorker(w *Worker) *Worker {
	clone := *w
	if w.HireDate != nil {
		hired := *w.HireDate
		clone.HireDate = &hired
	}
	if w.DocumentExpiries != nil {
		clone.DocumentExpiries = make(map[string]Date, len(w.DocumentExpiries))
		for k, v := range w.DocumentExpiries {
			clone.DocumentExpiries[k] = v
		}
	}
	clone.WaitingSince = cloneTime(w.WaitingSince)
	clone.AbsentSince = cloneTime(w.AbsentSince)
	clone.AbsenceHistory = append([]AbsenceEntry(nil), w.AbsenceHistory...)
	clone.LeaveHistory = append([]LeaveEntry(nil), w.LeaveHistory...)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
