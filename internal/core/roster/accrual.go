package roster

import "math"

const (
	daysPerYear      = 365.25
	juniorRatePerYr  = 21
	seniorRatePerYr  = 30
	seniorityYears   = 5
	seniorityBalance = seniorityYears * juniorRatePerYr
)

// EarnedDaysForYears は勤続年数から付与される年次休暇日数を返します。
// 5 年未満は年 21 日、5 年以降は年 30 日で按分し、端数は切り捨てます。
func EarnedDaysForYears(years float64) int {
	if years <= 0 {
		return 0
	}
	var earned float64
	if years < seniorityYears {
		earned = years * juniorRatePerYr
	} else {
		earned = seniorityBalance + (years-seniorityYears)*seniorRatePerYr
	}
	return int(math.Floor(earned))
}

// EarnedDays は入社日から asOf までの勤続期間に対する付与日数を返します。
func EarnedDays(hireDate, asOf Date) int {
	if hireDate.IsZero() || asOf.Before(hireDate) {
		return 0
	}
	return EarnedDaysForYears(float64(hireDate.DaysUntil(asOf)) / daysPerYear)
}

// ConsumedAnnualDays は開始日が year に含まれる年次休暇の日数 (両端を含む) を合計します。
func ConsumedAnnualDays(history []LeaveEntry, year int) int {
	total := 0
	for _, e := range history {
		if e.Type != LeaveAnnual || e.StartDate.Year() != year {
			continue
		}
		total += e.Days()
	}
	return total
}

// EffectiveLeaveDays は期間 [queryStart, queryEnd] と重なる休暇日数を合計します。
// types が空の場合は年次休暇のみを対象とします。残日数の計算には影響しません。
func EffectiveLeaveDays(history []LeaveEntry, queryStart, queryEnd Date, types ...LeaveType) int {
	if queryEnd.Before(queryStart) {
		return 0
	}
	if len(types) == 0 {
		types = []LeaveType{LeaveAnnual}
	}

	total := 0
	for _, e := range history {
		if !containsLeaveType(types, e.Type) {
			continue
		}
		start, end := e.StartDate, e.EndDate
		if start.Before(queryStart) {
			start = queryStart
		}
		if end.After(queryEnd) {
			end = queryEnd
		}
		if end.Before(start) {
			continue
		}
		total += start.DaysUntil(end) + 1
	}
	return total
}

func containsLeaveType(types []LeaveType, t LeaveType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// LeaveBalance は年次休暇の残日数を表します。
type LeaveBalance struct {
	Earned    int
	Consumed  int
	Remaining int
	Override  bool
}

// BalanceOf は asOf 時点の年次休暇残日数を算出します。
// annualLeaveTotal が設定されていれば勤続年数による付与日数の代わりに用います。
func BalanceOf(w *Worker, asOf Date) LeaveBalance {
	var b LeaveBalance
	switch {
	case w.AnnualLeaveTotal > 0:
		b.Earned = w.AnnualLeaveTotal
		b.Override = true
	case w.HireDate != nil:
		b.Earned = EarnedDays(*w.HireDate, asOf)
	}
	b.Consumed = ConsumedAnnualDays(w.LeaveHistory, asOf.Year())
	b.Remaining = b.Earned - b.Consumed
	return b
}
