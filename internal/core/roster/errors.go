package roster

import "errors"

var (
	ErrForbidden           = errors.New("roster: forbidden")
	ErrNotEligible         = errors.New("roster: not eligible")
	ErrWorkerPending       = errors.New("roster: worker is pending approval")
	ErrWorkerNotFound      = errors.New("roster: worker not found")
	ErrSiteNotFound        = errors.New("roster: site not found")
	ErrAccountNotFound     = errors.New("roster: account not found")
	ErrAbsenceNotFound     = errors.New("roster: absence not found")
	ErrLeaveNotFound       = errors.New("roster: leave not found")
	ErrNotInRoster         = errors.New("roster: worker not in site roster")
	ErrCorruption          = errors.New("roster: invariant violated")
	ErrInvalidID           = errors.New("roster: invalid id")
	ErrInvalidDate         = errors.New("roster: invalid date")
	ErrInvalidDateRange    = errors.New("roster: invalid date range")
	ErrInvalidAvailability = errors.New("roster: invalid availability status")
	ErrInvalidLeaveType    = errors.New("roster: invalid leave type")
	ErrInvalidRole         = errors.New("roster: invalid role")
	ErrProposalClosed      = errors.New("roster: move proposal already closed")
	ErrAbsenceExists       = errors.New("roster: absence already recorded for date")
	ErrLeaveExists         = errors.New("roster: leave already recorded for period")
)

// Kind はエラーの分類です。
type Kind int

const (
	KindUnknown Kind = iota
	KindForbidden
	KindNotEligible
	KindNotFound
	KindCorruption
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindForbidden:
		return "forbidden"
	case KindNotEligible:
		return "not_eligible"
	case KindNotFound:
		return "not_found"
	case KindCorruption:
		return "corruption"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Recoverable は状態を変えずに呼び出し元へ返せるエラーかを判定します。
func (k Kind) Recoverable() bool {
	return k != KindCorruption && k != KindUnknown
}

// KindOf はエラーを分類します。
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrCorruption):
		return KindCorruption
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotEligible), errors.Is(err, ErrWorkerPending), errors.Is(err, ErrProposalClosed):
		return KindNotEligible
	case errors.Is(err, ErrWorkerNotFound),
		errors.Is(err, ErrSiteNotFound),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrAbsenceNotFound),
		errors.Is(err, ErrLeaveNotFound),
		errors.Is(err, ErrNotInRoster):
		return KindNotFound
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidDateRange),
		errors.Is(err, ErrInvalidAvailability),
		errors.Is(err, ErrInvalidLeaveType),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrAbsenceExists),
		errors.Is(err, ErrLeaveExists):
		return KindInvalid
	default:
		return KindUnknown
	}
}
