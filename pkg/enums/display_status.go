package enums

import "fmt"

// DisplayStatus is the customer display state for one visit.
type DisplayStatus string

const (
	DisplayStatusIdle        DisplayStatus = "IDLE"
	DisplayStatusActive      DisplayStatus = "ACTIVE"
	DisplayStatusAwaitingTip DisplayStatus = "AWAITING_TIP"
	DisplayStatusTipSelected DisplayStatus = "TIP_SELECTED"
	DisplayStatusReview      DisplayStatus = "REVIEW"
	DisplayStatusCompleted   DisplayStatus = "COMPLETED"
	DisplayStatusCancelled   DisplayStatus = "CANCELLED"
)

var validDisplayStatuses = []DisplayStatus{
	DisplayStatusIdle,
	DisplayStatusActive,
	DisplayStatusAwaitingTip,
	DisplayStatusTipSelected,
	DisplayStatusReview,
	DisplayStatusCompleted,
	DisplayStatusCancelled,
}

// String implements fmt.Stringer.
func (d DisplayStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisplayStatus.
func (d DisplayStatus) IsValid() bool {
	for _, candidate := range validDisplayStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisplayStatus converts raw input into a DisplayStatus.
func ParseDisplayStatus(value string) (DisplayStatus, error) {
	for _, candidate := range validDisplayStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid display status %q", value)
}
