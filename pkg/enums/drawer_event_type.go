package enums

import "fmt"

// DrawerEventType labels cash drawer operations that move no sale.
type DrawerEventType string

const (
	DrawerEventNoSale  DrawerEventType = "NO_SALE"
	DrawerEventRecount DrawerEventType = "RECOUNT"
)

var validDrawerEventTypes = []DrawerEventType{
	DrawerEventNoSale,
	DrawerEventRecount,
}

// String implements fmt.Stringer.
func (d DrawerEventType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DrawerEventType.
func (d DrawerEventType) IsValid() bool {
	for _, candidate := range validDrawerEventTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDrawerEventType converts raw input into a DrawerEventType.
func ParseDrawerEventType(value string) (DrawerEventType, error) {
	for _, candidate := range validDrawerEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid drawer event type %q", value)
}
