package enums

import "fmt"

// AuditEventType names append-only audit records.
type AuditEventType string

const (
	AuditRefundCompleted           AuditEventType = "refund.completed"
	AuditSaleCompleted             AuditEventType = "sale.completed"
	AuditDrawerNoSale              AuditEventType = "drawer.no_sale"
	AuditDrawerRecount             AuditEventType = "drawer.recount"
	AuditShiftOpened               AuditEventType = "shift.opened"
	AuditShiftClosed               AuditEventType = "shift.closed"
	AuditOfflineCapabilityAccepted AuditEventType = "offline.capability_accepted"
)

var validAuditEventTypes = []AuditEventType{
	AuditRefundCompleted,
	AuditSaleCompleted,
	AuditDrawerNoSale,
	AuditDrawerRecount,
	AuditShiftOpened,
	AuditShiftClosed,
	AuditOfflineCapabilityAccepted,
}

// String implements fmt.Stringer.
func (a AuditEventType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditEventType.
func (a AuditEventType) IsValid() bool {
	for _, candidate := range validAuditEventTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditEventType converts raw input into a AuditEventType.
func ParseAuditEventType(value string) (AuditEventType, error) {
	for _, candidate := range validAuditEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit event type %q", value)
}
