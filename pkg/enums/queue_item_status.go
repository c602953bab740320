package enums

import "fmt"

// QueueItemStatus separates items awaiting replay from ones parked for review.
type QueueItemStatus string

const (
	QueueItemPending  QueueItemStatus = "pending"
	QueueItemRejected QueueItemStatus = "rejected"
)

var validQueueItemStatuses = []QueueItemStatus{
	QueueItemPending,
	QueueItemRejected,
}

// String implements fmt.Stringer.
func (q QueueItemStatus) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QueueItemStatus.
func (q QueueItemStatus) IsValid() bool {
	for _, candidate := range validQueueItemStatuses {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseQueueItemStatus converts raw input into a QueueItemStatus.
func ParseQueueItemStatus(value string) (QueueItemStatus, error) {
	for _, candidate := range validQueueItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid queue item status %q", value)
}
