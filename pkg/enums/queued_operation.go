package enums

import "fmt"

// QueuedOperation is the kind of mutation held in the offline queue.
type QueuedOperation string

const (
	QueuedOperationSale   QueuedOperation = "sale"
	QueuedOperationRefund QueuedOperation = "refund"
)

var validQueuedOperations = []QueuedOperation{
	QueuedOperationSale,
	QueuedOperationRefund,
}

// String implements fmt.Stringer.
func (q QueuedOperation) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QueuedOperation.
func (q QueuedOperation) IsValid() bool {
	for _, candidate := range validQueuedOperations {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseQueuedOperation converts raw input into a QueuedOperation.
func ParseQueuedOperation(value string) (QueuedOperation, error) {
	for _, candidate := range validQueuedOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid queued operation %q", value)
}
