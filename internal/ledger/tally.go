package ledger

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
)

// LineAvailability is the refundable position of one original line item.
//
// Refunded quantity is counted two ways. The exact count follows each refund
// line's back-reference to the line it returned. The identity count sums every
// refund line selling the same product or service, which also covers rows
// written without a back-reference. Remaining is the smaller of the two limits.
type LineAvailability struct {
	Line             models.LineItem
	Sold             int
	AlreadyRefunded  int
	IdentitySold     int
	IdentityRefunded int
	Remaining        int
}

// Tally holds the already-refunded quantities for one original transaction.
type Tally struct {
	byLine     map[uuid.UUID]int
	byIdentity map[uuid.UUID]int
	soldByID   map[uuid.UUID]int
}

// NewTally scans the original's lines and every prior refund against it.
func NewTally(original *models.Transaction, refunds []models.Transaction) *Tally {
	t := &Tally{
		byLine:     map[uuid.UUID]int{},
		byIdentity: map[uuid.UUID]int{},
		soldByID:   map[uuid.UUID]int{},
	}
	if original != nil {
		for _, line := range original.LineItems {
			if id, ok := line.ItemIdentity(); ok {
				t.soldByID[id] += abs(line.Quantity)
			}
		}
	}
	for _, refund := range refunds {
		for _, line := range refund.LineItems {
			q := abs(line.Quantity)
			if line.RefundsLineItemID != nil {
				t.byLine[*line.RefundsLineItemID] += q
			}
			if id, ok := line.ItemIdentity(); ok {
				t.byIdentity[id] += q
			}
		}
	}
	return t
}

// Line returns the availability of one original line.
func (t *Tally) Line(line models.LineItem) LineAvailability {
	sold := abs(line.Quantity)
	refunded := t.byLine[line.ID]
	remaining := sold - refunded

	avail := LineAvailability{
		Line:            line,
		Sold:            sold,
		AlreadyRefunded: refunded,
	}
	if id, ok := line.ItemIdentity(); ok {
		avail.IdentitySold = t.soldByID[id]
		avail.IdentityRefunded = t.byIdentity[id]
		if left := avail.IdentitySold - avail.IdentityRefunded; left < remaining {
			remaining = left
		}
	}
	if remaining < 0 {
		remaining = 0
	}
	avail.Remaining = remaining
	return avail
}

// IdentityRemaining is how many units of a product or service are still refundable.
func (t *Tally) IdentityRemaining(id uuid.UUID) int {
	left := t.soldByID[id] - t.byIdentity[id]
	if left < 0 {
		return 0
	}
	return left
}

// Availability lists every original line in order.
func (t *Tally) Availability(original *models.Transaction) []LineAvailability {
	out := make([]LineAvailability, 0, len(original.LineItems))
	for _, line := range original.LineItems {
		out = append(out, t.Line(line))
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
