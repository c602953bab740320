package ledger

import (
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

// ToView converts a persisted transaction to its API shape.
func ToView(txn *models.Transaction) types.TransactionView {
	view := types.TransactionView{
		ID:                    txn.ID,
		TenantID:              txn.TenantID,
		LocationID:            txn.LocationID,
		ClientID:              txn.ClientID,
		EmployeeID:            txn.EmployeeID,
		Status:                txn.Status,
		PaymentMethod:         txn.PaymentMethod,
		Subtotal:              txn.Subtotal,
		Tax:                   txn.Tax,
		Tip:                   txn.Tip,
		Total:                 txn.Total,
		OriginalTransactionID: txn.OriginalTransactionID,
		RefundType:            txn.RefundType,
		Reason:                txn.Reason,
		CashDrawerSessionID:   txn.CashDrawerSessionID,
		IdempotencyKey:        txn.IdempotencyKey,
		Offline:               txn.Offline,
		CapturedAt:            txn.CapturedAt,
		CreatedAt:             txn.CreatedAt,
		LineItems:             make([]types.LineItemView, 0, len(txn.LineItems)),
	}
	for _, line := range txn.LineItems {
		view.LineItems = append(view.LineItems, types.LineItemView{
			ID:                line.ID,
			Type:              line.Type,
			ProductID:         line.ProductID,
			ServiceID:         line.ServiceID,
			Name:              line.Name,
			Quantity:          line.Quantity,
			Price:             line.Price,
			DiscountPercent:   line.DiscountPercent,
			Total:             line.Total,
			StaffID:           line.StaffID,
			RefundsLineItemID: line.RefundsLineItemID,
		})
	}
	return view
}

// RefundableView converts availability rows to their API shape.
func RefundableView(lines []LineAvailability) []types.RefundableLine {
	out := make([]types.RefundableLine, 0, len(lines))
	for _, a := range lines {
		out = append(out, types.RefundableLine{
			LineItemID:      a.Line.ID,
			Type:            a.Line.Type,
			ProductID:       a.Line.ProductID,
			ServiceID:       a.Line.ServiceID,
			Name:            a.Line.Name,
			Price:           a.Line.Price,
			DiscountPercent: a.Line.DiscountPercent,
			Sold:            a.Sold,
			AlreadyRefunded: a.AlreadyRefunded,
			Remaining:       a.Remaining,
		})
	}
	return out
}
