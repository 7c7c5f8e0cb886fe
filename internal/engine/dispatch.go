package engine

import (
	"context"
	"fmt"

	"github.com/roach88/possync/internal/ops"
)

// apply executes op against the gateway. This is the single dispatch point
// for every operation kind. The returned string is the invoice number for
// payments and empty otherwise.
func (e *Engine) apply(ctx context.Context, op ops.Operation) (string, error) {
	switch p := op.Payload.(type) {
	case ops.Create:
		return "", e.gw.CreateOrder(ctx, p.Order)
	case ops.Status:
		return "", e.gw.UpdateKitchenStatus(ctx, op.OrderID, p.Status)
	case ops.Payment:
		return e.gw.ApplyPayment(ctx, op.OrderID, p.Payment)
	case ops.Cancel:
		return "", e.gw.CancelOrder(ctx, op.OrderID)
	case ops.Items:
		return "", e.gw.ReplaceItems(ctx, op.OrderID, p.Items)
	default:
		return "", newContractError(op, ops.NewUnknownKindError(fmt.Sprintf("%T", op.Payload)))
	}
}
