// Package order defines the point-of-sale order model shared by the sync
// engine and the remote gateways.
//
// It holds no I/O. Everything here is a value type plus the pure rules that
// govern it:
//
//   - KitchenStatus and its forward-only transition rules
//   - LineItem / Addon with the addon pricing invariants
//   - Snapshot, the full order captured at validation time
//   - Payment, the record applied when a served order is settled
//
// Monetary amounts are integer minor units (Money) so totals computed on
// the terminal match the remote store exactly.
package order
