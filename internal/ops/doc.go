// Package ops defines SyncOperation, the unit of work captured by the sync
// engine for replay against the remote order store.
//
// An Operation is a closed sum type: the Payload interface is sealed by an
// unexported method, so the only variants are the ones declared here
// (Create, Status, Payment, Cancel, Items). The engine dispatches on the
// payload in exactly one type switch. Adding a kind means adding a variant
// here, a case in the codec and a case in that switch.
//
// Payloads are serialized as canonical JSON (NFC-normalized strings, no HTML
// escaping) so the same logical operation always produces the same bytes in
// the durable log.
package ops
