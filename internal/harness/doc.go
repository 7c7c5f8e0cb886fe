// Package harness runs YAML sync scenarios: one or more terminals, each
// with its own durable operation log and engine, share an in-memory remote
// store while the scenario toggles connectivity, queues operations,
// restarts terminals and injects remote faults.
//
// # Scenario Format
//
//	name: offline_lifecycle
//	description: "What this scenario shows"
//	terminals:
//	  - name: a
//	    stale_invoice: FAC-20250101-0006
//	    stale_reads: 1
//	seed:
//	  - id: ORD-0
//	    invoice_number: FAC-20250101-0006
//	steps:
//	  - action: create
//	    terminal: a
//	    order: ORD-1
//	    table: T4
//	    items:
//	      - { product: chicken, price: 2500, qty: 2 }
//	  - action: fail
//	    call: CreateOrder
//	    error: unavailable
//	  - action: online
//	expect:
//	  pending: { a: 1 }
//	  writes: []
//
// Actions: offline, online, online_all, drain, restart, create, status,
// payment, cancel, items, and the remote faults fail, down, up and hide.
//
// # Determinism
//
// Timestamps come from testutil.DeterministicClock and operation ids from
// a per-terminal engine.SequentialGenerator, so the trace of a scenario is
// identical across runs and is compared with a golden file by
// RunWithGolden. Remote errors appear in the trace by category only.
package harness
