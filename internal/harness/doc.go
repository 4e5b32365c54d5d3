// Package harness runs order scenarios against the line-item engine and the
// reconciliation guard.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: partial_transition
//	description: "Moving part of an entry splits it"
//	order:
//	  id: order-3
//	  items:
//	    - { menuItemId: pizza, quantity: 3, unitPrice: "12.50", status: pending }
//	guard:
//	  auto_limit: 8
//	steps:
//	  - op: transition
//	    index: 0
//	    status: preparing
//	    quantity: 1
//	  - op: notify
//	expect:
//	  status: preparing
//	  pushes: 1
//	  outcomes: { pushed: 1 }
//
// # Operations
//
//   - transition, force_transition: move quantity units of the entry at index
//   - change_quantity: set the quantity of the entry at index
//   - add, remove: add an item, remove the entry at index
//   - notify: deliver the current items to the guard, repeat times, every apart
//   - advance: move the clock forward by duration
//   - user_update: submit an operator status change
//
// Item operations change the stored items but never the stored status; only
// guard pushes do that. A step that is expected to fail names the error code
// in expect_error: a line-item code such as ILLEGAL_TRANSITION, or one of
// rate_limited, halted, illegal_transition, not_found, closed.
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory order source, a manual clock starting at
// testutil.Epoch and a recording pusher, so traces are identical across runs
// and can be compared against golden files.
package harness
