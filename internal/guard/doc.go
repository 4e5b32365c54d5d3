// Package guard implements the reconciliation guard that recomputes an
// order's status when its items change and pushes corrections back, without
// feeding on its own writes.
//
// THE LOOP PROBLEM:
//
// Every writer (kitchen display, waiter view, manager view) reports item
// changes through the same notification stream. When the guard pushes a
// corrected status, the persistence layer emits a notification for that
// write too. Left alone, recompute → push → notify → recompute never ends.
//
// DEFENCES, in evaluation order:
//
//  1. Emergency halt: a global stop switch with its own expiry. Tripped when
//     one order generates more recompute attempts in a window than any
//     legitimate workflow could.
//  2. Echo suppression: after a push the order is marked self-updated until a
//     settle delay elapses; the first notification inside that period is the
//     echo of our own write and is dropped.
//  3. No-op detection: if Aggregate(items) equals the stored status there is
//     nothing to push.
//  4. Debounce: bursts arriving within the debounce interval coalesce into
//     one per-order timer task; a newer notification replaces the pending
//     task, so only the latest status is pushed.
//  5. Rate windows: automatic pushes draw from a small per-order budget per
//     window. User-initiated updates draw from a separate, larger budget.
//
// Drops are decisions, not errors. Every decision carries a logical sequence
// number, is logged through slog, and is handed to registered observers.
//
// Concurrency: all guard state sits behind one mutex. Timer callbacks and
// pushes run on their own goroutines; Wait blocks until in-flight pushes
// finish. An order is held by one push from the moment its task leaves the
// pending set until the push ends or is dropped; other tasks re-arm and user
// updates wait for it. Window counters live behind the WindowStore interface so several
// processes can share them.
//
// Shutdown: callers with a finite feed call Drain so the last debounced tasks
// fire, then Close. Close alone cancels whatever is still pending.
package guard
