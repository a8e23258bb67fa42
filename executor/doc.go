// Package executor drives pollable tasks over the fuel scheduler.
//
// A Task is polled until it completes or parks. Parking tasks hold a
// clone of their waker; invoking it pushes the task ID back into the
// shared ready queue, and the next Step turns that signal into a Ready
// transition before asking the scheduler for a selection. Batched wake
// sources go through the coalescer instead, collapsing duplicate signals
// before they touch the queue.
//
// The executor implements the wakers' fuel sink: every wake carries a
// mode-dependent fuel debit, charged against an attached fuel-tracked
// thread when one is bound. A closed executor discards wake debits from
// stray wakers instead of failing them.
package executor
