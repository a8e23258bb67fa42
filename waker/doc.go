// Package waker implements task wake signaling with ASIL-differentiated
// semantics.
//
// A Waker is a plain capability value bound to one task: Wake pushes the
// task's ID into the shared ready queue, Clone shares the underlying state.
// There is no raw vtable or pointer juggling anywhere; the safety levels
// this code targets forbid unpredictable call targets, so mode dispatch is
// a closed switch.
//
// Wake semantics by mode:
//
//   - ASIL-D: insertion preserves strict ascending TaskID order regardless
//     of arrival order, with a duplicate check before insert
//   - ASIL-C: duplicate check, then append; capacity is assumed reserved
//   - ASIL-B: proactive deduplication when the queue is near capacity
//   - ASIL-A/QM: append; on overflow deduplicate once and retry
//
// Every wake is idempotent per generation: a compare-and-swap on the
// is-woken flag collapses concurrent redundant wakes to one queue entry,
// and the executor clears the flag only after the task has been polled.
//
// The Coalescer is a second line of defense against wake storms: it
// deduplicates pending task IDs and drains them into the ready queue in a
// single critical section.
package waker
