// Package sched implements the fuel-based deterministic task scheduler.
//
// The scheduler owns one metadata entry per registered task and a policy
// structure that decides selection order:
//
//   - Cooperative: first Ready task in ascending TaskID order
//   - PriorityBased: queue sorted descending by priority, stable for ties
//   - DeadlineBased: earliest absolute fuel deadline among Ready tasks
//   - RoundRobin: circular scan with a persistent cursor
//
// Time is fuel. The scheduler clock advances per selection, deadlines are
// relative fuel budgets against a task's last scheduling, and no wall-clock
// source is consulted anywhere. Task state lives in a red-black tree keyed
// by TaskID so every scan is reproducible.
//
// The scheduler is single-writer: mutating calls must come from one owning
// executor (or be externally synchronized). Wake signaling never touches
// the scheduler directly; wakers push into the shared ready queue and the
// executor applies the Ready transitions before the next selection.
package sched
