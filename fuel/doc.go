// Package fuel provides fuel-budgeted thread management.
//
// Every spawned thread carries a ThreadContext holding an atomic fuel
// budget. Execution debits the context through ConsumeThreadFuel or, for
// guest bytecode, through ConsumeInstructionFuel with a per-category cost
// scaled by the verification level. A Manager maintains the global ledger:
// spawning commits a thread's initial budget against the global limit, and
// joining the thread is the only operation that returns unused fuel.
//
// Exhaustion is sticky. Once a thread runs out of fuel its context refuses
// further consumption, even after AddFuel, until the thread is torn down.
// Exhaustion never blocks: it surfaces as an error from the consuming call
// and the thread's supervisor decides what to do with it.
package fuel
