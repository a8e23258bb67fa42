// Package engine executes guest WebAssembly under fuel supervision.
//
// The wazero runtime is configured to close in-flight calls when their
// context is cancelled. The Meter hooks every compiled function and
// debits instruction fuel from a bound fuel thread on each guest function
// entry; when a debit fails it cancels the call's context, which makes
// the runtime abort the guest. This keeps guest execution inside the same
// fuel accounting as host-side tasks without patching guest bytecode.
package engine
