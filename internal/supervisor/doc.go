// Package supervisor owns the lifecycle of the single DayZ server process.
//
// It layers policy on top of the process runner: start with a settling
// grace period, stop by PID with SIGTERM then SIGKILL, a one-shot scheduled
// restart timer, crash detection, and configuration updates that are only
// accepted while the server is stopped.
//
// # States
//
// The supervisor exposes exactly two public states, stopped and running.
// Transitions happen only inside Start, Stop, and the crash handler, and
// the operation mutex serialises them end to end, so at most one server
// process exists at any time and callers never observe a half-transition.
//
// # Concurrency
//
// Two locks with distinct jobs:
//
//   - opMu serialises Start, Stop, the restart cycle, and config updates.
//   - stateMu guards the status snapshot so Status() returns immediately
//     even while a Start or Stop is in flight.
package supervisor
