// Package security implements the alarm decision engine.
//
// The Service reconciles three kinds of input into a single alarm status:
// sensor activation events, arming status changes and camera frames that
// may show a cat. It reads and writes state only through the repository,
// never caches sensors across calls and notifies listeners synchronously
// after every committed change.
//
// Every entry point holds one mutex from the first read to the last
// notification, so concurrent callers cannot interleave their
// read-decide-write sequences.
package security
