// Package notify delivers security status changes to interested listeners.
//
// Listener is the single capability interface observers implement; Registry
// keeps the subscribers and broadcasts every event to all of them, in
// subscription order, synchronously.
package notify
