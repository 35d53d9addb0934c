// Package gpio turns wired door, window and motion contacts into sensor events.
//
// A Reader samples raw line values; the real implementation uses the Linux GPIO
// character device and other platforms get a stub. The Watcher polls a Reader,
// maps lines to sensors and forwards only edges into the decision engine.
package gpio
