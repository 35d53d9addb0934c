// Package version exposes build metadata for the catpoint binaries.
//
// Variables are injected at build time via -ldflags "-X".
package version
