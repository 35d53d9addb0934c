// Package client implements the catpoint-ctl actions.
//
// Each action connects to the security server, performs one call and logs the
// resulting snapshot. Actions can optionally retry while the server is unreachable.
package client
