// Package monitoring holds the diagnostic logging hooks shared by the
// navigation packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests mute it so mission runs stay quiet.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Capture redirects Logf into the returned slice until restore is called.
// It is intended for tests that assert on log output.
func Capture() (lines *[]string, restore func()) {
	original := Logf
	captured := make([]string, 0)
	Logf = func(format string, v ...interface{}) {
		captured = append(captured, sprintf(format, v...))
	}
	return &captured, func() { Logf = original }
}
