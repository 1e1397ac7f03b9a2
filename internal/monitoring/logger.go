// Package monitoring holds the diagnostic logger shared by the encoder, its
// checkpoint I/O and the command line tool.
package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger; tests usually mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Since logs the elapsed time of an operation started at start.
//
//	defer monitoring.Since("fit", time.Now())
func Since(what string, start time.Time) {
	Logf("%s took %s", what, time.Since(start).Round(time.Millisecond))
}
