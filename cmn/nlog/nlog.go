// Package nlog provides a small leveled logger used throughout zonerep:
// timestamped Info/Warning/Error lines and a verbosity gate for the chatty
// per-frame diagnostics that would otherwise flood production logs.
package nlog

import (
	"log"
	"os"
	ratomic "sync/atomic"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var (
	std     = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
	verbose ratomic.Int64
)

// SetVerbosity sets the global verbosity gate used by V(level).
func SetVerbosity(level int64) { verbose.Store(level) }

// V reports whether logging at the given verbosity level is enabled.
func V(level int64) bool { return verbose.Load() >= level }

func Infof(format string, args ...any)    { logf(sevInfo, format, args...) }
func Infoln(args ...any)                  { logln(sevInfo, args...) }
func Warningf(format string, args ...any) { logf(sevWarn, format, args...) }
func Warningln(args ...any)               { logln(sevWarn, args...) }
func Errorf(format string, args ...any)   { logf(sevErr, format, args...) }
func Errorln(args ...any)                 { logln(sevErr, args...) }

func logf(sev severity, format string, args ...any) {
	std.Printf(tag(sev)+format, args...)
}

func logln(sev severity, args ...any) {
	std.Print(append([]any{tag(sev)}, args...)...)
}

func tag(sev severity) string {
	switch sev {
	case sevWarn:
		return "W "
	case sevErr:
		return "E "
	default:
		return "I "
	}
}

// Fatalf logs at error level and terminates the process; reserved for the
// small set of truly unrecoverable misconfigurations the spec calls "fatal"
// (protocol overflow with no way to shrink the message, a writer asked to
// close a frame it never opened).
func Fatalf(format string, args ...any) {
	std.Printf("F "+format, args...)
	os.Exit(1)
}
