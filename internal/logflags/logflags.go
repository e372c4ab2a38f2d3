// Package logflags configures structured logging for the post-mortem core,
// following the same enable-by-layer convention as the rest of this stack's
// tracing.
package logflags

import (
	"errors"
	"io"
	"log"
	"strings"

	"github.com/sirupsen/logrus"
)

var discardWriter io.Writer = io.Discard

var minidump = false
var dwarfExpr = false
var unwind = false
var locresolve = false

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// Minidump returns true if the minidump reader should log stream-level
// decode failures.
func Minidump() bool { return minidump }

// MinidumpLogger returns a logger for the minidump package.
func MinidumpLogger() *logrus.Entry {
	return makeLogger(minidump, logrus.Fields{"layer": "minidump"})
}

// DwarfExpr returns true if the expression evaluator should log each op.
func DwarfExpr() bool { return dwarfExpr }

// DwarfExprLogger returns a logger for the op package's evaluator.
func DwarfExprLogger() *logrus.Entry {
	return makeLogger(dwarfExpr, logrus.Fields{"layer": "op"})
}

// Unwind returns true if the CFI engine should log CFA/column resolution.
func Unwind() bool { return unwind }

// UnwindLogger returns a logger for the frame package's CFI resolver.
func UnwindLogger() *logrus.Entry {
	return makeLogger(unwind, logrus.Fields{"layer": "frame"})
}

// LocResolve returns true if the location-list resolver should log range
// matches and misses.
func LocResolve() bool { return locresolve }

// LocResolveLogger returns a logger for the locresolve package.
func LocResolveLogger() *logrus.Entry {
	return makeLogger(locresolve, logrus.Fields{"layer": "locresolve"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup enables logging for the comma-separated layer names in logstr, or
// for the default set ("minidump,unwind") if logstr is empty, discarding
// all log output when logFlag is false.
func Setup(logFlag bool, logstr string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(discardWriter)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "minidump,unwind"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "minidump":
			minidump = true
		case "op":
			dwarfExpr = true
		case "unwind":
			unwind = true
		case "locresolve":
			locresolve = true
		}
	}
	return nil
}
