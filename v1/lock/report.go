package lock

import (
	"log"
	"os"
	"runtime"
)

// Reporter receives a misuse diagnostic together with the source
// location of the offending call. Hosts plug in their own to route
// reports into a logger, a test harness or an abort policy.
type Reporter func(msg, file string, line int)

var stderrLog = log.New(os.Stderr, "", log.LstdFlags)

// defaultReporter prints a timestamped diagnostic to stderr.
func defaultReporter(msg, file string, line int) {
	stderrLog.Printf("ownlock: %s (%s:%d)", msg, file, line)
}

// callerLocation resolves the file and line of the caller skip frames
// up the stack.
func callerLocation(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown", 0
	}
	return file, line
}
