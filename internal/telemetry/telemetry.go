// Package telemetry is hammer-kit's logging surface. It preserves the
// tool's line-oriented stdout protocol (@FLIP, @Picking, plain progress
// lines) so downstream log-scraping built against it keeps working
// verbatim, while still getting structured level/timestamp handling from
// logrus underneath.
package telemetry

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: false,
		FullTimestamp:    true,
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetVerbose toggles debug-level detail (per-probe discovery timing).
func SetVerbose(v bool) {
	if v {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// Info logs a plain progress line at info level.
func Info(format string, args ...any) {
	log.Infof(format, args...)
}

// Debug logs verbose per-probe detail, only emitted with -v.
func Debug(format string, args ...any) {
	log.Debugf(format, args...)
}

// Flip emits an @FLIP record for a plain fill/check pass: virtual offset,
// physical address (0 if unknown), expected value, actual value.
func Flip(virtOffset uint64, phys uint64, expect, actual uint32) {
	log.Infof("@FLIP %#08x (phys: %#08x) %#08x->%#08x", virtOffset, phys, expect, actual)
}

// FlipRow emits the @FLIP record for a mod-k fill/check pass, which
// additionally names the row index and in-row word offset rather than just
// the absolute offset Flip does.
func FlipRow(virtOffset uint64, phys uint64, rowIdx int, wordOffset uint32, expect, actual uint32) {
	log.Infof("@FLIP %#08x (phys: %#08x) row %d offset %#x %#08x->%#08x", virtOffset, phys, rowIdx, wordOffset, expect, actual)
}

// Picking emits an @Picking record: the row index chosen as an aggressor,
// its virtual offset, and its physical address.
func Picking(row int, virtOffset uint64, phys uint64) {
	log.Infof("@Picking %d %#08x (phys: %#08x)", row, virtOffset, phys)
}

// Fatal logs an unrecoverable condition (configuration, environment, or
// invariant-violation errors) at error level and exits the process with
// status 2. It exits through os.Exit, so deferred functions do not run.
func Fatal(err error) {
	log.Errorf("%v", err)
	os.Exit(2)
}

// FatalMsg is Fatal for a formatted message rather than an error value.
func FatalMsg(format string, args ...any) {
	Fatal(fmt.Errorf(format, args...))
}
