// Package nlog provides the engine's leveled, verbosity-gated logger.
//
// It is a thin facade over logrus: callers log through package-level
// Infoln/Warningln/Errorln/Fatalln the way the rest of the engine expects,
// while FastV gates expensive debug-only log lines behind a per-module
// verbosity threshold so hot paths (per-projection, per-voxel-row) never
// pay for formatting when verbosity is off.
package nlog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Module-scoped verbosity levels, set from config at startup. A module not
// present in the map defaults to level 0 (only FastV(0, ...) lines fire).
var (
	vmu sync.RWMutex
	v   = map[string]int{}

	logger = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetVerbosity sets the debug-verbosity threshold for a named module
// (e.g. "filter", "backproject", "devmem"). Threshold 0 lets only
// FastV(0, ...) lines through for that module; typical values during
// diagnosis are 4 or 5.
func SetVerbosity(module string, level int) {
	vmu.Lock()
	v[module] = level
	vmu.Unlock()
}

// FastV reports whether verbosity for module is >= level. It is cheap
// enough to call from a stage's per-projection hot path as a guard before
// building a log line.
func FastV(level int, module string) bool {
	vmu.RLock()
	cur := v[module]
	vmu.RUnlock()
	return cur >= level
}

// SetLevel adjusts the base logrus level (e.g. during --debug runs).
func SetLevel(lvl string) error {
	parsed, err := logrus.ParseLevel(lvl)
	if err != nil {
		return err
	}
	logger.SetLevel(parsed)
	return nil
}

func Infoln(args ...interface{})    { logger.Infoln(args...) }
func Infof(f string, a ...interface{})    { logger.Infof(f, a...) }
func Warningln(args ...interface{}) { logger.Warnln(args...) }
func Warningf(f string, a ...interface{}) { logger.Warnf(f, a...) }
func Errorln(args ...interface{})   { logger.Errorln(args...) }
func Errorf(f string, a ...interface{})   { logger.Errorf(f, a...) }

// Fatalln logs at FATAL and exits the process, matching the engine's
// no-retry error policy: every unrecoverable failure is recorded at FATAL
// and the process exits nonzero after pipelines have drained.
func Fatalln(args ...interface{}) { logger.Fatalln(args...) }

// WithField and WithError let callers attach structured context (task id,
// device id, stage name) without building ad hoc strings.
func WithField(key string, val interface{}) *logrus.Entry { return logger.WithField(key, val) }
func WithError(err error) *logrus.Entry                    { return logger.WithError(err) }

// Named returns a logger entry pre-tagged with a module name, for
// per-subsystem log prefixes.
func Named(module string) *logrus.Entry { return logger.WithField("module", module) }
