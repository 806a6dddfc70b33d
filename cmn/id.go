// Package cmn holds small cross-cutting engine types: run/task identifiers
// and the shared error-wrapping convention.
package cmn

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/teris-io/shortid"
)

var (
	sidMu  sync.Mutex
	sidGen *shortid.Shortid
)

func init() {
	var err error
	sidGen, err = shortid.New(1, shortid.DefaultABC, 0xC0FFEE)
	if err != nil {
		panic(err)
	}
}

// NewRunID returns a short, URL-safe identifier for one invocation of the
// engine, used to tag log lines, the run manifest, and the ledger file.
func NewRunID() string {
	sidMu.Lock()
	defer sidMu.Unlock()
	id, err := sidGen.Generate()
	if err != nil {
		// shortid only fails on generator exhaustion, which cannot happen
		// at engine-run scale; fall back to a fixed marker rather than
		// propagate an error from what is purely a logging convenience.
		return "run-unknown"
	}
	return "run-" + id
}

// Wrap attaches msg as context to err using the engine-wide error-wrapping
// convention (github.com/pkg/errors), so FATAL log lines retain a cause
// chain back to the original failure.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
