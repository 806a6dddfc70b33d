// Package ledger records a forensic trail of a reconstruction run —
// which subvolumes completed, their checksums, and when — in an
// embedded buntdb database. It is not a restart/resume mechanism: a
// killed run's partial output and ledger are left on disk for
// inspection only; it provides no transactional rollback.
package ledger

import (
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
)

type Ledger struct {
	db *buntdb.DB
}

// Open creates or reopens the ledger database at path. An empty path
// opens an in-memory ledger, useful for tests and dry runs.
func Open(path string) (*Ledger, error) {
	target := path
	if target == "" {
		target = ":memory:"
	}
	db, err := buntdb.Open(target)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening %s: %w", target, err)
	}
	return &Ledger{db: db}, nil
}

// RecordSubvolume marks one subvolume complete, storing its checksum
// and completion time under a key namespaced by run and subvolume ID.
func (l *Ledger) RecordSubvolume(runID string, subvolumeID int, checksum string, completedAt time.Time) error {
	key := fmt.Sprintf("run/%s/subvolume/%d", runID, subvolumeID)
	value := fmt.Sprintf("%s|%s", checksum, completedAt.Format(time.RFC3339Nano))
	return l.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, value, nil)
		return err
	})
}

// CompletedSubvolumes returns the subvolume IDs recorded as finished
// for a run, in no particular order.
func (l *Ledger) CompletedSubvolumes(runID string) ([]int, error) {
	prefix := fmt.Sprintf("run/%s/subvolume/", runID)
	var ids []int
	err := l.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(key, value string) bool {
			var id int
			fmt.Sscanf(key[len(prefix):], "%d", &id)
			ids = append(ids, id)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: scanning run %s: %w", runID, err)
	}
	return ids, nil
}

func (l *Ledger) Close() error { return l.db.Close() }
