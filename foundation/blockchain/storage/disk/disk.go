// Package disk implements the ability to read and write blocks and accounts
// to a badger key/value store on disk.
package disk

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/minichain/foundation/blockchain/storage"
	"github.com/dgraph-io/badger"
)

// EventHandler defines a function that is called when events occur in the
// underlying key/value store.
type EventHandler func(v string, args ...any)

// open creates the directory if needed and opens a badger store in it.
func open(path string, ev EventHandler) (*badger.DB, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithLogger(logger{ev: ev})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}

	return db, nil
}

// get reads the value stored under the key.
func get(db *badger.DB, key []byte) ([]byte, error) {
	var value []byte
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	return value, mapError(err)
}

// mapError converts badger's missing key error into storage.ErrNotFound.
func mapError(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// =============================================================================

// logger adapts the event handler to the badger.Logger interface.
type logger struct {
	ev EventHandler
}

func (l logger) Errorf(f string, v ...interface{}) {
	l.emit("ERROR", f, v...)
}

func (l logger) Warningf(f string, v ...interface{}) {
	l.emit("WARNING", f, v...)
}

func (l logger) Infof(f string, v ...interface{}) {
	l.emit("INFO", f, v...)
}

func (l logger) Debugf(f string, v ...interface{}) {}

func (l logger) emit(level string, f string, v ...interface{}) {
	if l.ev == nil {
		return
	}
	l.ev("disk: badger: %s: %s", level, fmt.Sprintf(f, v...))
}
