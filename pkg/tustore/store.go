// Package tustore keeps one build-side database per translation unit in a
// badger key/value store, so a merged database can be rebuilt after any
// single translation unit changes.
package tustore

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger"

	"github.com/Celtoys/clReflect-sub006/pkg/cldb"
	"github.com/Celtoys/clReflect-sub006/pkg/merge"
	"github.com/Celtoys/clReflect-sub006/pkg/textdb"
)

// ErrNotFound is returned for translation units the store does not hold.
var ErrNotFound = errors.New("translation unit not in store")

type fileID [sha1.Size]byte

func getFileID(file string) fileID {
	return sha1.Sum([]byte(file))
}

// Record is the value stored for one translation unit.
type Record struct {
	File     string
	Mtime    time.Time
	Database *Snapshot
}

// Store is a badger backed set of translation unit databases.
type Store struct {
	backing *badger.DB
	log     *log.Logger
}

// badgerLogger routes badger's messages through a standard logger.
type badgerLogger struct {
	*log.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.Printf("ERROR: "+f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.Printf("WARNING: "+f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    {}
func (l badgerLogger) Debugf(f string, v ...interface{})   {}

// Open opens the store in dir, creating it if needed. A nil logger
// discards messages.
func Open(dir string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	options := badger.DefaultOptions(dir).
		WithSyncWrites(false).
		WithLogger(badgerLogger{logger})
	backing, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", dir, err)
	}
	return &Store{backing: backing, log: logger}, nil
}

func (s *Store) Close() error {
	return s.backing.Close()
}

// Put stores db as the database of file, modified at mtime.
func (s *Store) Put(file string, mtime time.Time, db *cldb.Database) error {
	bin, err := recordToBin(&Record{File: file, Mtime: mtime, Database: NewSnapshot(db)})
	if err != nil {
		return err
	}
	id := getFileID(file)
	return s.retryUpdate(func(txn *badger.Txn) error {
		return txn.Set(id[:], bin)
	})
}

// Get returns the record stored for file.
func (s *Store) Get(file string) (*Record, error) {
	var rec *Record
	err := s.retryView(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, getFileID(file))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove drops the record of file.
func (s *Store) Remove(file string) error {
	id := getFileID(file)
	err := s.retryUpdate(func(txn *badger.Txn) error {
		if _, err := txn.Get(id[:]); err != nil {
			return err
		}
		return txn.Delete(id[:])
	})
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	return err
}

// UpToDate reports whether file is stored and whether the stored copy is
// at least as new as mtime.
func (s *Store) UpToDate(file string, mtime time.Time) (exist, uptodate bool, err error) {
	rec, err := s.Get(file)
	if err == ErrNotFound {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, !rec.Mtime.Before(mtime), nil
}

// Import reads the text database in file into the store unless the stored
// copy is already current. It reports whether the store changed.
func (s *Store) Import(file string) (bool, error) {
	info, err := os.Stat(file)
	if err != nil {
		return false, err
	}
	_, uptodate, err := s.UpToDate(file, info.ModTime())
	if err != nil || uptodate {
		return false, err
	}
	db, err := textdb.ReadFile(file)
	if err != nil {
		return false, err
	}
	if err := s.Put(file, info.ModTime(), db); err != nil {
		return false, err
	}
	s.log.Printf("imported %s (%d primitives)", file, db.Len())
	return true, nil
}

func (s *Store) records() ([]*Record, error) {
	var recs []*Record
	err := s.retryView(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec *Record
			err := it.Item().Value(func(bin []byte) error {
				var err error
				rec, err = binToRecord(bin)
				return err
			})
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].File < recs[j].File })
	return recs, nil
}

// Files returns the stored translation units in path order.
func (s *Store) Files() ([]string, error) {
	recs, err := s.records()
	if err != nil {
		return nil, err
	}
	files := make([]string, len(recs))
	for i, rec := range recs {
		files[i] = rec.File
	}
	return files, nil
}

// Merged merges every stored translation unit, in path order, into a new
// database. Merge warnings go to logger.
func (s *Store) Merged(logger *log.Logger) (*cldb.Database, merge.Stats, error) {
	var total merge.Stats
	recs, err := s.records()
	if err != nil {
		return nil, total, err
	}
	db := cldb.New()
	for _, rec := range recs {
		st := merge.Databases(db, rec.Database.Database(), logger)
		total.Added += st.Added
		total.Skipped += st.Skipped
		total.Conflicts += st.Conflicts
	}
	return db, total, nil
}

func getRecord(txn *badger.Txn, id fileID) (*Record, error) {
	item, err := txn.Get(id[:])
	if err != nil {
		return nil, err
	}
	var rec *Record
	err = item.Value(func(bin []byte) error {
		rec, err = binToRecord(bin)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func binToRecord(bin []byte) (*Record, error) {
	var rec Record
	if err := gob.NewDecoder(bytes.NewReader(bin)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode stored record: %w", err)
	}
	return &rec, nil
}

func recordToBin(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("failed to encode record for %s: %w", rec.File, err)
	}
	return buf.Bytes(), nil
}

func (s *Store) retryView(fn func(txn *badger.Txn) error) error {
	var err error
	for {
		err = s.backing.View(fn)
		if err != badger.ErrConflict {
			break
		}
	}
	return err
}

func (s *Store) retryUpdate(fn func(txn *badger.Txn) error) error {
	var err error
	for {
		err = s.backing.Update(fn)
		if err != badger.ErrConflict {
			break
		}
	}
	return err
}
