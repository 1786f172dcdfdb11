package sharedb

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/butter-bot-machines/slskconf/pkg/errors"
)

// TableSet holds the five tables of one visibility
type TableSet struct {
	vis    Visibility
	dir    string
	tables map[TableKind]*Table
}

// ErrLocked is returned when another store holds a table open
var ErrLocked = stderrors.New("share table is in use")

// OpenSet opens the five tables of vis in dir. A table that fails to open
// is deleted and recreated empty; the paths of such tables are returned so
// the caller can run a full recovery. A table that cannot even be recreated
// is left unavailable. A table locked by another store is never deleted:
// the set is closed and the error wraps ErrLocked.
func OpenSet(dir string, vis Visibility) (*TableSet, []string, error) {
	s := &TableSet{vis: vis, dir: dir, tables: make(map[TableKind]*Table, len(Kinds))}
	var failed []string
	for _, k := range Kinds {
		path := filepath.Join(dir, FileName(vis, k))
		t, err := OpenTable(path)
		if errors.Is(err, bolt.ErrTimeout) {
			s.Close()
			return nil, nil, errors.StorageError.Wrap(ErrLocked, "%s", path)
		}
		if err != nil {
			failed = append(failed, path)
			t, err = CreateTable(path)
			if err != nil {
				continue
			}
		}
		s.tables[k] = t
	}
	return s, failed, nil
}

// Visibility returns the share set the tables belong to
func (s *TableSet) Visibility() Visibility {
	return s.vis
}

// Table returns one table, or nil when it is unavailable
func (s *TableSet) Table(kind TableKind) *Table {
	if s == nil {
		return nil
	}
	return s.tables[kind]
}

// Close closes every table
func (s *TableSet) Close() error {
	if s == nil {
		return nil
	}
	agg := errors.NewAggregate()
	for _, k := range Kinds {
		if t := s.tables[k]; t != nil {
			agg.Add(t.Close())
		}
	}
	s.tables = make(map[TableKind]*Table)
	return agg.ErrorOrNil()
}

// ClearShares closes the given sets, ignoring close errors, deletes all ten
// table files in dir and creates them anew. It returns the fresh public and
// buddy sets, or an error when a table cannot be created, in which case
// sharing is unavailable until the next successful rescan.
func ClearShares(dir string, sets ...*TableSet) (*TableSet, *TableSet, error) {
	for _, s := range sets {
		_ = s.Close()
	}
	fresh := make(map[Visibility]*TableSet, 2)
	for _, v := range Visibilities {
		fresh[v] = &TableSet{vis: v, dir: dir, tables: make(map[TableKind]*Table, len(Kinds))}
	}
	for _, k := range Kinds {
		for _, v := range Visibilities {
			t, err := CreateTable(filepath.Join(dir, FileName(v, k)))
			if err != nil {
				fresh[Public].Close()
				fresh[Buddy].Close()
				return nil, nil, errors.StorageError.Wrap(err, "error while writing database files")
			}
			fresh[v].tables[k] = t
		}
	}
	return fresh[Public], fresh[Buddy], nil
}

// StoreResult reports the outcome of storing one Storable
type StoreResult struct {
	Kind TableKind
	File string
	Err  error
}

// StoreObjects replaces the content of each destination table. Every table
// is first written to a staging file which is then renamed over the live
// file, so a failure leaves that table with its previous content. Failures
// are isolated per storable.
func (s *TableSet) StoreObjects(objects ...Storable) []StoreResult {
	results := make([]StoreResult, 0, len(objects))
	for _, obj := range objects {
		name := FileName(s.vis, obj.Kind)
		err := s.store(obj)
		if err != nil {
			err = errors.StorageError.Wrap(err, "can't save %s", name).WithContext("visibility", s.vis.String())
		}
		results = append(results, StoreResult{Kind: obj.Kind, File: name, Err: err})
	}
	return results
}

func (s *TableSet) store(obj Storable) error {
	if _, ok := kindNames[obj.Kind]; !ok {
		return fmt.Errorf("unknown table kind %d", obj.Kind)
	}
	live := filepath.Join(s.dir, FileName(s.vis, obj.Kind))
	staging := live + ".staging"

	entries := obj.Entries
	if obj.Kind == FileIndex {
		entries = make([]Entry, len(obj.Entries))
		for i, e := range obj.Entries {
			entries[i] = Entry{Key: strconv.Itoa(i), Value: e.Value}
		}
	}

	t, err := CreateTable(staging)
	if err != nil {
		return err
	}
	if err := t.PutAll(entries); err != nil {
		t.Close()
		os.Remove(staging)
		return err
	}
	if err := t.Close(); err != nil {
		os.Remove(staging)
		return err
	}

	if old := s.tables[obj.Kind]; old != nil {
		old.Close()
		delete(s.tables, obj.Kind)
	}
	if err := os.Rename(staging, live); err != nil {
		os.Remove(staging)
		s.reopen(obj.Kind, live)
		return err
	}
	reopened, err := OpenTable(live)
	if err != nil {
		return err
	}
	s.tables[obj.Kind] = reopened
	return nil
}

// reopen restores the live table after a failed swap
func (s *TableSet) reopen(kind TableKind, path string) {
	if t, err := OpenTable(path); err == nil {
		s.tables[kind] = t
	}
}

// Empty reports whether every table of the set is empty
func (s *TableSet) Empty() bool {
	for _, k := range Kinds {
		t := s.Table(k)
		if t == nil {
			continue
		}
		if n, err := t.Len(); err != nil || n > 0 {
			return false
		}
	}
	return true
}

func (s *TableSet) table(kind TableKind) (*Table, error) {
	t := s.Table(kind)
	if t == nil {
		return nil, errors.StorageError.New("%s is unavailable", FileName(s.vis, kind))
	}
	return t, nil
}

// Shares returns the names of the shares in the files table
func (s *TableSet) Shares() ([]string, error) {
	t, err := s.table(Files)
	if err != nil {
		return nil, err
	}
	return t.Keys()
}

// Files returns the file list of a share
func (s *TableSet) Files(share string) ([]FileEntry, bool, error) {
	t, err := s.table(Files)
	if err != nil {
		return nil, false, err
	}
	b, ok, err := t.Get(share)
	if err != nil || !ok {
		return nil, ok, err
	}
	files, err := decodeFiles(b)
	return files, true, err
}

// Stream returns the pre-encoded browse stream of a share
func (s *TableSet) Stream(share string) ([]byte, bool, error) {
	t, err := s.table(Streams)
	if err != nil {
		return nil, false, err
	}
	return t.Get(share)
}

// Words returns the file indices containing a search word
func (s *TableSet) Words(token string) ([]int, error) {
	t, err := s.table(WordIndex)
	if err != nil {
		return nil, err
	}
	b, ok, err := t.Get(token)
	if err != nil || !ok {
		return nil, err
	}
	var out []int
	err = msgpack.Unmarshal(b, &out)
	return out, err
}

// FileAt returns the file with the given index
func (s *TableSet) FileAt(i int) (IndexedFile, bool, error) {
	t, err := s.table(FileIndex)
	if err != nil {
		return IndexedFile{}, false, err
	}
	b, ok, err := t.Get(strconv.Itoa(i))
	if err != nil || !ok {
		return IndexedFile{}, ok, err
	}
	var out IndexedFile
	err = msgpack.Unmarshal(b, &out)
	return out, true, err
}

// Mtime returns the recorded modification time of a share in unix seconds
func (s *TableSet) Mtime(share string) (int64, bool, error) {
	t, err := s.table(Mtimes)
	if err != nil {
		return 0, false, err
	}
	b, ok, err := t.Get(share)
	if err != nil || !ok {
		return 0, ok, err
	}
	var out int64
	err = msgpack.Unmarshal(b, &out)
	return out, true, err
}

// Search returns the indexed files matching every word of query, in index
// order
func (s *TableSet) Search(query string) ([]IndexedFile, error) {
	words := Tokenize(query)
	if len(words) == 0 {
		return nil, nil
	}
	var hits map[int]bool
	for _, w := range words {
		ids, err := s.Words(w)
		if err != nil {
			return nil, err
		}
		next := make(map[int]bool, len(ids))
		for _, id := range ids {
			if hits == nil || hits[id] {
				next[id] = true
			}
		}
		hits = next
		if len(hits) == 0 {
			return nil, nil
		}
	}
	ids := make([]int, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]IndexedFile, 0, len(ids))
	for _, id := range ids {
		f, ok, err := s.FileAt(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}
