package sharedb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/vmihailenco/msgpack/v5"
)

// Visibility selects the public or the buddy-only share set
type Visibility int

const (
	Public Visibility = iota
	Buddy
)

// Visibilities lists both share sets
var Visibilities = []Visibility{Public, Buddy}

func (v Visibility) String() string {
	if v == Buddy {
		return "buddy"
	}
	return "public"
}

// TableKind identifies one of the five tables of a set
type TableKind int

const (
	Files TableKind = iota
	Streams
	WordIndex
	FileIndex
	Mtimes
)

// Kinds lists the tables of a set in on-disk order
var Kinds = []TableKind{Files, Streams, WordIndex, FileIndex, Mtimes}

var kindNames = map[TableKind]string{
	Files:     "files",
	Streams:   "streams",
	WordIndex: "wordindex",
	FileIndex: "fileindex",
	Mtimes:    "mtimes",
}

var optionNames = map[TableKind]string{
	Files:     "sharedfiles",
	Streams:   "sharedfilesstreams",
	WordIndex: "wordindex",
	FileIndex: "fileindex",
	Mtimes:    "sharedmtimes",
}

func (k TableKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// FileName returns the canonical file name of a table, e.g. buddyfiles.db
func FileName(vis Visibility, kind TableKind) string {
	if vis == Buddy {
		return "buddy" + kindNames[kind] + ".db"
	}
	return kindNames[kind] + ".db"
}

// OptionName returns the transfers option the table is registered under
func OptionName(vis Visibility, kind TableKind) string {
	if vis == Buddy {
		return "b" + optionNames[kind]
	}
	return optionNames[kind]
}

// FileNames lists the ten table files, public before buddy for each kind
func FileNames() []string {
	out := make([]string, 0, len(Kinds)*len(Visibilities))
	for _, k := range Kinds {
		for _, v := range Visibilities {
			out = append(out, FileName(v, k))
		}
	}
	return out
}

// FileEntry describes one shared file
type FileEntry struct {
	_msgpack   struct{} `msgpack:",as_array"`
	Name       string
	Size       int64
	Bitrate    *uint32
	Duration   *uint32
	Attributes []uint32
}

// IndexedFile is a file index record: the share and the file in it
type IndexedFile struct {
	_msgpack struct{} `msgpack:",as_array"`
	Share    string
	File     FileEntry
}

// Snapshot is a complete share set as produced by a rescan
type Snapshot struct {
	Files     map[string][]FileEntry
	Streams   map[string][]byte
	WordIndex map[string][]int
	FileIndex []IndexedFile
	Mtimes    map[string]int64
}

// Storable is the full content of one table. For the file index the keys
// are ignored; entries are numbered in order.
type Storable struct {
	Kind    TableKind
	Entries []Entry
}

// Storables encodes the snapshot, map keys in sorted order
func (s Snapshot) Storables() ([]Storable, error) {
	files, err := encodeMap(s.Files)
	if err != nil {
		return nil, fmt.Errorf("encode files: %w", err)
	}
	streams := make([]Entry, 0, len(s.Streams))
	for _, k := range sortedKeys(s.Streams) {
		streams = append(streams, Entry{Key: k, Value: append([]byte{}, s.Streams[k]...)})
	}
	mtimes, err := encodeMap(s.Mtimes)
	if err != nil {
		return nil, fmt.Errorf("encode mtimes: %w", err)
	}
	words, err := encodeMap(s.WordIndex)
	if err != nil {
		return nil, fmt.Errorf("encode word index: %w", err)
	}
	index := make([]Entry, len(s.FileIndex))
	for i, f := range s.FileIndex {
		b, err := msgpack.Marshal(&f)
		if err != nil {
			return nil, fmt.Errorf("encode file index: %w", err)
		}
		index[i] = Entry{Key: strconv.Itoa(i), Value: b}
	}
	return []Storable{
		{Kind: Files, Entries: files},
		{Kind: Streams, Entries: streams},
		{Kind: Mtimes, Entries: mtimes},
		{Kind: WordIndex, Entries: words},
		{Kind: FileIndex, Entries: index},
	}, nil
}

func encodeMap[V any](m map[string]V) ([]Entry, error) {
	out := make([]Entry, 0, len(m))
	for _, k := range sortedKeys(m) {
		b, err := msgpack.Marshal(m[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out = append(out, Entry{Key: k, Value: b})
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tokenize splits a path into lower-cased search words
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Index builds a snapshot from the files of each share. File indices follow
// share name order, then file order within a share; each word lists the
// indices of the files whose share or name contain it, without repeats.
func Index(shares map[string][]FileEntry, mtimes map[string]int64) Snapshot {
	snap := Snapshot{
		Files:     make(map[string][]FileEntry, len(shares)),
		Streams:   make(map[string][]byte, len(shares)),
		WordIndex: make(map[string][]int),
		Mtimes:    make(map[string]int64, len(mtimes)),
	}
	for k, v := range mtimes {
		snap.Mtimes[k] = v
	}
	for _, share := range sortedKeys(shares) {
		files := shares[share]
		snap.Files[share] = append([]FileEntry{}, files...)
		snap.Streams[share] = encodeStream(files)
		for _, f := range files {
			idx := len(snap.FileIndex)
			snap.FileIndex = append(snap.FileIndex, IndexedFile{Share: share, File: f})
			seen := make(map[string]bool)
			for _, word := range append(Tokenize(share), Tokenize(f.Name)...) {
				if seen[word] {
					continue
				}
				seen[word] = true
				snap.WordIndex[word] = append(snap.WordIndex[word], idx)
			}
		}
	}
	return snap
}

// encodeStream packs a share's file list for browse replies
func encodeStream(files []FileEntry) []byte {
	b, err := msgpack.Marshal(files)
	if err != nil {
		return nil
	}
	return b
}

// decodeFiles reads a files table value
func decodeFiles(b []byte) ([]FileEntry, error) {
	var out []FileEntry
	err := msgpack.Unmarshal(b, &out)
	return out, err
}
