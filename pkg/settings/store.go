// Package settings is the durable settings store of the client: a
// two-level section/option mapping backed by an INI file, together with the
// download queue, the alias file and the share index tables. Every public
// method takes the store lock for its full duration.
package settings

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/benbjohnson/clock"

	"github.com/butter-bot-machines/slskconf/pkg/alias"
	"github.com/butter-bot-machines/slskconf/pkg/charset"
	"github.com/butter-bot-machines/slskconf/pkg/errors"
	"github.com/butter-bot-machines/slskconf/pkg/logging"
	slogwrap "github.com/butter-bot-machines/slskconf/pkg/logging/slog"
	"github.com/butter-bot-machines/slskconf/pkg/migrate"
	"github.com/butter-bot-machines/slskconf/pkg/schema"
	"github.com/butter-bot-machines/slskconf/pkg/sharedb"
	"github.com/butter-bot-machines/slskconf/pkg/value"
)

// Prompter is told about settings the user has to fill in
type Prompter interface {
	// InvalidSetting marks one option as needing attention
	InvalidSetting(section, option string)
	// ShowSettings asks for the settings dialog to be presented
	ShowSettings(sections map[string]map[string]value.Value)
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the log sink
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the clock used for backup names
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithHomeDir sets the directory download and upload paths default into
func WithHomeDir(dir string) Option {
	return func(s *Store) { s.homeDir = dir }
}

// WithPrompter sets the receiver of configuration prompts
func WithPrompter(p Prompter) Option {
	return func(s *Store) { s.prompter = p }
}

// Store holds the live settings
type Store struct {
	mu sync.Mutex

	path     string
	dataDir  string
	homeDir  string
	logger   logging.Logger
	clock    clock.Clock
	prompter Prompter
	panics   errors.PanicHandler

	registry *schema.Registry
	migrator *migrate.Migrator
	doc      *document
	sections map[string]map[string]value.Value

	downloads value.Value
	aliases   alias.Set
	shares    map[sharedb.Visibility]*sharedb.TableSet

	// digest of the last settings file this store wrote
	lastWrite [sha256.Size]byte
	written   bool
}

// New reads the settings file at path and prepares a store whose queue and
// share tables live in dataDir. Call ReadConfig to apply the file. A missing
// or unreadable file yields the defaults.
func New(path, dataDir string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.ConfigError.New("settings path is empty")
	}
	if dataDir == "" {
		return nil, errors.ConfigError.New("data directory is empty")
	}

	s := &Store{
		path:      path,
		dataDir:   dataDir,
		migrator:  migrate.Default(),
		downloads: value.List(),
		shares:    make(map[sharedb.Visibility]*sharedb.TableSet, 2),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slogwrap.New(logging.LevelInfo, logging.FormatText, os.Stderr, false)
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.homeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			s.homeDir = home
		} else {
			s.homeDir = dataDir
		}
	}
	s.panics = errors.NewPanicHandler(errors.NewRegistry(), s.logger)
	s.registry = schema.Defaults(dataDir, s.homeDir)
	s.sections = s.registry.Values()
	s.doc = s.loadDocument()

	aliases, err := alias.Load(s.aliasPath())
	if err != nil {
		switch {
		case errors.IsType(err, errors.SecurityError):
			s.logger.Error("ignoring alias file with forbidden content", "path", s.aliasPath(), "error", err)
		case !os.IsNotExist(err):
			s.logger.Warn("ignoring alias file", "path", s.aliasPath(), "error", err)
		}
		aliases = alias.Set{}
	}
	s.aliases = aliases
	return s, nil
}

// loadDocument parses the settings file, converting it to UTF-8 first when
// needed
func (s *Store) loadDocument() *document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("can't read config file", "path", s.path, "error", err)
		}
		return newDocument()
	}
	if !utf8.Valid(data) {
		name, err := charset.Convert(s.path)
		if err != nil {
			s.logger.Error("can't convert config file to utf-8", "path", s.path, "error", err)
			return newDocument()
		}
		s.logger.Info("converted config file to utf-8", "path", s.path, "charset", name)
		if data, err = os.ReadFile(s.path); err != nil {
			s.logger.Error("can't read config file", "path", s.path, "error", err)
			return newDocument()
		}
	}
	doc, err := parseDocument(data)
	if err != nil {
		s.logger.Error("can't parse config file", "path", s.path, "error", err)
		return newDocument()
	}
	return doc
}

// Path returns the settings file
func (s *Store) Path() string {
	return s.path
}

// DataDir returns the directory of the queue and share tables
func (s *Store) DataDir() string {
	return s.dataDir
}

// Registry returns the option declarations
func (s *Store) Registry() *schema.Registry {
	return s.registry
}

func (s *Store) aliasPath() string {
	return s.path + ".alias"
}

func (s *Store) queuePath() string {
	return filepath.Join(s.dataDir, QueueFile)
}

// Get returns a copy of an option value
func (s *Store) Get(section, option string) (value.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sections[section][option]
	if !ok {
		return value.None(), false
	}
	return v.Clone(), true
}

// Set stores an option value. The section and option must be declared (or
// tolerated) and the value must fit the option. Options persisted outside
// the settings file cannot be set.
func (s *Store) Set(section, option string, v value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	opt, err := s.registry.Check(section, option, v)
	if err != nil {
		return errors.ConfigError.Wrap(err, "can't set %s.%s", section, option)
	}
	if opt.External {
		return errors.ConfigError.New("%s.%s is stored outside the settings file", section, option)
	}
	if text, ok := v.Text(); ok && opt.RawText {
		v = value.Text(strings.TrimSpace(text))
	}
	s.sections[section][option] = v.Clone()
	return nil
}

// Snapshot returns a deep copy of every section without the externally
// stored options
func (s *Store) Snapshot() map[string]map[string]value.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() map[string]map[string]value.Value {
	out := make(map[string]map[string]value.Value, len(s.sections))
	for section, options := range s.sections {
		copied := make(map[string]value.Value, len(options))
		for name, v := range options {
			if opt, ok := s.registry.Lookup(section, name); ok && opt.External {
				continue
			}
			copied[name] = v.Clone()
		}
		out[section] = copied
	}
	return out
}

// Downloads returns the download queue
func (s *Store) Downloads() value.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads.Clone()
}

// SetDownloads replaces the download queue, which must be a list
func (s *Store) SetDownloads(v value.Value) error {
	if v.Kind() != value.KindList {
		return errors.ConfigError.New("download queue must be a list, got %s", v.Kind())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads = v.Clone()
	return nil
}

// Aliases returns a copy of the alias set
func (s *Store) Aliases() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliases.Clone()
}

// AddAlias defines, shows or lists aliases; see alias.Set.Add
func (s *Store) AddAlias(rest string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, changed := s.aliases.Add(rest)
	if changed {
		s.saveAliases()
	}
	return msg
}

// RemoveAlias deletes an alias
func (s *Store) RemoveAlias(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, changed := s.aliases.Remove(name)
	if changed {
		s.saveAliases()
	}
	return msg
}

// WriteAliases persists the alias set
func (s *Store) WriteAliases() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAliases()
}

func (s *Store) saveAliases() error {
	if err := s.aliases.Save(s.aliasPath()); err != nil {
		s.logger.Warn("something went wrong while saving your alias file", "path", s.aliasPath(), "error", err)
		return errors.StorageError.Wrap(err, "can't save alias file")
	}
	return nil
}

// Close releases the share tables
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeShares()
}

func (s *Store) closeShares() error {
	agg := errors.NewAggregate()
	for vis, set := range s.shares {
		agg.Add(set.Close())
		delete(s.shares, vis)
	}
	return agg.ErrorOrNil()
}

// options returns the option names of a section: declared options in
// declaration order, then any others sorted by name
func (s *Store) options(section string) []string {
	live := s.sections[section]
	var names []string
	seen := make(map[string]bool, len(live))
	for _, o := range s.registry.Section(section) {
		if _, ok := live[o.Name]; ok {
			names = append(names, o.Name)
			seen[o.Name] = true
		}
	}
	var extra []string
	for name := range live {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}
