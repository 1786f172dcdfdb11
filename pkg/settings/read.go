package settings

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/butter-bot-machines/slskconf/pkg/pickle"
	"github.com/butter-bot-machines/slskconf/pkg/sharedb"
	"github.com/butter-bot-machines/slskconf/pkg/value"
)

const (
	// QueueFile holds the download queue in the data directory
	QueueFile = "downloads.queue"
	// LegacyQueueFile is read when QueueFile does not exist yet
	LegacyQueueFile = "transfers.pickle"
)

// ReadConfig applies the settings file to the live sections: it loads the
// download queue, drops obsolete options, parses every known option, turns
// bare share paths into virtual shares, opens the share tables and orders
// the port range. Problems are logged; nothing here is fatal.
func (s *Store) ReadConfig() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readConfig()
}

func (s *Store) readConfig() {
	s.downloads = s.readDownloadQueue()

	for _, dir := range []string{filepath.Dir(s.path), s.dataDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			s.logger.Warn("can't create directory", "path", dir, "error", err)
		}
	}

	for _, r := range s.migrator.Apply(s.doc) {
		s.logger.Debug("removed obsolete config entry", "section", r.Section, "option", r.Option, "since", r.Since.String())
	}

	s.applyDocument()

	for _, option := range []string{"shared", "buddyshared"} {
		s.sections["transfers"][option] = s.virtualShares(s.sections["transfers"][option])
	}

	s.openShares()
	s.normalisePortRange()
}

func (s *Store) readDownloadQueue() value.Value {
	path := s.queuePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Join(s.dataDir, LegacyQueueFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("something went wrong while opening your transfer list", "path", path, "error", err)
		}
		return value.List()
	}
	v, err := pickle.Unmarshal(data)
	if err != nil {
		s.logger.Warn("something went wrong while reading your transfer list", "path", path, "error", err)
		return value.List()
	}
	switch v.Kind() {
	case value.KindList:
		return v
	case value.KindPair:
		return value.List(v.Items()...)
	}
	s.logger.Warn("something went wrong while reading your transfer list", "path", path, "error", "not a list")
	return value.List()
}

// applyDocument parses the raw options of the document into the live
// sections
func (s *Store) applyDocument() {
	for _, section := range s.doc.Sections() {
		if !s.registry.HasSection(section) {
			s.logger.Warn("unknown config section", "section", section)
			continue
		}
		for _, kv := range s.doc.Options(section) {
			name, raw := kv[0], kv[1]
			opt, known := s.registry.Lookup(section, name)
			if !known && !s.registry.Tolerates(section, name) {
				s.logger.Warn("unknown config option", "section", section, "option", name)
				continue
			}
			if known && opt.External {
				continue
			}
			if known && opt.RawText {
				if raw == "None" {
					s.sections[section][name] = value.None()
				} else {
					s.sections[section][name] = value.Text(raw)
				}
				continue
			}

			v, err := value.Parse(raw)
			switch {
			case err != nil && !known:
				v = value.Text(raw)
			case err != nil:
				s.logger.Error("couldn't decode config value", "section", section, "option", name, "value", raw, "error", err)
				v = value.None()
			case known && !opt.Accepts(v):
				s.logger.Warn("config value has the wrong type, using default", "section", section, "option", name,
					"value", raw, "want", opt.Kind.String())
				v = opt.Default.Clone()
			}
			s.sections[section][name] = v
		}
	}
}

// virtualShares turns bare share paths into (virtual name, path) pairs
func (s *Store) virtualShares(shares value.Value) value.Value {
	if shares.IsNone() {
		return value.List()
	}
	items := shares.Items()
	out := make([]value.Value, 0, len(items))
	for _, item := range items {
		switch item.Kind() {
		case value.KindPair:
			out = append(out, item)
		case value.KindList:
			out = append(out, value.Pair(item.Items()...))
		case value.KindText:
			path, _ := item.Text()
			virtual := VirtualName(path)
			s.logger.Warn("renaming shared folder, a rescan of your share is required", "path", path, "virtual", virtual)
			out = append(out, value.Pair(value.Text(virtual), value.Text(path)))
		default:
			s.logger.Warn("dropping invalid share entry", "entry", value.Format(item))
		}
	}
	return value.List(out...)
}

// VirtualName derives the virtual share name of a bare path
func VirtualName(path string) string {
	virtual := strings.NewReplacer("/", "_", `\`, "_").Replace(path)
	return strings.Trim(virtual, "_")
}

// openShares opens both table sets, clearing all of them when any table
// had to be recreated. Tables locked by another store are left alone.
func (s *Store) openShares() {
	s.closeShares()
	var failed []string
	for _, vis := range sharedb.Visibilities {
		set, bad, err := sharedb.OpenSet(s.dataDir, vis)
		if err != nil {
			s.closeShares()
			s.logger.Warn("share tables are in use by another process, sharing is unavailable", "error", err)
			return
		}
		s.shares[vis] = set
		failed = append(failed, bad...)
	}
	if len(failed) == 0 {
		return
	}
	s.logger.Warn("failed to process databases", "files", strings.Join(failed, ", "))
	s.clearShares()
	s.logger.Warn("shared files database seems to be corrupted, rescan your shares")
}

// normalisePortRange stores the port range as (lowest, highest)
func (s *Store) normalisePortRange() {
	v := s.sections["server"]["portrange"]
	items := v.Items()
	if len(items) == 0 {
		s.resetToDefault("server", "portrange")
		return
	}
	lo, ok := items[0].Int()
	if !ok {
		s.resetToDefault("server", "portrange")
		return
	}
	hi := lo
	for _, item := range items[1:] {
		n, ok := item.Int()
		if !ok {
			s.resetToDefault("server", "portrange")
			return
		}
		if n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}
	s.sections["server"]["portrange"] = value.Pair(value.Int(lo), value.Int(hi))
}

func (s *Store) resetToDefault(section, option string) {
	opt, _ := s.registry.Lookup(section, option)
	s.logger.Warn("config option reset to default", "section", section, "option", option, "default", value.Format(opt.Default))
	s.sections[section][option] = opt.Default.Clone()
}
