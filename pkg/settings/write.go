package settings

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"strings"

	"github.com/butter-bot-machines/slskconf/pkg/backup"
	"github.com/butter-bot-machines/slskconf/pkg/errors"
	"github.com/butter-bot-machines/slskconf/pkg/pickle"
	"github.com/butter-bot-machines/slskconf/pkg/schema"
	"github.com/butter-bot-machines/slskconf/pkg/value"
)

// WriteConfiguration saves the live sections to the settings file. The
// file is written to <path>.new, a non-empty current file is kept as
// <path>.old and the new file is renamed into place. Options stored
// elsewhere are removed from the file.
func (s *Store) WriteConfiguration() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.syncDocument()
	data, err := s.doc.Bytes()
	if err != nil {
		s.logger.Warn("can't save config file", "error", err)
		return errors.StorageError.Wrap(err, "can't save config file")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		s.logger.Warn("can't create directory", "path", dir, "error", err)
	}

	tmp := s.path + ".new"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		s.logger.Warn("can't save config file, I/O error", "path", tmp, "error", err)
		return errors.StorageError.Wrap(err, "can't save config file")
	}
	_ = os.Chmod(tmp, 0600)
	_ = os.Chmod(s.path, 0600)

	if info, err := os.Stat(s.path); err == nil && info.Size() > 0 {
		old := s.path + ".old"
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("can't remove old config file", "path", old, "error", err)
		}
		if err := os.Rename(s.path, old); err != nil {
			s.logger.Warn("can't back config file up", "path", old, "error", err)
		}
	}

	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Warn("can't rename config file", "path", s.path, "error", err)
		return errors.StorageError.Wrap(err, "can't rename config file")
	}
	s.lastWrite = sha256.Sum256(data)
	s.written = true
	return nil
}

// syncDocument copies the live sections into the document
func (s *Store) syncDocument() {
	for _, section := range s.registry.Sections() {
		for _, name := range s.options(section) {
			opt, known := s.registry.Lookup(section, name)
			if known && opt.External {
				s.doc.RemoveOption(section, name)
				continue
			}
			s.doc.Set(section, name, render(opt, known, s.sections[section][name]))
		}
	}
}

// render produces the stored text of a value. Raw text loses surrounding
// whitespace, as it would on the next read.
func render(opt schema.Option, known bool, v value.Value) string {
	if known && opt.RawText {
		if v.IsNone() {
			return "None"
		}
		if text, ok := v.Text(); ok {
			return strings.TrimSpace(text)
		}
	}
	return value.Format(v)
}

// WriteDownloadQueue saves the download queue through a temporary file.
// When the rename fails the current queue is moved to "<queue> .backup"
// and the rename is retried.
func (s *Store) WriteDownloadQueue() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queuePath()
	tmp := queue + ".tmp"
	backupFile := queue + " .backup"

	if err := os.WriteFile(tmp, pickle.Encode(s.downloads), 0600); err != nil {
		s.logger.Warn("something went wrong while writing your transfer list", "path", tmp, "error", err)
		return errors.StorageError.Wrap(err, "can't write transfer list")
	}
	if err := os.Rename(tmp, queue); err == nil {
		return nil
	}
	if err := os.RemoveAll(backupFile); err != nil {
		s.logger.Debug("can't remove transfer list backup", "path", backupFile, "error", err)
	}
	if err := os.Rename(queue, backupFile); err != nil {
		s.logger.Warn("something went wrong while writing your transfer list", "path", queue, "error", err)
		return errors.StorageError.Wrap(err, "can't write transfer list")
	}
	if err := os.Rename(tmp, queue); err != nil {
		s.logger.Warn("something went wrong while writing your transfer list", "path", queue, "error", err)
		return errors.StorageError.Wrap(err, "can't write transfer list")
	}
	return nil
}

// WriteConfig saves the settings file and then the download queue
func (s *Store) WriteConfig() error {
	agg := errors.NewAggregate()
	agg.Add(s.WriteConfiguration())
	agg.Add(s.WriteDownloadQueue())
	return agg.ErrorOrNil()
}

// WriteConfigBackup archives the settings file and the alias file. An
// empty filename selects "<path> backup <time>.tar.bz2". It returns the
// archive name.
func (s *Store) WriteConfigBackup(filename string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := backup.Write(s.path, filename, s.clock)
	if err == nil {
		return name, nil
	}
	s.logger.Warn("cannot write backup archive", "file", name, "error", err)
	return name, errors.BackupError.Wrap(err, "cannot write backup archive")
}

// PushHistory moves text to the front of a list option, keeping at most
// max entries, then saves the configuration.
func (s *Store) PushHistory(section, option, text string, max int) error {
	if err := s.pushHistory(section, option, text, max); err != nil {
		return err
	}
	return s.WriteConfig()
}

func (s *Store) pushHistory(section, option, text string, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.sections[section]
	if !ok {
		return errors.ConfigError.New("unknown config section %s", section)
	}
	history := live[option]
	if !history.IsNone() && history.Kind() != value.KindList {
		return errors.ConfigError.New("%s.%s is not a list", section, option)
	}
	items := history.Items()
	entry := value.Text(text)

	found := -1
	for i, item := range items {
		if item.Equal(entry) {
			found = i
			break
		}
	}
	if found >= 0 {
		items = append(items[:found], items[found+1:]...)
	} else if max > 0 && len(items) >= max {
		items = items[:len(items)-1]
	}
	live[option] = value.List(append([]value.Value{entry}, items...)...)
	return nil
}

// Reload applies the settings file again if it changed since this store
// last wrote it. It reports whether the file was applied.
func (s *Store) Reload() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return false, errors.StorageError.Wrap(err, "can't read config file")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written && sha256.Sum256(data) == s.lastWrite {
		return false, nil
	}
	s.doc = s.loadDocument()
	s.sections = s.registry.Values()
	s.readConfig()
	return true, nil
}
