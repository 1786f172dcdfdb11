// Package backup archives the settings file and its alias file into a
// bzip2-compressed tarball.
package backup

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/dsnet/compress/bzip2"
)

// Suffix is appended to archive names that lack it
const Suffix = ".tar.bz2"

// TimeFormat is the timestamp layout of default archive names
const TimeFormat = "2006-01-02 15:04:05"

var (
	// ErrExists is returned when the archive name is already taken
	ErrExists = errors.New("file exists")
	// ErrMissingSettings is returned when there is no settings file to archive
	ErrMissingSettings = errors.New("config file missing")
)

// DefaultName returns "<settings> backup <timestamp>.tar.bz2"
func DefaultName(settingsPath string, clk clock.Clock) string {
	return fmt.Sprintf("%s backup %s%s", settingsPath, clk.Now().Format(TimeFormat), Suffix)
}

// Name resolves the archive name for a request; an empty filename selects
// the default name
func Name(settingsPath, filename string, clk clock.Clock) string {
	if filename == "" {
		return DefaultName(settingsPath, clk)
	}
	if !strings.HasSuffix(filename, Suffix) {
		filename += Suffix
	}
	return filename
}

// Write archives the settings file and, when present, "<settings>.alias".
// It returns the archive name. The archive is never overwritten and is
// removed again if writing fails.
func Write(settingsPath, filename string, clk clock.Clock) (string, error) {
	name := Name(settingsPath, filename, clk)

	if _, err := os.Stat(name); err == nil {
		return name, fmt.Errorf("%w: %s", ErrExists, name)
	}
	if _, err := os.Stat(settingsPath); err != nil {
		if os.IsNotExist(err) {
			return name, ErrMissingSettings
		}
		return name, err
	}

	members := []string{settingsPath}
	if _, err := os.Stat(settingsPath + ".alias"); err == nil {
		members = append(members, settingsPath+".alias")
	}

	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return name, fmt.Errorf("%w: %s", ErrExists, name)
		}
		return name, err
	}
	if err := writeArchive(f, members, clk); err != nil {
		f.Close()
		os.Remove(name)
		return name, err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return name, err
	}
	return name, nil
}

func writeArchive(w io.Writer, members []string, clk clock.Clock) error {
	bz, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	if err != nil {
		return err
	}
	tw := tar.NewWriter(bz)
	for _, m := range members {
		if err := addFile(tw, m, clk); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return bz.Close()
}

func addFile(tw *tar.Writer, path string, clk clock.Clock) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = MemberName(path)
	if hdr.ModTime.IsZero() {
		hdr.ModTime = clk.Now()
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// MemberName is the name a file is stored under: its absolute path without
// the leading separator
func MemberName(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.ToSlash(path)
	if vol := filepath.VolumeName(path); vol != "" {
		path = strings.TrimPrefix(path, vol)
	}
	return strings.TrimLeft(path, "/")
}
