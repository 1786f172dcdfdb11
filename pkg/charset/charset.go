// Package charset converts a text file of unknown encoding to UTF-8 in place.
package charset

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrUndetected is returned when no encoding could be guessed
var ErrUndetected = errors.New("charset not detected")

// Detect guesses the encoding of b and returns its name
func Detect(b []byte) (string, error) {
	res, err := chardet.NewTextDetector().DetectBest(b)
	if err != nil || res == nil || res.Charset == "" {
		return "", ErrUndetected
	}
	return res.Charset, nil
}

// Lookup resolves a charset name as reported by the detector
func Lookup(name string) (encoding.Encoding, error) {
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err == nil && enc != nil {
		return enc, nil
	}
	// chardet spells some names with a dash the indexes do not know
	if enc, err := htmlindex.Get(strings.ReplaceAll(name, "-", "")); err == nil {
		return enc, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", name)
}

// Decode converts b from the named charset to UTF-8 with \n line endings
func Decode(b []byte, name string) ([]byte, error) {
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	out = bytes.ReplaceAll(out, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(out, []byte("\r"), []byte("\n")), nil
}

// Convert rewrites the file at path as UTF-8. The original is moved to
// <path>.conv while converting and restored when conversion fails. It returns
// the detected charset.
func Convert(path string) (string, error) {
	conv := path + ".conv"
	if err := os.Rename(path, conv); err != nil {
		return "", err
	}
	restore := func() {
		os.Remove(path)
		os.Rename(conv, path)
	}

	raw, err := os.ReadFile(conv)
	if err != nil {
		restore()
		return "", err
	}
	name, err := Detect(raw)
	if err != nil {
		restore()
		return "", err
	}
	out, err := Decode(raw, name)
	if err != nil {
		restore()
		return name, err
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		restore()
		return name, err
	}
	if err := os.Remove(conv); err != nil {
		return name, err
	}
	return name, nil
}
