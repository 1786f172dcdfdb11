package settings

import (
	"bytes"

	"gopkg.in/ini.v1"
)

// Values may hold ';' and '#', Windows paths end in a backslash and option
// names are matched case-insensitively.
var loadOptions = ini.LoadOptions{
	IgnoreInlineComment:     true,
	PreserveSurroundedQuote: true,
	IgnoreContinuation:      true,
	InsensitiveKeys:         true,
}

// document is the parsed settings file. Options it holds that the registry
// does not know are written back untouched.
type document struct {
	f *ini.File
}

func newDocument() *document {
	return &document{f: ini.Empty(loadOptions)}
}

func parseDocument(data []byte) (*document, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, err
	}
	return &document{f: f}, nil
}

// Sections lists the sections in file order
func (d *document) Sections() []string {
	var out []string
	for _, s := range d.f.Sections() {
		if s.Name() != ini.DefaultSection {
			out = append(out, s.Name())
		}
	}
	return out
}

// Options lists the (option, raw value) pairs of a section in file order
func (d *document) Options(section string) [][2]string {
	s, err := d.f.GetSection(section)
	if err != nil {
		return nil
	}
	keys := s.Keys()
	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{k.Name(), k.Value()})
	}
	return out
}

func (d *document) HasSection(section string) bool {
	if section == ini.DefaultSection {
		return false
	}
	_, err := d.f.GetSection(section)
	return err == nil
}

func (d *document) RemoveSection(section string) {
	d.f.DeleteSection(section)
}

func (d *document) HasOption(section, option string) bool {
	s, err := d.f.GetSection(section)
	return err == nil && s.HasKey(option)
}

func (d *document) RemoveOption(section, option string) {
	if s, err := d.f.GetSection(section); err == nil {
		s.DeleteKey(option)
	}
}

// Set stores the raw text of an option, creating the section if needed
func (d *document) Set(section, option, raw string) {
	d.f.Section(section).Key(option).SetValue(raw)
}

// Bytes renders the document
func (d *document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
