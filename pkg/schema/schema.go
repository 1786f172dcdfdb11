// Package schema declares the recognised settings sections and options
// together with their default values and storage attributes.
package schema

import (
	"errors"
	"fmt"

	"github.com/butter-bot-machines/slskconf/pkg/value"
)

var (
	// ErrUnknownSection is returned for a section the registry does not declare
	ErrUnknownSection = errors.New("unknown config section")
	// ErrUnknownOption is returned for an option its section does not declare
	ErrUnknownOption = errors.New("unknown config option")
	// ErrDuplicateOption is returned when an option is registered twice
	ErrDuplicateOption = errors.New("option already registered")
	// ErrKindMismatch is returned when a value does not fit the option kind
	ErrKindMismatch = errors.New("value kind does not match option")
)

// Option describes one (section, option) pair
type Option struct {
	Section string
	Name    string
	Default value.Value
	// Kind is the shape values of this option take. It is the kind of the
	// default.
	Kind value.Kind
	// RawText options are stored verbatim instead of in literal syntax
	RawText bool
	// External options are persisted outside the settings file
	External bool
	// MayBeEmpty options are not reported as incomplete when left empty
	MayBeEmpty bool
	// Required options must be set before connecting
	Required bool
}

// Accepts reports whether v may be stored in the option. None is always
// accepted; numbers and booleans are interchangeable since flags are
// historically stored as 0/1, and so are lists and pairs.
func (o Option) Accepts(v value.Value) bool {
	if v.IsNone() || v.Kind() == o.Kind {
		return true
	}
	switch o.Kind {
	case value.KindNumber:
		return v.Kind() == value.KindBoolean
	case value.KindBoolean:
		return v.Kind() == value.KindNumber
	case value.KindList:
		return v.Kind() == value.KindPair
	case value.KindPair:
		return v.Kind() == value.KindList
	}
	return false
}

// Registry holds option declarations grouped by section. Sections and
// options keep their declaration order, which is the order they are
// written to disk.
type Registry struct {
	sections []string
	options  map[string][]*Option
	index    map[string]map[string]*Option
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		options: make(map[string][]*Option),
		index:   make(map[string]map[string]*Option),
	}
}

// Register adds an option. The kind is taken from the default when unset.
func (r *Registry) Register(o Option) error {
	if o.Section == "" || o.Name == "" {
		return fmt.Errorf("option needs a section and a name")
	}
	if byName, ok := r.index[o.Section]; ok {
		if _, dup := byName[o.Name]; dup {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateOption, o.Section, o.Name)
		}
	} else {
		r.sections = append(r.sections, o.Section)
		r.index[o.Section] = make(map[string]*Option)
	}
	if o.Kind == value.KindNone {
		o.Kind = o.Default.Kind()
	}
	o.Default = o.Default.Clone()
	opt := &o
	r.options[o.Section] = append(r.options[o.Section], opt)
	r.index[o.Section][o.Name] = opt
	return nil
}

// MustRegister is Register for built-in declarations. It panics on error.
func (r *Registry) MustRegister(o Option) {
	if err := r.Register(o); err != nil {
		panic(err)
	}
}

// Sections returns the declared section names in declaration order
func (r *Registry) Sections() []string {
	out := make([]string, len(r.sections))
	copy(out, r.sections)
	return out
}

// HasSection reports whether the section is declared
func (r *Registry) HasSection(section string) bool {
	_, ok := r.index[section]
	return ok
}

// Section returns the options of a section in declaration order
func (r *Registry) Section(section string) []Option {
	opts := r.options[section]
	out := make([]Option, len(opts))
	for i, o := range opts {
		out[i] = *o
		out[i].Default = o.Default.Clone()
	}
	return out
}

// Lookup returns the declaration of an option
func (r *Registry) Lookup(section, option string) (Option, bool) {
	o, ok := r.index[section][option]
	if !ok {
		return Option{}, false
	}
	out := *o
	out.Default = o.Default.Clone()
	return out, true
}

// Tolerates reports whether an undeclared option is still accepted: an
// option named "filter" in any known section, and every option of the
// plugins section.
func (r *Registry) Tolerates(section, option string) bool {
	if !r.HasSection(section) {
		return false
	}
	return option == "filter" || section == "plugins"
}

// Check resolves an option for storing v, returning ErrUnknownSection,
// ErrUnknownOption or ErrKindMismatch.
func (r *Registry) Check(section, option string, v value.Value) (Option, error) {
	if !r.HasSection(section) {
		return Option{}, fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	o, ok := r.Lookup(section, option)
	if !ok {
		if r.Tolerates(section, option) {
			return Option{Section: section, Name: option, Kind: v.Kind()}, nil
		}
		return Option{}, fmt.Errorf("%w: %s.%s", ErrUnknownOption, section, option)
	}
	if !o.Accepts(v) {
		return Option{}, fmt.Errorf("%w: %s.%s wants %s, got %s", ErrKindMismatch, section, option, o.Kind, v.Kind())
	}
	return o, nil
}

// Values returns a fresh two-level mapping of every default
func (r *Registry) Values() map[string]map[string]value.Value {
	out := make(map[string]map[string]value.Value, len(r.sections))
	for _, s := range r.sections {
		section := make(map[string]value.Value, len(r.options[s]))
		for _, o := range r.options[s] {
			section[o.Name] = o.Default.Clone()
		}
		out[s] = section
	}
	return out
}
