// Package alias holds user defined command aliases and their persisted form
package alias

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/butter-bot-machines/slskconf/pkg/pickle"
	"github.com/butter-bot-machines/slskconf/pkg/value"
)

// Reserved names cannot be aliased
var Reserved = []string{"alias", "unalias"}

// Set maps an alias name to its expansion
type Set map[string]string

// FromValue converts a decoded mapping of text to text
func FromValue(v value.Value) (Set, error) {
	if v.Kind() != value.KindMapping {
		return nil, fmt.Errorf("alias file holds a %s, want a mapping", v.Kind())
	}
	s := make(Set, v.Len())
	for _, k := range v.Keys() {
		e, _ := v.Get(k)
		text, ok := e.Text()
		if !ok {
			return nil, fmt.Errorf("alias %q holds a %s, want text", k, e.Kind())
		}
		s[k] = text
	}
	return s, nil
}

// Value converts the set to a mapping value
func (s Set) Value() value.Value {
	m := make(map[string]value.Value, len(s))
	for k, v := range s {
		m[k] = value.Text(v)
	}
	return value.Mapping(m)
}

// Clone returns a copy of the set
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Load reads an alias file through the restricted decoder
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := pickle.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return FromValue(v)
}

// Save writes the set to path, readable by the owner only
func (s Set) Save(path string) error {
	return os.WriteFile(path, pickle.Encode(s.Value()), 0600)
}

// Add interprets "name expansion". With an expansion it defines or replaces
// the alias; with a bare name it looks it up; with nothing it lists every
// alias. It returns the message to show and whether the set changed.
func (s Set) Add(rest string) (string, bool) {
	if rest == "" {
		return s.Listing(), false
	}
	name, expansion, hasExpansion := strings.Cut(rest, " ")
	changed := false
	if hasExpansion {
		for _, r := range Reserved {
			if name == r {
				return "I will not alias that!\n", false
			}
		}
		s[name] = expansion
		changed = true
	}
	if v, ok := s[name]; ok {
		return fmt.Sprintf("Alias %s: %s\n", name, v), changed
	}
	return fmt.Sprintf("No such alias (%s)\n", rest), changed
}

// Remove deletes an alias, returning the message to show and whether the
// set changed
func (s Set) Remove(name string) (string, bool) {
	v, ok := s[name]
	if name == "" || !ok {
		return fmt.Sprintf("No such alias (%s)\n", name), false
	}
	delete(s, name)
	return fmt.Sprintf("Removed alias %s: %s\n", name, v), true
}

// Listing formats every alias, sorted by name
func (s Set) Listing() string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("\nAliases:\n")
	for _, k := range names {
		fmt.Fprintf(&b, "%s: %s\n", k, s[k])
	}
	b.WriteString("\n")
	return b.String()
}
