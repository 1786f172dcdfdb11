// Package migrate removes options and sections that older client versions
// wrote to the settings file and that are no longer recognised.
package migrate

import "fmt"

// Version identifies the client release a removal belongs to
type Version struct {
	Major int
	Minor int
	Patch int
}

// String returns the version as a string
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Document is the raw, unparsed settings file being migrated
type Document interface {
	HasSection(section string) bool
	RemoveSection(section string)
	HasOption(section, option string) bool
	RemoveOption(section, option string)
}

// Removal drops one option, or a whole section when Option is empty
type Removal struct {
	Section string
	Option  string
	Since   Version
	Reason  string
}

// Result records a removal that changed the document
type Result struct {
	Section string
	Option  string
	Since   Version
	Reason  string
}

// Migrator applies an ordered list of removals
type Migrator struct {
	removals []Removal
}

// New creates a migrator for the given removals
func New(removals ...Removal) *Migrator {
	m := &Migrator{removals: make([]Removal, len(removals))}
	copy(m.removals, removals)
	return m
}

// Removals returns the registered removals in application order
func (m *Migrator) Removals() []Removal {
	out := make([]Removal, len(m.removals))
	copy(out, m.removals)
	return out
}

// Apply removes every obsolete entry present in doc and reports what it
// removed. Applying it to a migrated document returns no results.
func (m *Migrator) Apply(doc Document) []Result {
	var results []Result
	for _, r := range m.removals {
		if !doc.HasSection(r.Section) {
			continue
		}
		if r.Option == "" {
			doc.RemoveSection(r.Section)
		} else if doc.HasOption(r.Section, r.Option) {
			doc.RemoveOption(r.Section, r.Option)
		} else {
			continue
		}
		results = append(results, Result{Section: r.Section, Option: r.Option, Since: r.Since, Reason: r.Reason})
	}
	return results
}

var (
	v140 = Version{1, 4, 0}
	v142 = Version{1, 4, 2}
	v143 = Version{1, 4, 3}
	v220 = Version{2, 2, 0}
)

func options(section string, since Version, reason string, names ...string) []Removal {
	out := make([]Removal, len(names))
	for i, n := range names {
		out[i] = Removal{Section: section, Option: n, Since: since, Reason: reason}
	}
	return out
}

// DefaultRemovals lists every option and section dropped by past releases
func DefaultRemovals() []Removal {
	var rs []Removal
	add := func(r ...Removal) { rs = append(rs, r...) }

	add(options("transfers", v140, "obsolete since 1.4.0", "pmqueueddir")...)
	add(options("server", v140, "obsolete since 1.4.0", "lastportstatuscheck", "serverlist")...)
	add(options("userinfo", v140, "obsolete since 1.4.0", "descrutf8")...)
	add(options("ui", v140, "obsolete since 1.4.0",
		"enabletrans", "mozembed", "open_in_mozembed", "tooltips", "transalpha", "transfilter", "transtint")...)
	add(options("language", v140, "language follows the environment", "language", "setlanguage")...)
	add(Removal{Section: "language", Since: v140, Reason: "language follows the environment"})

	add(options("columns", v142, "obsolete since 1.4.2", "downloads", "uploads")...)

	add(options("server", v143, "text is always utf-8",
		"enc", "fallbackencodings", "roomencoding", "userencoding")...)
	add(options("ui", v143, "sound command replaced by system sounds", "soundcommand")...)

	add(options("columns", v220, "widths reset for folder grouping",
		"search", "search_widths", "downloads_columns", "downloads_widths", "uploads_columns", "uploads_widths")...)
	add(options("transfers", v220, "failed downloads are always retried", "autoretry_downloads")...)
	add(options("transfers", v220, "notification settings moved", "shownotification", "shownotificationperfolder")...)
	add(options("ui", v220, "notification settings moved", "soundenabled", "soundtheme", "tab_colors", "tab_icons")...)
	add(options("ui", v220, "offline search result colour dropped", "searchoffline")...)

	return rs
}

// Default returns a migrator holding DefaultRemovals
func Default() *Migrator {
	return New(DefaultRemovals()...)
}
