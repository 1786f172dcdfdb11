package settings

import "github.com/butter-bot-machines/slskconf/pkg/value"

// Severity grades how usable the configuration is
type Severity int

const (
	// Configured means nothing needs attention
	Configured Severity = iota
	// Repaired means unset options were restored to their defaults
	Repaired
	// Incomplete means options without a usable default must be set
	Incomplete
	// Failed means the check itself failed
	Failed
)

func (s Severity) String() string {
	switch s {
	case Configured:
		return "configured"
	case Repaired:
		return "repaired"
	case Incomplete:
		return "incomplete"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Setting names one option
type Setting struct {
	Section string
	Option  string
}

// Report is the outcome of CheckConfig
type Report struct {
	Level    Severity
	Repaired []Setting
	Missing  []Setting
	Err      error
}

// NeedsConfig returns the severity of CheckConfig
func (s *Store) NeedsConfig() Severity {
	return s.CheckConfig().Level
}

// CheckConfig looks for unset options. An unset option with a default is
// restored to it; any other unset or empty option, unless it may be empty,
// makes the configuration incomplete and is passed to the prompter, which
// is then asked to show the settings. A panic during the check is reported
// as Failed.
func (s *Store) CheckConfig() (report Report) {
	var err error
	defer func() {
		if err != nil {
			s.logger.Error("config error", "error", err)
			report.Level = Failed
			report.Err = err
		}
	}()
	defer s.panics.Recover(&err)

	report = s.scan()
	if s.prompter == nil {
		return report
	}
	for _, m := range report.Missing {
		s.prompter.InvalidSetting(m.Section, m.Option)
	}
	if report.Level > Repaired {
		s.prompter.ShowSettings(s.Snapshot())
	}
	return report
}

func (s *Store) scan() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report Report
	for _, section := range s.registry.Sections() {
		for _, name := range s.options(section) {
			v := s.sections[section][name]
			if v.Kind() != value.KindNone && v.Kind() != value.KindText {
				continue
			}
			opt, known := s.registry.Lookup(section, name)
			if !v.IsNone() {
				text, _ := v.Text()
				if text != "" || (known && opt.MayBeEmpty) {
					continue
				}
			}

			if v.IsNone() && known && !opt.Default.IsNone() {
				s.sections[section][name] = opt.Default.Clone()
				s.logger.Info("config option reset to default", "section", section, "option", name,
					"default", value.Format(opt.Default))
				report.Repaired = append(report.Repaired, Setting{section, name})
				if report.Level < Repaired {
					report.Level = Repaired
				}
				continue
			}

			if report.Level < Incomplete {
				s.logger.Warn("you need to configure your settings (server, username, password, download directory) before connecting")
				report.Level = Incomplete
			}
			report.Missing = append(report.Missing, Setting{section, name})
		}
	}
	return report
}
