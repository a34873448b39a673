package config

import "github.com/pilotdev/pilotd/pkg/analytics"

// AnalyticsOverrideRules converts the YAML-facing OverrideRuleSetting
// slice into the analytics package's OverrideRule type, keeping the wire
// shape (from/to string pairs) independent of analytics' own type so
// this package never needs to import it except at this one boundary.
func (s *Settings) AnalyticsOverrideRules() []analytics.OverrideRule {
	rules := make([]analytics.OverrideRule, 0, len(s.OverrideRules))
	for _, r := range s.OverrideRules {
		rules = append(rules, analytics.OverrideRule{From: r.From, To: r.To})
	}
	return rules
}
