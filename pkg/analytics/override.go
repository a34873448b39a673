package analytics

// OverrideRule rewrites one model name to another. Applied once per
// request, before cache-key generation and before cost calculation, so a
// rewritten request shares a cache entry with native requests for the
// rewrite target (spec.md §3).
type OverrideRule struct {
	From string
	To   string
}

// Rewriter holds the active override rules and applies them.
type Rewriter struct {
	rules map[string]string
}

// NewRewriter builds a Rewriter from a rule set. Later rules with the same
// From win.
func NewRewriter(rules []OverrideRule) *Rewriter {
	m := make(map[string]string, len(rules))
	for _, r := range rules {
		m[r.From] = r.To
	}
	return &Rewriter{rules: m}
}

// Apply returns the request model to actually use, and the original model
// iff a rule rewrote it (empty string otherwise).
func (r *Rewriter) Apply(requestedModel string) (effective, original string) {
	if to, ok := r.rules[requestedModel]; ok {
		return to, requestedModel
	}
	return requestedModel, ""
}
