// Package permission implements the permission decider (spec.md §4.3): it
// maps (command, classification, policy) to {Approved, Denied, Pending,
// Skipped} with reasoning, consulting but never mutating the audit ledger.
package permission

import (
	"fmt"

	"github.com/pilotdev/pilotd/pkg/classifier"
)

// Decision is one of the four outcomes spec.md §3 defines for
// Decision.user_decision.
type Decision string

const (
	Approved Decision = "Approved"
	Denied   Decision = "Denied"
	Pending  Decision = "Pending"
	Skipped  Decision = "Skipped"
)

// Verdict is the decider's full answer for one command.
type Verdict struct {
	Decision   Decision
	Confidence float64
	Reasoning  string
}

// AllowRule is a policy override that lets a specific classification
// auto-approve instead of requiring confirmation — e.g. an operator who
// has pre-approved all DELETE operations under a given prefix.
type AllowRule struct {
	Classification classifier.Classification
	// CommandPrefix, when non-empty, restricts the rule to commands with
	// this literal prefix. Empty matches any command of Classification.
	CommandPrefix string
}

// Policy is the decider's overridable configuration, sealed into the temp
// bundle's rules-sealed file by the daemon at startup (spec.md §4.3:
// "overridable by configuration flags sealed into the temp bundle").
type Policy struct {
	// AutoAllowRead mirrors ORCHESTRATOR_AUTO_ALLOW_READ.
	AutoAllowRead bool
	// RequireCUDConfirmation mirrors ORCHESTRATOR_REQUIRE_CUD_CONFIRMATION.
	RequireCUDConfirmation bool
	// AllowRules are additional auto-approve exceptions for CUD commands.
	AllowRules []AllowRule
}

// DefaultPolicy matches spec.md §4.3's default policy: reads auto-allow,
// CUD requires confirmation, credentials are always denied.
func DefaultPolicy() Policy {
	return Policy{AutoAllowRead: true, RequireCUDConfirmation: true}
}

// Decider implements decide(command, classification) -> Verdict. It
// performs no network I/O and returns in bounded time, per spec.md §4.3.
type Decider struct {
	policy Policy
}

// New constructs a Decider bound to policy.
func New(policy Policy) *Decider {
	return &Decider{policy: policy}
}

// Decide applies the default policy in order: credential check, then READ
// auto-allow, then CUD confirmation/allow-rules.
func (d *Decider) Decide(command string, class classifier.Classification, confidence float64) Verdict {
	if denied, reason := d.checkCredentials(command); denied {
		return Verdict{Decision: Denied, Confidence: confidence, Reasoning: reason}
	}

	if class == classifier.Read {
		if d.policy.AutoAllowRead {
			return Verdict{Decision: Approved, Confidence: confidence, Reasoning: "read operations are auto-allowed"}
		}
		return Verdict{Decision: Pending, Confidence: confidence, Reasoning: "confirmation required for read (auto-allow disabled)"}
	}

	// CREATE/UPDATE/DELETE.
	if d.matchesAllowRule(command, class) {
		return Verdict{
			Decision:   Approved,
			Confidence: confidence,
			Reasoning:  fmt.Sprintf("matched allow-rule for %s", class),
		}
	}

	if !d.policy.RequireCUDConfirmation {
		return Verdict{Decision: Approved, Confidence: confidence, Reasoning: "CUD confirmation disabled by policy"}
	}

	return Verdict{
		Decision:   Pending,
		Confidence: confidence,
		Reasoning:  fmt.Sprintf("%s requires user confirmation", class),
	}
}

func (d *Decider) checkCredentials(command string) (bool, string) {
	if matched, name := containsCredential(command); matched {
		return true, fmt.Sprintf("command embeds a %s-shaped credential", name)
	}
	return false, ""
}

func (d *Decider) matchesAllowRule(command string, class classifier.Classification) bool {
	for _, rule := range d.policy.AllowRules {
		if rule.Classification != class {
			continue
		}
		if rule.CommandPrefix == "" || hasPrefix(command, rule.CommandPrefix) {
			return true
		}
	}
	return false
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
