package permission

import (
	"log/slog"
	"regexp"
)

// credentialPattern is a named, pre-compiled detector. The set below is
// grounded on the teacher's builtin masking-pattern table
// (pkg/config/builtin.go initBuiltinMaskingPatterns) — the same regexes
// that redact secrets from logs are the right shape of rule for refusing
// to run a command that embeds one.
type credentialPattern struct {
	name  string
	regex *regexp.Regexp
}

var credentialPatterns = compileCredentialPatterns(map[string]string{
	"api_key":        `(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{20,})["']?`,
	"password":       `(?i)(?:password|pwd|pass)["']?\s*[:=]\s*["']?([^"'\s\n]{6,})["']?`,
	"token":          `(?i)(?:token|bearer|jwt)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`,
	"private_key":    `(?i)(?:private[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`,
	"secret_key":     `(?i)(?:secret[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`,
	"aws_access_key": `(?i)(?:aws[_-]?access[_-]?key[_-]?id)["']?\s*[:=]\s*["']?(AKIA[A-Z0-9]{16})["']?`,
	"aws_secret_key": `(?i)(?:aws[_-]?secret[_-]?access[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`,
	"github_token":   `(?i)(?:gh[ps]_[A-Za-z0-9_]{36,255})`,
	"slack_token":    `(?i)xox[baprs]-[A-Za-z0-9-]{10,72}`,
	"ssh_key":        `ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`,
})

func compileCredentialPatterns(raw map[string]string) []credentialPattern {
	patterns := make([]credentialPattern, 0, len(raw))
	for name, expr := range raw {
		re, err := regexp.Compile(expr)
		if err != nil {
			slog.Error("failed to compile credential pattern, skipping", "pattern", name, "error", err)
			continue
		}
		patterns = append(patterns, credentialPattern{name: name, regex: re})
	}
	return patterns
}

// containsCredential reports whether command embeds a recognizable
// credential, and names which pattern matched for use in denial reasoning.
func containsCredential(command string) (matched bool, patternName string) {
	for _, p := range credentialPatterns {
		if p.regex.MatchString(command) {
			return true, p.name
		}
	}
	return false, ""
}
