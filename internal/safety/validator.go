// Package safety classifies candidate scripts against policy rule sets.
// Evaluation never raises; callers decide whether a deny is enforced.
package safety

import (
	"strings"

	"go.uber.org/zap"

	"convoke/internal/logging"
)

// Decision of a validation pass.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// Issue is one finding against the script.
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Rule     string   `json:"rule"`
	Pattern  string   `json:"pattern,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// Report is the validator output.
type Report struct {
	Decision Decision `json:"decision"`
	Issues   []Issue  `json:"issues"`
	Score    int      `json:"score"`
	Policy   Policy   `json:"policy"`
	// AuditRequired is set for elevated-policy evaluations.
	AuditRequired bool `json:"auditRequired,omitempty"`
	// DeniedBy cites the first denying rule, empty on allow.
	DeniedBy string `json:"deniedBy,omitempty"`
}

// Validator evaluates scripts against the policy rule sets.
type Validator struct {
	log *zap.Logger
}

// NewValidator builds a validator.
func NewValidator() *Validator {
	return &Validator{log: logging.Named("safety")}
}

// Validate evaluates script under policy for the given platform. The
// first denying rule decides; score reflects all findings regardless.
func (v *Validator) Validate(script, platform string, policy Policy) Report {
	if !KnownPolicy(policy) {
		policy = PolicyStandard
	}

	report := Report{
		Decision:      DecisionAllow,
		Score:         100,
		Policy:        policy,
		AuditRequired: policy == PolicyElevated,
	}

	lines := strings.Split(script, "\n")
	for _, r := range platformRules(platform) {
		line := matchLine(lines, r)
		if line == 0 {
			continue
		}

		issue := Issue{
			Severity: r.severity,
			Message:  r.name,
			Rule:     r.name,
			Pattern:  r.pattern.String(),
			Line:     line,
		}
		report.Issues = append(report.Issues, issue)

		switch r.severity {
		case SeverityWarn:
			report.Score -= 5
		case SeverityError:
			report.Score -= 15
		}

		if r.deniedUnder(policy) && report.Decision == DecisionAllow {
			report.Decision = DecisionDeny
			report.DeniedBy = r.name
			v.log.Info("script denied",
				zap.String("platform", platform),
				zap.String("policy", string(policy)),
				zap.String("rule", r.name))
		}
	}

	if report.Score < 0 {
		report.Score = 0
	}
	return report
}

// matchLine returns the 1-based line of the first match, 0 for none.
func matchLine(lines []string, r rule) int {
	for i, l := range lines {
		if r.pattern.MatchString(l) {
			return i + 1
		}
	}
	return 0
}

// LintHeuristics produces platform lint findings used when a structural
// review is needed without an LLM: missing error handling, missing
// argument parsing. Purely syntactic.
func LintHeuristics(script, platform string) []Issue {
	var issues []Issue
	add := func(sev Severity, msg string) {
		issues = append(issues, Issue{Severity: sev, Message: msg, Rule: "lint"})
	}

	switch platform {
	case "powershell":
		if !strings.Contains(script, "try") || !strings.Contains(script, "catch") {
			add(SeverityWarn, "no try/catch error handling detected")
		}
		if !strings.Contains(script, "param(") {
			add(SeverityInfo, "no param() block detected")
		}
	case "applescript":
		if !strings.Contains(script, "on error") {
			add(SeverityWarn, "no on error handler detected")
		}
	default:
		if !strings.Contains(script, "set -e") {
			add(SeverityWarn, "no set -e error trap detected")
		}
		if !strings.Contains(script, "trap") {
			add(SeverityInfo, "no trap handler detected")
		}
	}
	if strings.TrimSpace(script) == "" {
		add(SeverityError, "script is empty")
	}
	return issues
}
