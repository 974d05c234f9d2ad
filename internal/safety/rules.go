package safety

import "regexp"

// Policy names an allow/deny rule set.
type Policy string

const (
	PolicySafe       Policy = "safe"
	PolicyRestricted Policy = "restricted"
	PolicyStandard   Policy = "standard"
	PolicyElevated   Policy = "elevated"
)

// KnownPolicy reports whether the policy name is recognized.
func KnownPolicy(p Policy) bool {
	switch p {
	case PolicySafe, PolicyRestricted, PolicyStandard, PolicyElevated:
		return true
	}
	return false
}

// Severity of a finding.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// rule is one compiled deny or caution pattern.
type rule struct {
	pattern  *regexp.Regexp
	name     string
	severity Severity
	// minPolicy is the least permissive policy that tolerates a match.
	// A match under a stricter policy denies the script. Empty means a
	// match denies under every policy.
	minPolicy Policy
}

var policyRank = map[Policy]int{
	PolicySafe:       0,
	PolicyRestricted: 1,
	PolicyStandard:   2,
	PolicyElevated:   3,
}

// deniedUnder reports whether a match of r rejects the script when
// evaluated under p.
func (r rule) deniedUnder(p Policy) bool {
	if r.minPolicy == "" {
		return true
	}
	return policyRank[p] < policyRank[r.minPolicy]
}

func mustRule(name string, severity Severity, minPolicy Policy, expr string) rule {
	return rule{
		pattern:   regexp.MustCompile(expr),
		name:      name,
		severity:  severity,
		minPolicy: minPolicy,
	}
}

// platformRules returns the ordered rule list for a platform. Order
// matters: the first denying match is the one cited.
func platformRules(platform string) []rule {
	switch platform {
	case "powershell":
		return powershellRules
	case "applescript":
		return applescriptRules
	default:
		return bashRules
	}
}

// Rules denying under every policy carry an empty minPolicy. Rules with
// minPolicy "standard" deny under safe/restricted but pass (as findings)
// under standard/elevated; minPolicy "elevated" passes only there.

var bashRules = []rule{
	mustRule("recursive root delete", SeverityError, "", `rm\s+(-[a-zA-Z]*[rf][a-zA-Z]*\s+)+(/|--no-preserve-root)`),
	mustRule("fork bomb", SeverityError, "", `:\(\)\s*\{\s*:\|\:&\s*\}\s*;?\s*:`),
	mustRule("filesystem format", SeverityError, "", `\bmkfs(\.[a-z0-9]+)?\b`),
	mustRule("raw disk write", SeverityError, "", `\bdd\s+[^|\n]*\bif=`),
	mustRule("system shutdown", SeverityError, PolicyElevated, `\b(shutdown|reboot|halt|poweroff)\b`),
	mustRule("file deletion", SeverityWarn, PolicyStandard, `\brm\s`),
	mustRule("privilege elevation", SeverityWarn, PolicyStandard, `\bsudo\b`),
	mustRule("device write", SeverityError, PolicyElevated, `>\s*/dev/(sd|hd|nvme|disk)`),
	mustRule("network download execution", SeverityWarn, PolicyStandard, `\b(curl|wget)\b[^|\n]*\|\s*(ba)?sh\b`),
	mustRule("network access", SeverityInfo, PolicyRestricted, `\b(curl|wget|nc|ssh|scp)\b`),
	mustRule("filesystem write", SeverityInfo, PolicyRestricted, `\b(mv|cp|mkdir|touch|tee|chmod|chown)\b|>>?`),
	mustRule("user management", SeverityWarn, PolicyElevated, `\b(userdel|useradd|usermod|passwd)\b`),
	mustRule("kill all processes", SeverityError, PolicyElevated, `\bkillall\b|\bpkill\s+-9\b`),
}

var powershellRules = []rule{
	mustRule("recursive drive delete", SeverityError, "", `Remove-Item\s+[^|\n]*-Recurse\s+[^|\n]*-Force\s+[^|\n]*[A-Za-z]:\\`),
	mustRule("volume format", SeverityError, "", `\bFormat-Volume\b`),
	mustRule("disk clear", SeverityError, "", `\bClear-Disk\b`),
	mustRule("remote code execution", SeverityError, PolicyElevated, `Invoke-Expression\s*\(?[^)\n]*(Invoke-WebRequest|iwr|DownloadString|Invoke-RestMethod)`),
	mustRule("system shutdown", SeverityError, PolicyElevated, `\b(Stop-Computer|Restart-Computer)\b`),
	mustRule("process kill", SeverityWarn, PolicyStandard, `\bStop-Process\b`),
	mustRule("service stop", SeverityWarn, PolicyStandard, `\b(Stop-Service|Set-Service)\b`),
	mustRule("item deletion", SeverityWarn, PolicyStandard, `\b(Remove-Item|del|erase)\b`),
	mustRule("registry write", SeverityWarn, PolicyElevated, `\b(Set-ItemProperty|New-ItemProperty|Remove-ItemProperty)\s+[^|\n]*HK(LM|CU)`),
	mustRule("execution policy change", SeverityWarn, PolicyElevated, `Set-ExecutionPolicy`),
	mustRule("network access", SeverityInfo, PolicyRestricted, `\b(Invoke-WebRequest|Invoke-RestMethod|Start-BitsTransfer)\b`),
	mustRule("filesystem write", SeverityInfo, PolicyRestricted, `\b(New-Item|Copy-Item|Move-Item|Set-Content|Add-Content|Out-File)\b`),
	mustRule("user management", SeverityWarn, PolicyElevated, `\b(New-LocalUser|Remove-LocalUser|Add-LocalGroupMember)\b`),
}

var applescriptRules = []rule{
	mustRule("admin shell script", SeverityError, PolicyStandard, `do shell script[^\n]*with administrator privileges`),
	mustRule("system shutdown", SeverityError, PolicyElevated, `tell application "(System Events|Finder)"[^\n]*\b(shut down|restart|log out)\b`),
	mustRule("item deletion", SeverityWarn, PolicyStandard, `\bdelete\b`),
	mustRule("keystroke injection", SeverityWarn, PolicyStandard, `\bkeystroke\b|\bkey code\b`),
	mustRule("shell escape", SeverityInfo, PolicyRestricted, `do shell script`),
	mustRule("security settings", SeverityError, PolicyElevated, `tell application "System Preferences"|tell application "System Settings"`),
}
