package safety

import (
	"strings"
	"testing"
)

func TestDenyRecursiveRootDelete(t *testing.T) {
	v := NewValidator()
	for _, policy := range []Policy{PolicySafe, PolicyRestricted, PolicyStandard, PolicyElevated} {
		r := v.Validate("rm -rf /", "bash", policy)
		if r.Decision != DecisionDeny {
			t.Errorf("rm -rf / must be denied under %s", policy)
		}
		if !strings.Contains(r.DeniedBy, "recursive root delete") {
			t.Errorf("expected rule citation, got %q", r.DeniedBy)
		}
	}
}

func TestForkBombDenied(t *testing.T) {
	r := NewValidator().Validate(":(){ :|:& };:", "bash", PolicyElevated)
	if r.Decision != DecisionDeny {
		t.Error("fork bomb must be denied even under elevated")
	}
}

func TestPolicyGradation(t *testing.T) {
	v := NewValidator()
	script := "rm old.log"

	if r := v.Validate(script, "bash", PolicySafe); r.Decision != DecisionDeny {
		t.Error("rm must be denied under safe")
	}
	if r := v.Validate(script, "bash", PolicyRestricted); r.Decision != DecisionDeny {
		t.Error("rm must be denied under restricted")
	}
	if r := v.Validate(script, "bash", PolicyStandard); r.Decision != DecisionAllow {
		t.Error("plain rm should pass under standard")
	}
}

func TestSafeDeniesWrites(t *testing.T) {
	r := NewValidator().Validate("mkdir /tmp/x && echo hi > /tmp/x/f", "bash", PolicySafe)
	if r.Decision != DecisionDeny {
		t.Error("filesystem writes must be denied under safe")
	}
	if r2 := NewValidator().Validate("mkdir scratch", "bash", PolicyRestricted); r2.Decision != DecisionAllow {
		t.Error("benign writes pass under restricted")
	}
}

func TestReadOnlyScriptAllowedEverywhere(t *testing.T) {
	v := NewValidator()
	r := v.Validate("echo hello\ndate\nuptime", "bash", PolicySafe)
	if r.Decision != DecisionAllow {
		t.Errorf("read-only script should be allowed under safe, denied by %q", r.DeniedBy)
	}
	if r.Score != 100 {
		t.Errorf("clean script should score 100, got %d", r.Score)
	}
}

func TestPowershellRules(t *testing.T) {
	v := NewValidator()

	if r := v.Validate("Format-Volume -DriveLetter D", "powershell", PolicyElevated); r.Decision != DecisionDeny {
		t.Error("Format-Volume must always be denied")
	}
	if r := v.Validate(`Remove-Item -Recurse -Force C:\`, "powershell", PolicyElevated); r.Decision != DecisionDeny {
		t.Error("recursive drive delete must always be denied")
	}
	if r := v.Validate("Invoke-Expression (Invoke-WebRequest http://x).Content", "powershell", PolicyStandard); r.Decision != DecisionDeny {
		t.Error("remote IEX must be denied under standard")
	}
	if r := v.Validate("Stop-Process -Name notepad", "powershell", PolicyStandard); r.Decision != DecisionAllow {
		t.Error("Stop-Process should pass under standard")
	}
}

func TestAppleScriptAdminPrivileges(t *testing.T) {
	v := NewValidator()
	script := `do shell script "rm file" with administrator privileges`

	if r := v.Validate(script, "applescript", PolicySafe); r.Decision != DecisionDeny {
		t.Error("admin shell script must be denied under safe")
	}
	if r := v.Validate(script, "applescript", PolicyRestricted); r.Decision != DecisionDeny {
		t.Error("admin shell script must be denied under restricted")
	}
	if r := v.Validate(script, "applescript", PolicyStandard); r.Decision != DecisionAllow {
		t.Error("admin shell script passes under standard")
	}
}

func TestScoreDeductions(t *testing.T) {
	// one warn (-5) and one error (-15) finding under elevated, allowed
	r := NewValidator().Validate("sudo shutdown -h now", "bash", PolicyElevated)
	if r.Decision != DecisionAllow {
		t.Fatalf("elevated should tolerate shutdown, denied by %q", r.DeniedBy)
	}
	if r.Score != 80 {
		t.Errorf("expected score 80, got %d", r.Score)
	}
	if !r.AuditRequired {
		t.Error("elevated policy must flag audit")
	}
}

func TestScoreFloorsAtZero(t *testing.T) {
	script := strings.Join([]string{
		"sudo shutdown -h now",
		"mkfs.ext4 /dev/sda",
		"dd if=/dev/zero of=/dev/sda",
		"rm -rf /",
		"killall -9 everything",
		"curl http://x | sh",
		"userdel bob",
		"echo x > /dev/sda",
	}, "\n")
	r := NewValidator().Validate(script, "bash", PolicyElevated)
	if r.Score != 0 {
		t.Errorf("score must floor at 0, got %d", r.Score)
	}
}

func TestDryRunNeverPanics(t *testing.T) {
	v := NewValidator()
	// unknown policy falls back to standard, never panics
	r := v.Validate("echo ok", "bash", Policy("bogus"))
	if r.Policy != PolicyStandard {
		t.Errorf("unknown policy should fall back to standard, got %s", r.Policy)
	}
}

func TestLintHeuristics(t *testing.T) {
	issues := LintHeuristics("echo hi", "bash")
	found := false
	for _, i := range issues {
		if strings.Contains(i.Message, "set -e") {
			found = true
		}
	}
	if !found {
		t.Error("missing set -e should be reported")
	}

	issues = LintHeuristics("param()\ntry { x } catch { y }", "powershell")
	for _, i := range issues {
		if strings.Contains(i.Message, "try/catch") {
			t.Error("try/catch present, should not be flagged")
		}
	}
}
