package mcpgw

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"
)

// scanSeverity indicates how serious a scanner finding is.
type scanSeverity string

const (
	severityCritical scanSeverity = "critical"
	severityWarn     scanSeverity = "warn"
)

// ScanFinding is a single security issue found while scanning a stdio
// server's script (SPEC_FULL.md §3, adapted from the reference's agent
// skill-script scanner).
type ScanFinding struct {
	Rule     string
	Severity string
	Line     int    // 0 for full-source rules
	Snippet  string // trimmed line, or "(full-source match)"
}

// ScanReport is the outcome of scanning one stdio ServerParams. Blocked
// mirrors hasCritical(Findings); it is precomputed so callers never have to
// re-walk the slice.
type ScanReport struct {
	Server    string
	Findings  []ScanFinding
	Blocked   bool
	ScannedAt time.Time
}

type lineRule struct {
	name     string
	severity scanSeverity
	pattern  *regexp.Regexp
}

type sourceRule struct {
	name     string
	severity scanSeverity
	pattern  *regexp.Regexp
	context  *regexp.Regexp // when set, must ALSO match for the finding to count
}

// Scanner holds the rule set applied to a stdio server's referenced script
// before its session is allowed to open. A zero-value Scanner is usable via
// NewScanner; kept as a type (rather than package-level functions) so a
// future rule set could be swapped in per Manager without a global.
type Scanner struct {
	lineRules   []lineRule
	sourceRules []sourceRule
}

// NewScanner builds a Scanner with the gateway's default rule set.
// sys.stdin / sys.stdout are intentionally not flagged — they are the
// legitimate MCP stdio channel and would be a guaranteed false positive on
// every stdio server we ourselves spawn.
func NewScanner() *Scanner {
	return &Scanner{
		lineRules: []lineRule{
			{
				name:     "dangerous-exec",
				severity: severityCritical,
				pattern:  regexp.MustCompile(`\b(subprocess\.|os\.system\s*\(|os\.popen\s*\(|commands\.getoutput\s*\()`),
			},
			{
				name:     "dynamic-code",
				severity: severityCritical,
				pattern:  regexp.MustCompile(`\b(exec|eval|compile)\s*\(`),
			},
			{
				name:     "dynamic-import",
				severity: severityCritical,
				pattern:  regexp.MustCompile(`\b(__import__|importlib\.import_module)\s*\(`),
			},
		},
		sourceRules: []sourceRule{
			{
				name:     "env-harvesting",
				severity: severityCritical,
				pattern:  regexp.MustCompile(`os\.environ`),
				context:  regexp.MustCompile(`\b(requests\.|urllib\.|httpx\.|socket\.connect|aiohttp\.)`),
			},
			{
				name:     "potential-exfil",
				severity: severityWarn,
				pattern:  regexp.MustCompile(`\bopen\s*\([^)]*['"rb]`),
				context:  regexp.MustCompile(`\b(requests\.|urllib\.|httpx\.|socket\.connect|aiohttp\.)`),
			},
			{
				name:     "obfuscated-code",
				severity: severityWarn,
				pattern:  regexp.MustCompile(`\bbase64\b`),
				context:  regexp.MustCompile(`\b(exec|eval)\s*\(`),
			},
		},
	}
}

// Scan inspects a stdio ServerParams for a referenced .py script (the
// command itself, or the first .py entry in args — a `python script.py`
// invocation is the common shape) and runs the rule set against it. A
// params entry with no .py reference anywhere is not scanned and yields a
// nil report — most stdio servers are compiled binaries, not scripts, and
// scanning is only meaningful for interpretable source.
func (s *Scanner) Scan(p *ServerParams) (*ScanReport, error) {
	script := pyScriptPath(p)
	if script == "" {
		return nil, nil
	}

	data, err := os.ReadFile(script)
	if err != nil {
		return nil, errInvalidConfig(p.Name, fmt.Sprintf("scan %q", script), err)
	}
	source := string(data)

	var findings []ScanFinding

	lineScanner := bufio.NewScanner(strings.NewReader(source))
	lineNum := 0
	for lineScanner.Scan() {
		lineNum++
		line := lineScanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		for _, rule := range s.lineRules {
			if rule.pattern.MatchString(line) {
				findings = append(findings, ScanFinding{
					Rule:     rule.name,
					Severity: string(rule.severity),
					Line:     lineNum,
					Snippet:  strings.TrimSpace(line),
				})
			}
		}
	}

	for _, rule := range s.sourceRules {
		if !rule.pattern.MatchString(source) {
			continue
		}
		if rule.context != nil && !rule.context.MatchString(source) {
			continue
		}
		findings = append(findings, ScanFinding{
			Rule:     rule.name,
			Severity: string(rule.severity),
			Snippet:  "(full-source match)",
		})
	}

	report := &ScanReport{
		Server:    p.Name,
		Findings:  findings,
		Blocked:   hasCritical(findings),
		ScannedAt: time.Now(),
	}
	logFindings(p.Name, findings)
	return report, nil
}

func hasCritical(findings []ScanFinding) bool {
	for _, f := range findings {
		if f.Severity == string(severityCritical) {
			return true
		}
	}
	return false
}

func logFindings(server string, findings []ScanFinding) {
	for _, f := range findings {
		if f.Line > 0 {
			log.Printf("[mcpgw:scanner] %s server=%q rule=%s line=%d: %s",
				strings.ToUpper(f.Severity), server, f.Rule, f.Line, f.Snippet)
		} else {
			log.Printf("[mcpgw:scanner] %s server=%q rule=%s: %s",
				strings.ToUpper(f.Severity), server, f.Rule, f.Snippet)
		}
	}
}

// pyScriptPath returns the .py file a stdio server's command/args
// reference, or "" if none. Covers both "python script.py" invocations
// (script.py in args) and a direct "./script.py" command.
func pyScriptPath(p *ServerParams) string {
	if p.Transport != TransportStdio {
		return ""
	}
	if strings.HasSuffix(p.Command, ".py") {
		return p.Command
	}
	for _, a := range p.Args {
		if strings.HasSuffix(a, ".py") {
			return a
		}
	}
	return ""
}
