// Package security implements the dangerous-command classifier consulted
// before a cached command is auto-used.
package security

import (
	"errors"
	"io/fs"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/aicmd-go/internal/domain"
	"github.com/doeshing/aicmd-go/internal/ports"
)

// defaultRules flag destructive filesystem, device, and process operations.
// A rules file can extend them but never remove them.
var defaultRules = []domain.DangerRule{
	{Pattern: `\brm\s+(-\w*[rf]\w*\s+)+/(\s|$)`, Level: "critical", Description: "recursive delete of the filesystem root"},
	{Pattern: `\brm\s+(-\w*[rf]\w*\s+)+\*`, Level: "high", Description: "recursive delete with wildcard"},
	{Pattern: `\brm\s+-\w*[rf]`, Level: "medium", Description: "forced or recursive delete"},
	{Pattern: `\bsudo\s+rm\b`, Level: "high", Description: "privileged delete"},
	{Pattern: `\bdd\s+.*of=/dev/`, Level: "critical", Description: "raw write to a block device"},
	{Pattern: `\bmkfs\.`, Level: "critical", Description: "filesystem creation destroys existing data"},
	{Pattern: `>\s*/dev/sd`, Level: "critical", Description: "redirect onto a block device"},
	{Pattern: `\bchmod\s+(-\w+\s+)*777\b`, Level: "medium", Description: "world-writable permissions"},
	{Pattern: `\bchown\s+.*\s+/(\s|$)`, Level: "high", Description: "ownership change on the filesystem root"},
	{Pattern: `\bkill\s+-9\s+1\b`, Level: "critical", Description: "killing PID 1"},
	{Pattern: `\bkillall\b`, Level: "medium", Description: "terminates every matching process"},
	{Pattern: `\bshutdown\b|\breboot\b|\bhalt\b`, Level: "high", Description: "stops the machine"},
	{Pattern: `\bcurl\s+[^|]*\|\s*(sudo\s+)?(ba)?sh\b`, Level: "high", Description: "pipes a remote script into a shell"},
	{Pattern: `:\(\)\s*\{\s*:\|:&\s*\}\s*;`, Level: "critical", Description: "fork bomb"},
	{Pattern: `\btruncate\s+.*-s\s*0\s+/`, Level: "high", Description: "truncates system files"},
}

type compiledRule struct {
	re   *regexp.Regexp
	rule domain.DangerRule
}

// Classifier evaluates commands against compiled danger patterns.
type Classifier struct {
	rules []compiledRule
}

// rulesDocument is the YAML schema for a user-supplied rules file.
type rulesDocument struct {
	Rules struct {
		DangerPatterns []domain.DangerRule `yaml:"danger_patterns"`
	} `yaml:"rules"`
}

// NewClassifier compiles the built-in rules plus any from the rules file.
// A missing file is fine; a malformed one is an error so bad patterns are
// caught at startup, not mid-classification.
func NewClassifier(rulesFile string) (*Classifier, error) {
	rules := append([]domain.DangerRule(nil), defaultRules...)

	if rulesFile != "" {
		data, err := os.ReadFile(rulesFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if err == nil {
			var doc rulesDocument
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return nil, err
			}
			rules = append(rules, doc.Rules.DangerPatterns...)
		}
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(`(?i)` + rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{re: re, rule: rule})
	}
	return &Classifier{rules: compiled}, nil
}

// Classify implements ports.SafetyClassifier. The reported level is the most
// severe matching rule; high and critical commands force confirmation and
// stay out of the clipboard until confirmed.
func (c *Classifier) Classify(command string) domain.RiskAssessment {
	assessment := domain.RiskAssessment{Level: domain.RiskSafe}
	for _, rule := range c.rules {
		if !rule.re.MatchString(command) {
			continue
		}
		assessment.Dangerous = true
		assessment.Reasons = append(assessment.Reasons, rule.rule.Description)
		level := domain.ParseRiskLevel(rule.rule.Level)
		if domain.MoreSevere(level, assessment.Level) {
			assessment.Level = level
		}
	}
	if assessment.Dangerous {
		assessment.ForceConfirmation = true
		if domain.MoreSevere(assessment.Level, domain.RiskMedium) {
			assessment.DisableAutoCopy = true
		}
	}
	return assessment
}

var _ ports.SafetyClassifier = (*Classifier)(nil)
