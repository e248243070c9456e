package domain

// RiskLevel grades how destructive a command can be.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskAssessment is the safety classifier's verdict for one command.
type RiskAssessment struct {
	Dangerous bool
	Level     RiskLevel
	Reasons   []string
	// ForceConfirmation overrides auto-use even at high confidence.
	ForceConfirmation bool
	// DisableAutoCopy keeps the command out of the clipboard until the
	// user explicitly confirms.
	DisableAutoCopy bool
}

// DangerRule is one configurable pattern in the safety rules file.
type DangerRule struct {
	Pattern     string `yaml:"pattern"`
	Level       string `yaml:"level"`
	Description string `yaml:"description"`
}

// MoreSevere reports whether a outranks b.
func MoreSevere(a, b RiskLevel) bool {
	return riskRank(a) > riskRank(b)
}

func riskRank(level RiskLevel) int {
	switch level {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// ParseRiskLevel maps a rules-file string onto a RiskLevel.
func ParseRiskLevel(raw string) RiskLevel {
	switch RiskLevel(raw) {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical, RiskSafe:
		return RiskLevel(raw)
	default:
		return RiskSafe
	}
}
