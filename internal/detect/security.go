package detect

import (
	"regexp"
	"strings"
)

// Severity of a single detected threat.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RiskLevel is the coarse classification derived from the security score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// DefaultSecurityThreshold is the minimum score considered safe.
const DefaultSecurityThreshold = 0.5

const (
	TechniqueSystemOverride     = "system_override"
	TechniqueDataExtraction     = "data_extraction"
	TechniqueRoleManipulation   = "role_manipulation"
	TechniqueEncodingTricks     = "encoding_tricks"
	TechniqueDelimiterInjection = "delimiter_injection"
	TechniqueJailbreak          = "jailbreak"
)

// Injection techniques with their ordered pattern lists. Prompts are
// lowercased before matching, so the patterns themselves are lowercase.
// Within a technique the first matching pattern wins, so a prompt yields
// at most one threat per technique.
var injectionTechniques = []struct {
	name     string
	severity Severity
	patterns []*regexp.Regexp
}{
	{TechniqueSystemOverride, SeverityHigh, []*regexp.Regexp{
		regexp.MustCompile(`ignore.*(?:previous|above|all).*(?:instructions|rules)`),
		regexp.MustCompile(`(?:forget|disregard).*(?:instructions|guidelines)`),
		regexp.MustCompile(`you are now`),
		regexp.MustCompile(`act as`),
		regexp.MustCompile(`pretend.*(?:you|to be)`),
		regexp.MustCompile(`new.*(?:role|persona|identity)`),
	}},
	{TechniqueDataExtraction, SeverityMedium, []*regexp.Regexp{
		regexp.MustCompile(`(?:reveal|show|display|print).*(?:prompt|instructions|system)`),
		regexp.MustCompile(`what.*(?:your|the).*(?:instructions|prompt|rules)`),
		regexp.MustCompile(`(?:dump|output|list).*(?:all|your).*(?:data|information)`),
	}},
	{TechniqueRoleManipulation, SeverityHigh, []*regexp.Regexp{
		regexp.MustCompile(`(?:dan|developer|admin).*mode`),
		regexp.MustCompile(`jailbreak`),
		regexp.MustCompile(`bypass.*(?:filter|safety|security)`),
		regexp.MustCompile(`(?:evil|dark|shadow).*(?:mode|version)`),
	}},
	{TechniqueEncodingTricks, SeverityMedium, []*regexp.Regexp{
		regexp.MustCompile(`base64`),
		regexp.MustCompile(`\\x[0-9a-f]{2}`),
		regexp.MustCompile(`&#x?[0-9a-f]+;`),
		regexp.MustCompile(`unicode.*(?:bypass|escape)`),
	}},
	{TechniqueDelimiterInjection, SeverityMedium, []*regexp.Regexp{
		regexp.MustCompile("```.*system"),
		regexp.MustCompile(`\[inst\]`),
		regexp.MustCompile(`<\|.*\|>`),
		regexp.MustCompile(`###.*instruction`),
	}},
}

// Jailbreak phrases are scanned without short-circuiting: every matching
// phrase yields its own high-severity threat.
var jailbreakPhrases = []string{
	"do anything now",
	"hypothetically speaking",
	"for educational purposes",
	"in a fictional scenario",
	"if you were evil",
	"ignore ethics",
	"no restrictions",
	"unrestricted mode",
}

// Threat describes a single matched attack pattern.
type Threat struct {
	Technique string
	Pattern   string
	Severity  Severity
}

// SecurityAssessment is the full output of a prompt security analysis.
type SecurityAssessment struct {
	Score      float64 // 1.0 = safe, 0.0 = dangerous
	Threats    []Threat
	Techniques []string // unique, in detection order
	IsSafe     bool
	RiskLevel  RiskLevel
}

// PromptSecurityAnalyzer scans prompts for injection and jailbreak attempts.
// Stateless and safe for concurrent use.
type PromptSecurityAnalyzer struct {
	threshold float64
}

// NewPromptSecurityAnalyzer creates an analyzer with the given safety
// threshold. Pass 0 to use the default.
func NewPromptSecurityAnalyzer(threshold float64) *PromptSecurityAnalyzer {
	if threshold <= 0 {
		threshold = DefaultSecurityThreshold
	}
	return &PromptSecurityAnalyzer{threshold: threshold}
}

// Analyze scores a prompt for security threats. Matching is case-insensitive
// and deterministic for identical input.
func (a *PromptSecurityAnalyzer) Analyze(prompt string) SecurityAssessment {
	lower := strings.ToLower(prompt)

	var threats []Threat
	var techniques []string
	seen := make(map[string]bool)

	for _, tech := range injectionTechniques {
		for _, re := range tech.patterns {
			if re.MatchString(lower) {
				threats = append(threats, Threat{
					Technique: tech.name,
					Pattern:   re.String(),
					Severity:  tech.severity,
				})
				if !seen[tech.name] {
					seen[tech.name] = true
					techniques = append(techniques, tech.name)
				}
				break
			}
		}
	}

	for _, phrase := range jailbreakPhrases {
		if strings.Contains(lower, phrase) {
			threats = append(threats, Threat{
				Technique: TechniqueJailbreak,
				Pattern:   phrase,
				Severity:  SeverityHigh,
			})
			if !seen[TechniqueJailbreak] {
				seen[TechniqueJailbreak] = true
				techniques = append(techniques, TechniqueJailbreak)
			}
		}
	}

	score := 1.0
	for _, t := range threats {
		switch t.Severity {
		case SeverityHigh:
			score -= 0.30
		case SeverityMedium:
			score -= 0.15
		default:
			score -= 0.05
		}
	}
	score = clamp01(score)

	return SecurityAssessment{
		Score:      score,
		Threats:    threats,
		Techniques: techniques,
		IsSafe:     score >= a.threshold,
		RiskLevel:  riskLevelForScore(score),
	}
}

// SafeAssessment is the neutral result substituted when the analyzer faults.
func SafeAssessment() SecurityAssessment {
	return SecurityAssessment{Score: 1.0, IsSafe: true, RiskLevel: RiskLow}
}

func riskLevelForScore(score float64) RiskLevel {
	switch {
	case score >= 0.9:
		return RiskLow
	case score >= 0.7:
		return RiskMedium
	case score >= 0.4:
		return RiskHigh
	default:
		return RiskCritical
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
