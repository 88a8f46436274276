package signals

import (
	"regexp"
	"strings"
)

const (
	baseKeywordStrength = 60.0
	urgencyBonus        = 15.0
	amountBonus         = 10.0
	phoneBonus          = 10.0
	emailBonus          = 10.0
	maxStrength         = 100.0
)

// patternLibrary is one of the five keyword libraries. Confidence is fixed
// per library; strength starts at the base and earns bonuses from context.
type patternLibrary struct {
	signalType Type
	category   Category
	confidence float64
	keywords   []string
}

// Library confidences reflect how unambiguous the vocabulary is: distress
// terms almost always mean distress, growth terms are generic.
var patternLibraries = []patternLibrary{
	{
		signalType: TypeLoanNeed,
		category:   CategoryKeyword,
		confidence: 85,
		keywords: []string{
			"need a loan", "business loan", "working capital", "line of credit",
			"borrow money", "financing options", "apply for a loan", "sba loan",
			"bridge loan", "equipment financing", "merchant cash advance",
			"need funding", "loan application",
		},
	},
	{
		signalType: TypeConsultingNeed,
		category:   CategoryKeyword,
		confidence: 80,
		keywords: []string{
			"need advice", "business consultant", "consulting services",
			"strategy help", "improve operations", "business plan help",
			"need an advisor", "process optimization", "looking for guidance",
			"management consulting",
		},
	},
	{
		signalType: TypeFinancialDistress,
		category:   CategoryProblemIndicator,
		confidence: 90,
		keywords: []string{
			"cash flow problems", "behind on payments", "can't make payroll",
			"cannot make payroll", "overdue invoices", "debt problems",
			"struggling financially", "late on rent", "collections notice",
			"falling behind", "money is tight", "losing money",
		},
	},
	{
		signalType: TypeGrowth,
		category:   CategoryKeyword,
		confidence: 70,
		keywords: []string{
			"growing fast", "hiring", "new customers", "record sales",
			"scaling up", "increased demand", "doubling revenue",
			"expanding the team", "growth plan",
		},
	},
	{
		signalType: TypeExpansion,
		category:   CategoryKeyword,
		confidence: 75,
		keywords: []string{
			"new location", "second location", "opening a branch",
			"expanding to", "new market", "more space", "bigger warehouse",
			"additional office", "franchise",
		},
	},
}

var urgencyTerms = []string{
	"urgent", "urgently", "asap", "immediately", "right away", "today",
	"this week", "deadline", "emergency", "now",
}

var (
	amountPattern = regexp.MustCompile(`[$€£]\s?\d[\d,.]*|\b\d[\d,.]*\s?(?:dollars|usd|eur|k|million)\b`)
	phonePattern  = regexp.MustCompile(`(?:\+?\d{1,3}[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// behaviorRule is a substring heuristic over a serialized behavior blob.
// The blob is opaque to us (page paths, event names, whatever the signal
// source produced), so structured matching is deliberately not attempted.
type behaviorRule struct {
	substrings []string
	signalType Type
	strength   float64
	confidence float64
	content    string
}

var behaviorRules = []behaviorRule{
	{[]string{"loan calculator", "loan_calculator"}, TypeLoanNeed, 85, 90, "visited loan calculator"},
	{[]string{"application page", "loan application", "apply"}, TypeLoanNeed, 75, 85, "visited application page"},
	{[]string{"pricing", "plans page"}, TypeConsultingNeed, 70, 80, "viewed pricing"},
}

// DetectFromText scans the text with every pattern library and returns one
// signal per matched library. A match means any keyword of that library is
// present. The snippet stored on the signal is the matched keyword, which
// keeps signals explainable without retaining the whole document.
func DetectFromText(text, source string) []Signal {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)

	hasUrgency := containsAny(lower, urgencyTerms)
	hasAmount := amountPattern.MatchString(lower)
	hasPhone := phonePattern.MatchString(text)
	hasEmail := emailPattern.MatchString(text)

	var detected []Signal
	for _, lib := range patternLibraries {
		keyword, ok := firstMatch(lower, lib.keywords)
		if !ok {
			continue
		}

		strength := baseKeywordStrength
		if hasUrgency {
			strength += urgencyBonus
		}
		if hasAmount {
			strength += amountBonus
		}
		if hasPhone {
			strength += phoneBonus
		}
		if hasEmail {
			strength += emailBonus
		}
		if strength > maxStrength {
			strength = maxStrength
		}

		detected = append(detected, Signal{
			Type:       lib.signalType,
			Category:   lib.category,
			Source:     source,
			Content:    keyword,
			Strength:   strength,
			Confidence: lib.confidence,
		})
	}

	return detected
}

// DetectFromBehavior applies the substring heuristics to a serialized
// behavior blob and returns fixed strength/confidence signals.
func DetectFromBehavior(behavior, source string) []Signal {
	if strings.TrimSpace(behavior) == "" {
		return nil
	}
	lower := strings.ToLower(behavior)

	var detected []Signal
	for _, rule := range behaviorRules {
		if !containsAny(lower, rule.substrings) {
			continue
		}
		detected = append(detected, Signal{
			Type:       rule.signalType,
			Category:   CategoryBehavior,
			Source:     source,
			Content:    rule.content,
			Strength:   rule.strength,
			Confidence: rule.confidence,
		})
	}

	return detected
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

func firstMatch(s string, terms []string) (string, bool) {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return term, true
		}
	}
	return "", false
}
